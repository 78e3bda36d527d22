// Package server assembles the layout service: the runner, the frame hub, the
// HTTP API and the background metrics collector.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/onnwee/graphvis3d/internal/api"
	"github.com/onnwee/graphvis3d/internal/api/handlers"
	"github.com/onnwee/graphvis3d/internal/cache"
	"github.com/onnwee/graphvis3d/internal/config"
	"github.com/onnwee/graphvis3d/internal/engine"
	"github.com/onnwee/graphvis3d/internal/logger"
	"github.com/onnwee/graphvis3d/internal/metrics"
	"github.com/onnwee/graphvis3d/internal/middleware"
	"github.com/onnwee/graphvis3d/internal/store"
)

type Server struct {
	cfg       *config.Config
	runner    *engine.Runner
	hub       *handlers.FrameHub
	store     store.Store
	frames    cache.Cache
	limiter   *middleware.RateLimiter
	collector *metrics.Collector
	http      *http.Server
	log       *slog.Logger
}

// New wires the API around runner. st may be nil to disable persistence.
func New(cfg *config.Config, runner *engine.Runner, st store.Store, frames cache.Cache) *Server {
	if frames == nil {
		frames = cache.NewMockCache()
	}
	s := &Server{
		cfg:    cfg,
		runner: runner,
		hub:    handlers.NewFrameHub(runner, frames),
		store:  st,
		frames: frames,
		log:    logger.WithComponent("server"),
	}
	if cfg.EnableRateLimit {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst,
			cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
	}
	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s.collector = metrics.NewCollector(interval, s.probes())
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(s.deps()),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) deps() api.Deps {
	return api.Deps{
		Runner:       s.runner,
		Hub:          s.hub,
		Store:        s.store,
		Frames:       s.frames,
		Params:       s.cfg.Layout,
		Limits:       handlers.Limits{MaxNodes: s.cfg.MaxGraphNodes, MaxEdges: s.cfg.MaxGraphEdges},
		StoreTimeout: s.cfg.StoreTimeout,
		MaxBodyBytes: s.cfg.MaxRequestBytes,
		RateLimiter:  s.limiter,
		CORSOrigins:  s.cfg.CORSAllowedOrigins,
		EnablePprof:  s.cfg.EnablePprof,
	}
}

func (s *Server) probes() map[string]metrics.Probe {
	probes := map[string]metrics.Probe{
		"frame_cache": func(context.Context) error {
			metrics.FrameCacheItems.Set(float64(s.frames.Stats().Items))
			return nil
		},
	}
	if s.store != nil {
		probes["graph_store"] = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
			defer cancel()
			infos, err := s.store.List(ctx)
			if err != nil {
				return err
			}
			metrics.GraphsStored.Set(float64(len(infos)))
			return nil
		}
	}
	return probes
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := s.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("layout runner stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.collector.Start(ctx)
	}()

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", ln.Addr().String())
		errc <- s.http.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer stop()
	s.log.Info("shutting down server")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("graceful shutdown failed", "error", err)
	}
	cancel()
	wg.Wait()
	if s.limiter != nil {
		s.limiter.Stop()
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}
