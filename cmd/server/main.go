package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/exp/rand"

	"github.com/onnwee/graphvis3d/internal/cache"
	"github.com/onnwee/graphvis3d/internal/config"
	"github.com/onnwee/graphvis3d/internal/engine"
	"github.com/onnwee/graphvis3d/internal/errorreporting"
	"github.com/onnwee/graphvis3d/internal/logger"
	"github.com/onnwee/graphvis3d/internal/secrets"
	"github.com/onnwee/graphvis3d/internal/server"
	"github.com/onnwee/graphvis3d/internal/store"
	"github.com/onnwee/graphvis3d/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logger.Init(cfg.LogLevel)
	logger.Info("Initializing layout server", "version", cfg.SentryRelease, "log_level", cfg.LogLevel)

	// Initialize error reporting
	if err := errorreporting.Init(errorreporting.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.IsSentryEnabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment, "dsn", secrets.Mask(cfg.SentryDSN))
		defer func() {
			logger.Info("Flushing error reports...")
			errorreporting.Flush(2 * time.Second)
		}()
	}

	// Initialize tracing
	shutdownTracing, err := tracing.Init("graphvis3d-server", tracing.Options{
		Enabled:    cfg.OTELEnabled,
		Endpoint:   cfg.OTELEndpoint,
		SampleRate: cfg.OTELSampleRate,
		Version:    cfg.SentryRelease,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else if cfg.OTELEnabled {
		logger.Info("Tracing initialized", "endpoint", cfg.OTELEndpoint, "sample_rate", cfg.OTELSampleRate)
		defer func() {
			logger.Info("Shutting down tracer...")
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	seed := cfg.LayoutSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	eng, err := engine.New(engine.Options{
		Params:    cfg.Layout,
		Rand:      rand.New(rand.NewSource(seed)),
		MaxLevels: cfg.LayoutMaxLevels,
	})
	if err != nil {
		logger.Error("Failed to create layout engine", "error", err)
		os.Exit(1)
	}
	logger.Info("Layout engine ready", "seed", seed, "frame_rate", cfg.FrameRate)

	logger.Info("Opening graph store", "backend", cfg.StoreBackend, "dir", cfg.GraphDir, "database_url", secrets.MaskURL(cfg.DatabaseURL))
	graphs, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		Dir:         cfg.GraphDir,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		logger.Error("Failed to open graph store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer graphs.Close()

	frames, err := cache.NewLRU(cfg.CacheMaxSizeMB, cfg.CacheMaxEntries, cfg.CacheTTL)
	if err != nil {
		logger.Error("Failed to create frame cache", "error", err)
		os.Exit(1)
	}
	defer frames.Close()

	srv := server.New(cfg, engine.NewRunner(eng, cfg.FrameRate), graphs, frames)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
