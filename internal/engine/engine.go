// Package engine drives a multilevel layout run: it coarsens a loaded graph,
// ticks the active level and refines to the next finer level whenever every
// body has halted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/onnwee/graphvis3d/internal/coarsen"
	"github.com/onnwee/graphvis3d/internal/errorreporting"
	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/layout"
	"github.com/onnwee/graphvis3d/internal/logger"
	"github.com/onnwee/graphvis3d/internal/metrics"
	"github.com/onnwee/graphvis3d/internal/tracing"
)

// ErrNotLoaded is returned by Step before the first Load.
var ErrNotLoaded = errors.New("engine: no graph loaded")

// Options configures an Engine.
type Options struct {
	Params    layout.Params
	Rand      layout.Rand
	MaxLevels int
	Logger    *slog.Logger
}

// Engine is the single mutator of a layout run. It is not safe for concurrent
// use; Runner serialises access to it.
type Engine struct {
	rng       layout.Rand
	coarsener *coarsen.Coarsener
	log       *slog.Logger

	graph *graph.Graph
	sim   *layout.Simulation
	run   uint64
	ticks int
	done  bool
}

// New returns an engine with nothing loaded.
func New(opts Options) (*Engine, error) {
	c, err := coarsen.New(coarsen.Options{
		Params:    opts.Params,
		Rand:      opts.Rand,
		MaxLevels: opts.MaxLevels,
	})
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.WithComponent("engine")
	}
	return &Engine{rng: opts.Rand, coarsener: c, log: log}, nil
}

// Load discards the current run and coarsens g. The coarsest level becomes the
// active simulation.
func (e *Engine) Load(ctx context.Context, g *graph.Graph) error {
	ctx, span := tracing.StartSpan(ctx, "engine.Load")
	defer span.End()
	span.SetAttributes(
		attribute.Int("graph.nodes", g.Size()),
		attribute.Int("graph.edges", g.EdgeCount()),
	)

	e.Reset()
	start := time.Now()
	sim, err := e.coarsener.Coarsen(ctx, g)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "coarsen failed")
		metrics.LayoutRunsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("load graph: %w", err)
	}
	metrics.CoarsenDuration.Observe(time.Since(start).Seconds())
	metrics.CoarsenLevels.Set(float64(e.coarsener.Levels()))
	metrics.LayoutDepth.Set(float64(e.coarsener.Depth()))
	metrics.GraphNodesTotal.Set(float64(g.Size()))
	metrics.GraphEdgesTotal.Set(float64(g.EdgeCount()))
	metrics.LayoutRunsTotal.WithLabelValues("started").Inc()
	span.SetAttributes(attribute.Int("coarsen.levels", e.coarsener.Levels()))

	e.run++
	e.graph = g
	e.sim = sim
	e.log.InfoContext(ctx, "graph loaded",
		"run", e.run,
		"nodes", g.Size(),
		"edges", g.EdgeCount(),
		"levels", e.coarsener.Levels(),
		"coarsest", sim.Graph().Size(),
	)
	return nil
}

// Generate fills a new graph with graph.Generate, using the engine's random
// source, and loads it.
func (e *Engine) Generate(ctx context.Context, opts graph.GenerateOptions) (*graph.Graph, error) {
	g := graph.New()
	graph.Generate(g, opts, e.rng)
	if err := e.Load(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Step ticks the active level once. When every body of the level has halted
// the next finer level is entered; once the finest level halts the run is
// done and Step returns true without doing anything.
func (e *Engine) Step(ctx context.Context) (bool, error) {
	if e.sim == nil {
		return false, ErrNotLoaded
	}
	if e.done {
		return true, nil
	}

	start := time.Now()
	if err := e.sim.Tick(); err != nil {
		metrics.LayoutRunsTotal.WithLabelValues("failed").Inc()
		return false, fmt.Errorf("run %d level %d: %w", e.run, e.sim.Level(), err)
	}
	e.ticks++
	e.observe(time.Since(start))

	if !e.sim.Halted() {
		return false, nil
	}
	if e.coarsener.Ready() {
		e.done = true
		metrics.LayoutRunsTotal.WithLabelValues("completed").Inc()
		e.log.InfoContext(ctx, "layout converged", "run", e.run, "ticks", e.ticks)
		return true, nil
	}
	return false, e.refine(ctx)
}

func (e *Engine) refine(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "engine.Uncoarsen")
	defer span.End()

	from := e.sim.Level()
	sim, err := e.coarsener.Uncoarsen(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "uncoarsen failed")
		metrics.LayoutRunsTotal.WithLabelValues("failed").Inc()
		if errors.Is(err, coarsen.ErrMissingParent) {
			errorreporting.CaptureErrorWithContext(err,
				map[string]string{"component": "engine"},
				map[string]interface{}{"run": e.run, "level": from},
			)
		}
		return fmt.Errorf("run %d: %w", e.run, err)
	}
	e.sim = sim
	metrics.LevelTransitionsTotal.Inc()
	metrics.LayoutDepth.Set(float64(e.coarsener.Depth()))
	span.SetAttributes(
		attribute.Int("level.from", from),
		attribute.Int("level.to", sim.Level()),
		attribute.Int("level.bodies", len(sim.Bodies())),
	)
	e.log.DebugContext(ctx, "level refined", "run", e.run, "level", sim.Level(), "bodies", len(sim.Bodies()))
	return nil
}

func (e *Engine) observe(d time.Duration) {
	st := e.sim.Stats()
	metrics.LayoutTicksTotal.Inc()
	metrics.LayoutTickDuration.Observe(d.Seconds())
	metrics.OctreeBuildDuration.Observe(st.TreeBuild.Seconds())
	metrics.OctreeNodes.Set(float64(st.TreeNodes))
	metrics.LayoutMaxSpeed.Set(st.MaxSpeed)
	metrics.LayoutBodies.WithLabelValues("halted").Set(float64(st.Halted))
	metrics.LayoutBodies.WithLabelValues("moving").Set(float64(st.Bodies - st.Halted))
}

// Run steps until the run is done or maxTicks steps have been taken. It
// returns the number of steps performed.
func (e *Engine) Run(ctx context.Context, maxTicks int) (int, error) {
	n := 0
	for n < maxTicks {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		done, err := e.Step(ctx)
		if err != nil {
			return n, err
		}
		n++
		if done {
			break
		}
	}
	return n, nil
}

// Frame returns a snapshot of the active level. It is nil before Load.
func (e *Engine) Frame() *Frame {
	if e.sim == nil {
		return nil
	}
	nodes, edges := snapshot(e.sim)
	return &Frame{
		Run:   e.run,
		Tick:  e.ticks,
		Level: e.sim.Level(),
		Depth: e.coarsener.Depth(),
		Done:  e.done,
		Nodes: nodes,
		Edges: edges,
	}
}

// Reset drops the loaded graph and the level stack. The run counter keeps
// counting so frames of different runs never share a (run, tick) pair.
func (e *Engine) Reset() {
	e.coarsener.Reset()
	e.graph = nil
	e.sim = nil
	e.ticks = 0
	e.done = false
	metrics.LayoutDepth.Set(0)
}

// Graph returns the loaded graph.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Simulation returns the active level.
func (e *Engine) Simulation() *layout.Simulation { return e.sim }

// Done reports whether the finest level has converged.
func (e *Engine) Done() bool { return e.done }

// RunID returns the id of the current run.
func (e *Engine) RunID() uint64 { return e.run }

// Stats returns the counters of the active level.
func (e *Engine) Stats() layout.Stats {
	if e.sim == nil {
		return layout.Stats{}
	}
	return e.sim.Stats()
}
