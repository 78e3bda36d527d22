package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/logger"
)

// ErrRunnerStopped is returned for commands sent after Run has returned.
var ErrRunnerStopped = errors.New("engine: runner stopped")

type commandKind int

const (
	cmdLoad commandKind = iota
	cmdGenerate
	cmdReset
)

type command struct {
	kind     commandKind
	graph    *graph.Graph
	generate graph.GenerateOptions
	reply    chan error
}

// Runner owns an Engine on a single goroutine. Loads, generations and resets
// are queued as commands and applied between ticks; ticks are paced by a
// rate limiter. Readers get frames through Frame or Subscribe.
type Runner struct {
	engine  *Engine
	limiter *rate.Limiter
	cmds    chan command
	stopped chan struct{}
	log     *slog.Logger

	latest atomic.Pointer[Frame]
	graph  atomic.Pointer[graph.Graph]

	mu      sync.Mutex
	subs    map[int]chan *Frame
	nextSub int
}

// NewRunner wraps e. fps caps the tick rate; zero or less means unlimited.
func NewRunner(e *Engine, fps float64) *Runner {
	limit := rate.Inf
	if fps > 0 {
		limit = rate.Limit(fps)
	}
	return &Runner{
		engine:  e,
		limiter: rate.NewLimiter(limit, 1),
		cmds:    make(chan command),
		stopped: make(chan struct{}),
		log:     logger.WithComponent("runner"),
		subs:    make(map[int]chan *Frame),
	}
}

// Run processes commands and ticks until ctx is cancelled. It must be called
// at most once.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)
	defer r.closeSubscribers()

	for {
		active := r.engine.Simulation() != nil && !r.engine.Done()
		if !active {
			// Nothing to simulate; block until told otherwise.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cmd := <-r.cmds:
				r.apply(ctx, cmd)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-r.cmds:
			r.apply(ctx, cmd)
			continue
		default:
		}

		if err := r.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("frame pacing failed", "error", err)
		}
		if _, err := r.engine.Step(ctx); err != nil {
			r.log.Error("layout step failed; dropping run", "run", r.engine.RunID(), "error", err)
			r.engine.Reset()
			r.graph.Store(nil)
		}
		r.publish(r.engine.Frame())
	}
}

func (r *Runner) apply(ctx context.Context, cmd command) {
	var err error
	switch cmd.kind {
	case cmdLoad:
		err = r.engine.Load(ctx, cmd.graph)
	case cmdGenerate:
		_, err = r.engine.Generate(ctx, cmd.generate)
	case cmdReset:
		r.engine.Reset()
	}
	if err != nil {
		r.engine.Reset()
	}
	r.graph.Store(r.engine.Graph())
	r.publish(r.engine.Frame())
	cmd.reply <- err
}

func (r *Runner) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case r.cmds <- cmd:
	case <-r.stopped:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load replaces the running layout with one for g. g must not be modified
// afterwards.
func (r *Runner) Load(ctx context.Context, g *graph.Graph) error {
	return r.send(ctx, command{kind: cmdLoad, graph: g})
}

// Generate replaces the running layout with one for a random graph.
func (r *Runner) Generate(ctx context.Context, opts graph.GenerateOptions) error {
	return r.send(ctx, command{kind: cmdGenerate, generate: opts})
}

// Reset stops the running layout and drops its graph.
func (r *Runner) Reset(ctx context.Context) error {
	return r.send(ctx, command{kind: cmdReset})
}

// Frame returns the latest published frame, or nil.
func (r *Runner) Frame() *Frame { return r.latest.Load() }

// Graph returns the graph of the current run, or nil. It is shared and must
// be treated as read-only.
func (r *Runner) Graph() *graph.Graph { return r.graph.Load() }

// Subscribe returns a channel receiving every published frame. A nil frame
// means the run was dropped. Subscribers that fall behind lose their oldest
// frames, never the latest. The returned func unsubscribes.
func (r *Runner) Subscribe(buffer int) (<-chan *Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *Frame, buffer)

	r.mu.Lock()
	if r.subs == nil {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(c)
			}
		})
	}
}

func (r *Runner) publish(f *Frame) {
	prev := r.latest.Swap(f)
	if f == nil && prev == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		offer(ch, f)
	}
}

// offer queues f, evicting the oldest queued frame if ch is full. Only the
// runner goroutine sends, so one eviction always makes room.
func offer(ch chan *Frame, f *Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

func (r *Runner) closeSubscribers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.subs = nil
}
