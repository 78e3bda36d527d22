// Package coarsen builds the multilevel hierarchy used by the layout. Each pass
// greedily matches adjacent nodes into Combiner nodes and wraps the rest; the
// coarsest level is laid out first and every finer level starts from its
// parents' converged positions.
package coarsen

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/layout"
)

var (
	// ErrMissingParent means a finer node has no recorded parent, or the parent
	// has no body. It signals broken matching bookkeeping.
	ErrMissingParent = errors.New("coarsen: missing parent")

	// ErrNotRefining is returned by Uncoarsen when there is no level left.
	ErrNotRefining = errors.New("coarsen: no level left to refine")
)

// State is the phase of the coarsener.
type State int

const (
	Idle State = iota
	Coarsening
	Refining
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Coarsening:
		return "coarsening"
	case Refining:
		return "refining"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a Coarsener.
type Options struct {
	Params layout.Params
	Rand   layout.Rand

	// MaxLevels caps the number of levels when positive.
	MaxLevels int
}

// runContext is the bookkeeping of one Coarsen call. A new one is made for
// every run and dropped by Reset.
type runContext struct {
	parent map[graph.Node]graph.Node
	bodies map[graph.Node]*layout.Body
	links  uint64
}

func newRunContext() *runContext {
	return &runContext{
		parent: make(map[graph.Node]graph.Node),
		bodies: make(map[graph.Node]*layout.Body),
	}
}

// Coarsener owns the level stack. It is not safe for concurrent use.
type Coarsener struct {
	opts    Options
	state   State
	stack   []*graph.Graph
	run     *runContext
	levels  int
	current *layout.Simulation
}

// New returns an idle Coarsener.
func New(opts Options) (*Coarsener, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.Rand == nil {
		return nil, layout.ErrNoRand
	}
	return &Coarsener{opts: opts}, nil
}

// Coarsen discards any previous run, builds the level stack for g and returns
// the simulation of the coarsest level. Passes stop once the top level is no
// larger than g's component count or when a pass no longer shrinks the level.
// A positive MaxLevels also caps the number of levels.
func (c *Coarsener) Coarsen(ctx context.Context, g *graph.Graph) (*layout.Simulation, error) {
	c.Reset()
	c.state = Coarsening
	c.run = newRunContext()
	c.stack = append(c.stack, g)

	components := g.ComponentCount()
	for c.opts.MaxLevels <= 0 || len(c.stack) < c.opts.MaxLevels {
		if err := ctx.Err(); err != nil {
			c.Reset()
			return nil, err
		}
		top := c.stack[len(c.stack)-1]
		if top.Size() <= components {
			break
		}
		coarse := c.run.match(top)
		if coarse.Size() >= top.Size() {
			break
		}
		c.stack = append(c.stack, coarse)
	}
	c.levels = len(c.stack)

	coarsest := c.pop()
	sim, err := layout.New(coarsest, layout.Options{
		Params:      c.opts.Params,
		Rand:        c.opts.Rand,
		Level:       len(c.stack),
		Temperature: c.temperature(),
	})
	if err != nil {
		c.Reset()
		return nil, err
	}
	c.enter(sim)
	return sim, nil
}

// Uncoarsen pops the next finer level and seeds every body at its parent's
// position in the current simulation.
func (c *Coarsener) Uncoarsen(ctx context.Context) (*layout.Simulation, error) {
	if c.state != Refining || len(c.stack) == 0 {
		return nil, ErrNotRefining
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := c.pop()
	sim, err := layout.New(g, layout.Options{
		Params:      c.opts.Params,
		Rand:        c.opts.Rand,
		Level:       len(c.stack),
		Temperature: c.temperature(),
		Seed:        c.run.seed,
	})
	if err != nil {
		return nil, fmt.Errorf("uncoarsen level %d: %w", len(c.stack), err)
	}
	c.enter(sim)
	return sim, nil
}

func (c *Coarsener) pop() *graph.Graph {
	g := c.stack[len(c.stack)-1]
	c.stack[len(c.stack)-1] = nil
	c.stack = c.stack[:len(c.stack)-1]
	return g
}

// enter makes sim the current level and records its bodies as the parents of
// the next level.
func (c *Coarsener) enter(sim *layout.Simulation) {
	c.current = sim
	bodies := make(map[graph.Node]*layout.Body, len(sim.Bodies()))
	for _, b := range sim.Bodies() {
		bodies[b.Node] = b
	}
	c.run.bodies = bodies
	if len(c.stack) == 0 {
		c.state = Ready
	} else {
		c.state = Refining
	}
}

// temperature of the level about to be simulated. Coarser levels, with more
// levels still to refine below them, start hotter.
func (c *Coarsener) temperature() float64 {
	return c.opts.Params.Temperature * float64(len(c.stack)+1)
}

// Ready reports whether the finest level has been reached, so the current
// simulation is the final layout.
func (c *Coarsener) Ready() bool { return c.state == Ready }

// Reset discards the level stack and the run context.
func (c *Coarsener) Reset() {
	clear(c.stack)
	c.stack = nil
	c.run = nil
	c.current = nil
	c.levels = 0
	c.state = Idle
}

// State returns the current phase.
func (c *Coarsener) State() State { return c.state }

// Depth returns the number of levels still waiting to be refined.
func (c *Coarsener) Depth() int { return len(c.stack) }

// Levels returns the number of levels built by the last Coarsen.
func (c *Coarsener) Levels() int { return c.levels }

// Current returns the simulation of the active level.
func (c *Coarsener) Current() *layout.Simulation { return c.current }

// Parent returns the coarse node n was folded into during this run.
func (c *Coarsener) Parent(n graph.Node) (graph.Node, bool) {
	if c.run == nil {
		return graph.Node{}, false
	}
	p, ok := c.run.parent[n]
	return p, ok
}

// match runs one greedy matching pass over g. Nodes are visited in insertion
// order; each unmatched node is paired with the other endpoint of its first
// incident edge whose endpoint is still unmatched, or wrapped alone. Coarse
// nodes are labelled with pointers and compare by identity.
func (r *runContext) match(g *graph.Graph) *graph.Graph {
	out := graph.New()
	matched := make(map[graph.Node]bool, g.Size())
	for _, n := range g.Nodes() {
		if matched[n] {
			continue
		}
		matched[n] = true

		var parent graph.Node
		if partner, ok := findPartner(g, n, matched); ok {
			matched[partner] = true
			parent = graph.NewNode(&Combiner{First: n, Second: partner})
			r.parent[partner] = parent
		} else {
			parent = graph.NewNode(&Wrapper{Node: n})
		}
		r.parent[n] = parent
		out.AddNode(parent)
	}

	// Each finer edge becomes one coarse edge with a fresh Link label, so
	// parallel coarse edges survive.
	for _, e := range g.Edges() {
		from, to := r.parent[e.From()], r.parent[e.To()]
		if from == to {
			continue
		}
		r.links++
		if e.Directionless() {
			out.AddEdge(graph.NewUndirectedEdge(from, to, Link(r.links)))
		} else {
			out.AddEdge(graph.NewEdge(from, to, Link(r.links)))
		}
	}
	return out
}

func findPartner(g *graph.Graph, n graph.Node, matched map[graph.Node]bool) (graph.Node, bool) {
	for _, e := range g.IncidentEdges(n) {
		if o, _ := e.Other(n); o != n && !matched[o] {
			return o, true
		}
	}
	return graph.Node{}, false
}

func (r *runContext) seed(n graph.Node) (r3.Vec, error) {
	p, ok := r.parent[n]
	if !ok {
		return r3.Vec{}, fmt.Errorf("%w: no parent recorded for %v", ErrMissingParent, n)
	}
	b, ok := r.bodies[p]
	if !ok {
		return r3.Vec{}, fmt.Errorf("%w: parent %v of %v has no body", ErrMissingParent, p, n)
	}
	return b.Position, nil
}
