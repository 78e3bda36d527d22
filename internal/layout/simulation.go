// Package layout integrates the force-directed physics for one level of the
// coarsening hierarchy.
package layout

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/octree"
)

// ErrNoRand is returned by New when no random source is supplied.
var ErrNoRand = errors.New("layout: random source is required")

// Seed returns the starting position of a body.
type Seed func(n graph.Node) (r3.Vec, error)

// Options configures a Simulation.
type Options struct {
	Params Params
	Rand   Rand

	// Level is an informational index of the hierarchy level (0 is finest).
	Level int

	// Temperature is the starting temperature of every body. Zero selects
	// Params.Temperature.
	Temperature float64

	// Seed places bodies. When nil, bodies start at random points inside a
	// ball of radius Params.SpringLength.
	Seed Seed
}

// Placement is the externally visible state of one body.
type Placement struct {
	Node     graph.Node
	Position r3.Vec
	Halted   bool
}

// Stats summarises the latest tick.
type Stats struct {
	Bodies    int
	Halted    int
	Ticks     int
	TreeNodes int
	TreeBuild time.Duration
	MaxSpeed  float64
}

// Simulation advances the bodies of one graph. It has exactly one mutator.
type Simulation struct {
	params Params
	rng    Rand
	graph  *graph.Graph
	level  int

	bodies []*Body
	index  map[graph.Node]*Body
	// links[i] lists the body index at the far end of every edge incident to
	// bodies[i], one entry per edge. Self-loops are left out.
	links [][]int

	ticks     int
	halted    int
	treeNodes int
	treeBuild time.Duration
	maxSpeed  float64
}

// New creates one body per node of g, in node order.
func New(g *graph.Graph, opts Options) (*Simulation, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.Rand == nil {
		return nil, ErrNoRand
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = opts.Params.Temperature
	}
	s := &Simulation{
		params: opts.Params,
		rng:    opts.Rand,
		graph:  g,
		level:  opts.Level,
		index:  make(map[graph.Node]*Body, g.Size()),
	}
	for _, n := range g.Nodes() {
		var pos r3.Vec
		if opts.Seed != nil {
			p, err := opts.Seed(n)
			if err != nil {
				return nil, fmt.Errorf("seed %v: %w", n, err)
			}
			pos = p
		} else {
			pos = RandomPoint(s.rng, s.params.SpringLength)
		}
		b := &Body{Node: n, Position: pos, Temperature: temperature}
		s.bodies = append(s.bodies, b)
		s.index[n] = b
	}
	s.links = buildLinks(g, s.bodies)
	return s, nil
}

func buildLinks(g *graph.Graph, bodies []*Body) [][]int {
	at := make(map[graph.Node]int, len(bodies))
	for i, b := range bodies {
		at[b.Node] = i
	}
	links := make([][]int, len(bodies))
	for i, b := range bodies {
		for _, e := range g.IncidentEdges(b.Node) {
			o, _ := e.Other(b.Node)
			if j, ok := at[o]; ok && j != i {
				links[i] = append(links[i], j)
			}
		}
	}
	return links
}

// Tick advances every moving body by one step. Accelerations are computed for
// all bodies against one octree of the current positions before any body is
// moved.
func (s *Simulation) Tick() error {
	if s.Halted() {
		return nil
	}
	start := time.Now()
	tree, err := s.buildTree()
	if err != nil {
		return fmt.Errorf("tick %d: %w", s.ticks, err)
	}
	s.treeBuild = time.Since(start)
	s.treeNodes = tree.NodeCount()

	for i, b := range s.bodies {
		if b.halted {
			continue
		}
		b.Acceleration = r3.Add(s.repulsion(tree, b), s.springs(i))
	}

	s.maxSpeed = 0
	for _, b := range s.bodies {
		if b.halted {
			continue
		}
		s.integrate(b)
	}
	s.ticks++
	return nil
}

// Run ticks until every body halts or maxTicks ticks have run and returns the
// number of ticks performed.
func (s *Simulation) Run(maxTicks int) (int, error) {
	n := 0
	for ; n < maxTicks && !s.Halted(); n++ {
		if err := s.Tick(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *Simulation) buildTree() (*octree.Tree[*Body], error) {
	tree := octree.New[*Body](s.params.MergeTolerance)
	for _, b := range s.bodies {
		if err := tree.AddBody(b, b.Position, s.params.Mass); err != nil {
			return nil, fmt.Errorf("body %v at %v: %w", b.Node, b.Position, err)
		}
	}
	tree.Leaves(func(n *octree.Node[*Body]) {
		for _, it := range n.Items() {
			it.Value.leaf = n
		}
	})
	return tree, nil
}

// repulsion sums the inverse-square push of every other body on b, using
// aggregates where the octree allows it.
func (s *Simulation) repulsion(tree *octree.Tree[*Body], b *Body) r3.Vec {
	var acc r3.Vec
	tree.ForEach(b.Position, s.params.Theta, func(n *octree.Node[*Body]) {
		if n.External() {
			for _, it := range n.Items() {
				if it.Value == b {
					continue
				}
				acc = r3.Add(acc, s.push(b.Position, it.Position, it.Mass))
			}
			return
		}
		mass, center := n.Mass(), n.MassCenter()
		if n.Encloses(b.leaf) {
			// b is part of this aggregate; take it out again.
			rest := mass - s.params.Mass
			if rest <= 0 {
				return
			}
			center = r3.Scale(1/rest, r3.Sub(r3.Scale(mass, center), r3.Scale(s.params.Mass, b.Position)))
			mass = rest
		}
		acc = r3.Add(acc, s.push(b.Position, center, mass))
	})
	return acc
}

func (s *Simulation) push(at, source r3.Vec, mass float64) r3.Vec {
	dir, dist := s.direction(r3.Sub(at, source))
	return r3.Scale(s.params.Repulsion*mass/(dist*dist), dir)
}

// springs pulls bodies[i] toward every neighbour past the rest length and
// pushes it away inside it. Each incident edge is one spring, so parallel
// edges pull harder.
func (s *Simulation) springs(i int) r3.Vec {
	b := s.bodies[i]
	var acc r3.Vec
	for _, j := range s.links[i] {
		other := s.bodies[j]
		dir, dist := s.direction(r3.Sub(other.Position, b.Position))
		f := r3.Scale(s.params.Stiffness*(dist-s.params.SpringLength), dir)
		f = r3.Sub(f, r3.Scale(s.params.Damping, r3.Sub(b.Velocity, other.Velocity)))
		acc = r3.Add(acc, f)
	}
	return acc
}

// direction returns the unit vector and length of v. Lengths under
// MinDistance are replaced by a random direction at MinDistance.
func (s *Simulation) direction(v r3.Vec) (r3.Vec, float64) {
	dist := r3.Norm(v)
	if dist < s.params.MinDistance {
		return RandomUnitVector(s.rng), s.params.MinDistance
	}
	return r3.Scale(1/dist, v), dist
}

func (s *Simulation) integrate(b *Body) {
	b.Velocity = r3.Add(b.Velocity, b.Acceleration)
	if speed := r3.Norm(b.Velocity); speed > b.Temperature {
		b.Velocity = r3.Scale(b.Temperature/speed, b.Velocity)
	}
	b.Position = r3.Add(b.Position, b.Velocity)
	b.Temperature *= s.params.Cooling

	speed := r3.Norm(b.Velocity)
	if speed > s.maxSpeed {
		s.maxSpeed = speed
	}
	if speed < s.params.HaltSpeed {
		b.halted = true
		b.Velocity = r3.Vec{}
		s.halted++
	}
}

// Halted reports whether every body has come to rest. It is true for an
// empty graph.
func (s *Simulation) Halted() bool { return s.halted == len(s.bodies) }

// Body returns the body of n.
func (s *Simulation) Body(n graph.Node) (*Body, bool) {
	b, ok := s.index[n]
	return b, ok
}

// Bodies returns the bodies in node order.
func (s *Simulation) Bodies() []*Body { return s.bodies }

// Positions returns the state of every body in node order.
func (s *Simulation) Positions() []Placement {
	out := make([]Placement, len(s.bodies))
	for i, b := range s.bodies {
		out[i] = Placement{Node: b.Node, Position: b.Position, Halted: b.halted}
	}
	return out
}

// Edges returns the edges to draw for this level.
func (s *Simulation) Edges() []graph.Edge { return s.graph.Edges() }

// Graph returns the simulated graph.
func (s *Simulation) Graph() *graph.Graph { return s.graph }

// Level returns the hierarchy level given at construction.
func (s *Simulation) Level() int { return s.level }

// Ticks returns the number of ticks performed.
func (s *Simulation) Ticks() int { return s.ticks }

// Stats returns counters describing the latest tick.
func (s *Simulation) Stats() Stats {
	return Stats{
		Bodies:    len(s.bodies),
		Halted:    s.halted,
		Ticks:     s.ticks,
		TreeNodes: s.treeNodes,
		TreeBuild: s.treeBuild,
		MaxSpeed:  s.maxSpeed,
	}
}
