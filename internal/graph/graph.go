package graph

import (
	"errors"
	"slices"
)

// Sentinel errors for graph queries.
var (
	// ErrEmptyGraph is returned when a random node is requested from an empty graph.
	ErrEmptyGraph = errors.New("graph: graph is empty")

	// ErrNoEdges is returned when a random edge is requested for a node without
	// incident edges (or a node that is not in the graph).
	ErrNoEdges = errors.New("graph: node has no edges")
)

// Rand is the random source consumed by the graph helpers.
// *rand.Rand from golang.org/x/exp/rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// store holds forward and reverse adjacency for one graph. Every edge is kept
// in out[from] and in[to]; directionless edges are also kept in out[to] and
// in[from]. set holds every stored edge once, in stored orientation.
type store struct {
	out   map[Node][]Edge
	in    map[Node][]Edge
	set   map[Edge]struct{}
	order []Node
}

func newStore() *store {
	return &store{
		out: make(map[Node][]Edge),
		in:  make(map[Node][]Edge),
		set: make(map[Edge]struct{}),
	}
}

// Graph is a multigraph mixing directed and directionless edges. A Graph value
// is either the forward view of its store or, when obtained from Transpose, the
// reversed view of the same store. Graph is not safe for concurrent mutation.
type Graph struct {
	s        *store
	reversed bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{s: newStore()}
}

// Transpose returns a view of the same store with every directed edge
// reversed. Directionless edges are unaffected. Mutations through either view
// are visible through the other.
func (g *Graph) Transpose() *Graph {
	return &Graph{s: g.s, reversed: !g.reversed}
}

// Reversed reports whether g is a transposed view.
func (g *Graph) Reversed() bool { return g.reversed }

func (g *Graph) forward() map[Node][]Edge {
	if g.reversed {
		return g.s.in
	}
	return g.s.out
}

func (g *Graph) backward() map[Node][]Edge {
	if g.reversed {
		return g.s.out
	}
	return g.s.in
}

// view maps a stored edge to the orientation seen through g.
func (g *Graph) view(e Edge) Edge {
	if g.reversed {
		return Flip(e)
	}
	return e
}

// AddNode adds n if it is not already present.
func (g *Graph) AddNode(n Node) {
	if _, ok := g.s.out[n]; ok {
		return
	}
	g.s.out[n] = nil
	g.s.in[n] = nil
	g.s.order = append(g.s.order, n)
}

// AddEdge adds e and its endpoints. Adding an edge that is already present is a
// no-op.
func (g *Graph) AddEdge(e Edge) {
	e = g.view(e)
	g.AddNode(e.from)
	g.AddNode(e.to)
	if _, ok := g.s.set[e]; ok {
		return
	}
	g.s.set[e] = struct{}{}
	g.s.out[e.from] = append(g.s.out[e.from], e)
	g.s.in[e.to] = append(g.s.in[e.to], e)
	if e.directionless && e.from != e.to {
		g.s.out[e.to] = append(g.s.out[e.to], e)
		g.s.in[e.from] = append(g.s.in[e.from], e)
	}
}

// Add merges other into g: every node first, then every edge.
func (g *Graph) Add(other *Graph) {
	for _, n := range other.Nodes() {
		g.AddNode(n)
	}
	for _, e := range other.Edges() {
		g.AddEdge(e)
	}
}

// RemoveNode removes n together with every incident edge, including the
// entries kept by the opposite endpoints. It returns false if n was absent.
func (g *Graph) RemoveNode(n Node) bool {
	if _, ok := g.s.out[n]; !ok {
		return false
	}
	for _, e := range g.incident(n) {
		if o, _ := e.Other(n); o != n {
			g.s.out[o] = without(g.s.out[o], e)
			g.s.in[o] = without(g.s.in[o], e)
		}
		delete(g.s.set, e)
	}
	delete(g.s.out, n)
	delete(g.s.in, n)
	if i := slices.Index(g.s.order, n); i >= 0 {
		g.s.order = slices.Delete(g.s.order, i, i+1)
	}
	return true
}

// RemoveEdge removes e from both endpoints. It returns true iff e was present.
func (g *Graph) RemoveEdge(e Edge) bool {
	e = g.view(e)
	if _, ok := g.s.set[e]; !ok {
		return false
	}
	delete(g.s.set, e)
	g.s.out[e.from] = without(g.s.out[e.from], e)
	g.s.in[e.to] = without(g.s.in[e.to], e)
	if e.directionless && e.from != e.to {
		g.s.out[e.to] = without(g.s.out[e.to], e)
		g.s.in[e.from] = without(g.s.in[e.from], e)
	}
	return true
}

// RemoveGraph removes every edge of other from g. Nodes are kept, so the
// node count never changes; the result is true iff at least one edge was
// removed.
func (g *Graph) RemoveGraph(other *Graph) bool {
	removed := false
	for _, e := range other.Edges() {
		if g.RemoveEdge(e) {
			removed = true
		}
	}
	return removed
}

// NeighbourEdges returns the edges leaving n in this view's direction,
// oriented so that From() == n for directed edges. It is empty for absent nodes.
func (g *Graph) NeighbourEdges(n Node) []Edge {
	list := g.forward()[n]
	if len(list) == 0 {
		return nil
	}
	out := make([]Edge, len(list))
	for i, e := range list {
		out[i] = g.view(e)
	}
	return out
}

// NeighbourNodes returns the opposite endpoint of every edge in NeighbourEdges.
func (g *Graph) NeighbourNodes(n Node) []Node {
	list := g.forward()[n]
	if len(list) == 0 {
		return nil
	}
	out := make([]Node, 0, len(list))
	for _, e := range list {
		if o, ok := e.Other(n); ok {
			out = append(out, o)
		}
	}
	return out
}

// IncidentEdges returns every edge touching n regardless of direction, each
// edge once, in this view's orientation.
func (g *Graph) IncidentEdges(n Node) []Edge {
	list := g.incident(n)
	for i, e := range list {
		list[i] = g.view(e)
	}
	return list
}

// incident returns the stored edges touching n, each once. Directionless
// edges and self-loops are listed on both sides of n, so the backward list
// only contributes directed edges arriving from another node.
func (g *Graph) incident(n Node) []Edge {
	fwd, bwd := g.forward()[n], g.backward()[n]
	out := make([]Edge, 0, len(fwd)+len(bwd))
	out = append(out, fwd...)
	for _, e := range bwd {
		if e.directionless || e.from == e.to {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Contains reports whether n is a node of g.
func (g *Graph) Contains(n Node) bool {
	_, ok := g.s.out[n]
	return ok
}

// ContainsEdge reports whether e (in this view's orientation) is an edge of g.
func (g *Graph) ContainsEdge(e Edge) bool {
	_, ok := g.s.set[g.view(e)]
	return ok
}

// Size returns the number of nodes.
func (g *Graph) Size() int { return len(g.s.order) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return len(g.s.set) }

// IsEmpty reports whether g has no nodes.
func (g *Graph) IsEmpty() bool { return g.Size() == 0 }

// Clear removes every node and edge. Transposed views share the cleared store.
func (g *Graph) Clear() {
	clear(g.s.out)
	clear(g.s.in)
	clear(g.s.set)
	g.s.order = nil
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	return slices.Clone(g.s.order)
}

// Edges returns every distinct edge once, in this view's orientation.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.s.set))
	for _, n := range g.s.order {
		for _, e := range g.s.out[n] {
			// directionless edges are listed under both endpoints; keep the
			// canonical one.
			if e.directionless && e.from != n {
				continue
			}
			out = append(out, g.view(e))
		}
	}
	return out
}

// RandomNode returns a uniformly chosen node.
func (g *Graph) RandomNode(rng Rand) (Node, error) {
	if g.IsEmpty() {
		return Node{}, ErrEmptyGraph
	}
	return g.s.order[rng.Intn(len(g.s.order))], nil
}

// RandomEdge returns a uniformly chosen edge from NeighbourEdges(n).
func (g *Graph) RandomEdge(n Node, rng Rand) (Edge, error) {
	list := g.forward()[n]
	if len(list) == 0 {
		return Edge{}, ErrNoEdges
	}
	return g.view(list[rng.Intn(len(list))]), nil
}

func without(list []Edge, e Edge) []Edge {
	if i := slices.Index(list, e); i >= 0 {
		return slices.Delete(list, i, i+1)
	}
	return list
}
