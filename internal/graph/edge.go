package graph

import "fmt"

// Edge connects two nodes and carries a label. Directed edges compare as an
// ordered pair; directionless edges store their endpoints in a canonical order,
// so Edge(a, b, l) == Edge(b, a, l) holds with plain ==.
type Edge struct {
	from          Node
	to            Node
	label         any
	directionless bool
}

// NewEdge returns a directed edge from -> to.
func NewEdge(from, to Node, label any) Edge {
	return Edge{from: from, to: to, label: label}
}

// NewUndirectedEdge returns a directionless edge between a and b.
func NewUndirectedEdge(a, b Node, label any) Edge {
	if a != b && less(b, a) {
		a, b = b, a
	}
	return Edge{from: a, to: b, label: label, directionless: true}
}

func (e Edge) From() Node          { return e.from }
func (e Edge) To() Node            { return e.to }
func (e Edge) Label() any          { return e.label }
func (e Edge) Directionless() bool { return e.directionless }

// Has reports whether n is one of the edge's endpoints.
func (e Edge) Has(n Node) bool {
	return e.from == n || e.to == n
}

// Other returns the endpoint that is not n. The second result is false when n
// is not an endpoint of e. For a self-loop the node itself is returned.
func (e Edge) Other(n Node) (Node, bool) {
	switch n {
	case e.from:
		return e.to, true
	case e.to:
		return e.from, true
	}
	return Node{}, false
}

func (e Edge) String() string {
	arrow := "->"
	if e.directionless {
		arrow = "--"
	}
	return fmt.Sprintf("%v%s%v[%v]", e.from, arrow, e.to, e.label)
}

// Flip swaps the endpoints of a directed edge. Directionless edges are returned
// unchanged, so Flip(Flip(e)) == e for every edge.
func Flip(e Edge) Edge {
	if e.directionless {
		return e
	}
	return Edge{from: e.to, to: e.from, label: e.label}
}
