package graph

// GenerateOptions controls Generate.
type GenerateOptions struct {
	// Nodes is the number of nodes to create.
	Nodes int
	// Edges is the approximate number of edges. The random spanning tree built
	// first already yields about Nodes-1 edges; extra edges are added on top.
	Edges int
	// Directionless selects undirected edges.
	Directionless bool
	// NodeLabel and EdgeLabel produce labels from a running index. Both default
	// to the index itself.
	NodeLabel func(i int) any
	EdgeLabel func(i int) any
}

// maxGenerateAttempts bounds the search for extra edges on dense requests.
const maxGenerateAttempts = 16

// Generate clears g and fills it with a random graph: each new node is linked
// to a uniformly chosen existing node, then random node pairs are linked until
// roughly opts.Edges edges exist.
func Generate(g *Graph, opts GenerateOptions, rng Rand) {
	nodeLabel, edgeLabel := opts.NodeLabel, opts.EdgeLabel
	if nodeLabel == nil {
		nodeLabel = func(i int) any { return i }
	}
	if edgeLabel == nil {
		edgeLabel = func(i int) any { return i }
	}
	link := func(a, b Node, i int) Edge {
		if opts.Directionless {
			return NewUndirectedEdge(a, b, edgeLabel(i))
		}
		return NewEdge(a, b, edgeLabel(i))
	}

	g.Clear()
	e := 0
	for i := 0; i < opts.Nodes; i++ {
		cur := NewNode(nodeLabel(i))
		g.AddNode(cur)
		other, err := g.RandomNode(rng)
		if err != nil || other == cur {
			continue
		}
		g.AddEdge(link(cur, other, e))
		e++
	}

	if g.Size() < 2 {
		return
	}
	for attempts := 0; g.EdgeCount() < opts.Edges && attempts < opts.Edges*maxGenerateAttempts; attempts++ {
		a, _ := g.RandomNode(rng)
		b, _ := g.RandomNode(rng)
		if a == b {
			continue
		}
		g.AddEdge(link(a, b, e))
		e++
	}
}
