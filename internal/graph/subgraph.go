package graph

// Subgraphs partitions g into connected components. Reachability ignores edge
// direction. Every node and every edge of g ends up in exactly one component.
// Components are seeded in node insertion order.
func (g *Graph) Subgraphs() []*Graph {
	remaining := make(map[Node]struct{}, g.Size())
	for _, n := range g.s.order {
		remaining[n] = struct{}{}
	}

	var result []*Graph
	var stack []Node
	for _, seed := range g.s.order {
		if _, ok := remaining[seed]; !ok {
			continue
		}
		component := New()
		result = append(result, component)
		stack = append(stack[:0], seed)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := remaining[cur]; !ok {
				continue
			}
			delete(remaining, cur)
			component.AddNode(cur)
			for _, e := range g.NeighbourEdges(cur) {
				component.AddEdge(e)
			}
			for _, e := range g.incident(cur) {
				if o, _ := e.Other(cur); o != cur {
					if _, ok := remaining[o]; ok {
						stack = append(stack, o)
					}
				}
			}
		}
	}
	return result
}

// ComponentCount returns len(g.Subgraphs()) without building the component graphs.
func (g *Graph) ComponentCount() int {
	seen := make(map[Node]struct{}, g.Size())
	count := 0
	var stack []Node
	for _, seed := range g.s.order {
		if _, ok := seen[seed]; ok {
			continue
		}
		count++
		seen[seed] = struct{}{}
		stack = append(stack[:0], seed)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, e := range g.incident(cur) {
				o, _ := e.Other(cur)
				if _, ok := seen[o]; !ok {
					seen[o] = struct{}{}
					stack = append(stack, o)
				}
			}
		}
	}
	return count
}
