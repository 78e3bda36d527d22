package engine

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/layout"
)

// Frame is an immutable snapshot of the active level, taken between ticks.
type Frame struct {
	Run   uint64      `json:"run"`
	Tick  int         `json:"tick"`
	Level int         `json:"level"`
	Depth int         `json:"depth"`
	Done  bool        `json:"done"`
	Nodes []NodeState `json:"nodes"`
	Edges []EdgeState `json:"edges"`
}

// NodeState is one body of a frame.
type NodeState struct {
	Label    string     `json:"label"`
	Position [3]float64 `json:"position"`
	Halted   bool       `json:"halted,omitempty"`
}

// EdgeState indexes into Frame.Nodes.
type EdgeState struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Halted returns the number of halted nodes in f.
func (f *Frame) Halted() int {
	n := 0
	for _, s := range f.Nodes {
		if s.Halted {
			n++
		}
	}
	return n
}

func vec(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func snapshot(sim *layout.Simulation) ([]NodeState, []EdgeState) {
	placements := sim.Positions()
	nodes := make([]NodeState, len(placements))
	index := make(map[graph.Node]int, len(placements))
	for i, p := range placements {
		nodes[i] = NodeState{Label: p.Node.String(), Position: vec(p.Position), Halted: p.Halted}
		index[p.Node] = i
	}
	simEdges := sim.Edges()
	edges := make([]EdgeState, 0, len(simEdges))
	for _, e := range simEdges {
		from, ok1 := index[e.From()]
		to, ok2 := index[e.To()]
		if !ok1 || !ok2 {
			continue
		}
		edges = append(edges, EdgeState{From: from, To: to})
	}
	return nodes, edges
}
