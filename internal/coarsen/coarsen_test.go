package coarsen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/layout"
)

func node(label any) graph.Node { return graph.NewNode(label) }

func undirected(a, b any) graph.Edge {
	return graph.NewUndirectedEdge(node(a), node(b), nil)
}

func newCoarsener(t *testing.T, maxLevels int) *Coarsener {
	t.Helper()
	c, err := New(Options{
		Params:    layout.DefaultParams(),
		Rand:      rand.New(rand.NewSource(1)),
		MaxLevels: maxLevels,
	})
	require.NoError(t, err)
	return c
}

// path adds the nodes first so that matching visits them in label order.
func path(labels ...string) *graph.Graph {
	g := graph.New()
	for _, l := range labels {
		g.AddNode(node(l))
	}
	for i := 0; i+1 < len(labels); i++ {
		g.AddEdge(undirected(labels[i], labels[i+1]))
	}
	return g
}

func TestPathOfThree(t *testing.T) {
	g := path("A", "B", "C")
	run := newRunContext()
	coarse := run.match(g)

	require.Equal(t, 2, coarse.Size())
	require.Equal(t, 1, coarse.EdgeCount())

	nodes := coarse.Nodes()
	assert.Equal(t, &Combiner{First: node("A"), Second: node("B")}, nodes[0].Label())
	assert.Equal(t, &Wrapper{Node: node("C")}, nodes[1].Label())

	e := coarse.Edges()[0]
	assert.True(t, e.Has(nodes[0]) && e.Has(nodes[1]))
	assert.IsType(t, Link(0), e.Label())

	for _, n := range g.Nodes() {
		_, ok := run.parent[n]
		assert.True(t, ok, "%v has no parent", n)
	}
}

func TestParallelCoarseEdgesSurvive(t *testing.T) {
	g := path("A", "B")
	g.AddNode(node("C"))
	g.AddNode(node("D"))
	g.AddEdge(undirected("C", "D"))
	g.AddEdge(undirected("A", "C"))
	g.AddEdge(undirected("B", "D"))

	coarse := newRunContext().match(g)
	assert.Equal(t, 2, coarse.Size())
	require.Equal(t, 2, coarse.EdgeCount(), "both connections between the pairs must be kept")
	edges := coarse.Edges()
	assert.NotEqual(t, edges[0].Label(), edges[1].Label())
}

func TestCoarseNodesCompareByIdentity(t *testing.T) {
	run := newRunContext()
	coarse := run.match(path("A", "B"))
	require.Equal(t, 1, coarse.Size())

	p := coarse.Nodes()[0]
	assert.Equal(t, p, run.parent[node("A")])
	lookalike := graph.NewNode(&Combiner{First: node("A"), Second: node("B")})
	assert.False(t, p == lookalike, "a separately built label is a different coarse node")
	assert.False(t, coarse.Contains(lookalike))
}

func TestLinksAreUniquePerRun(t *testing.T) {
	g := graph.New()
	graph.Generate(g, graph.GenerateOptions{Nodes: 50, Edges: 120, Directionless: true}, rand.New(rand.NewSource(9)))
	run := newRunContext()
	first := run.match(g)
	second := run.match(first)

	seen := map[any]bool{}
	for _, level := range []*graph.Graph{first, second} {
		for _, e := range level.Edges() {
			assert.False(t, seen[e.Label()], "link %v reused", e.Label())
			seen[e.Label()] = true
		}
	}
}

func TestDirectedEdgesMatch(t *testing.T) {
	g := graph.New()
	g.AddEdge(graph.NewEdge(node(1), node(2), nil))
	g.AddEdge(graph.NewEdge(node(3), node(2), nil))

	coarse := newRunContext().match(g)
	require.Equal(t, 2, coarse.Size())
	edges := coarse.Edges()
	require.Len(t, edges, 1)
	assert.False(t, edges[0].Directionless())
	assert.Equal(t, &Wrapper{Node: node(3)}, edges[0].From().Label())
	assert.Equal(t, &Combiner{First: node(1), Second: node(2)}, edges[0].To().Label())
}

func TestSelfLoopsDoNotMatch(t *testing.T) {
	g := graph.New()
	g.AddEdge(undirected("A", "A"))
	g.AddNode(node("B"))

	coarse := newRunContext().match(g)
	assert.Equal(t, 2, coarse.Size())
	assert.Zero(t, coarse.EdgeCount())
}

func TestMatchingBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("one pass keeps between ceil(N/2) and N nodes", prop.ForAll(
		func(seed uint64, n, extra int, directionless bool) bool {
			g := graph.New()
			graph.Generate(g, graph.GenerateOptions{Nodes: n, Edges: n - 1 + extra, Directionless: directionless},
				rand.New(rand.NewSource(seed)))
			run := newRunContext()
			coarse := run.match(g)

			if coarse.Size() < (n+1)/2 || coarse.Size() > n {
				return false
			}
			// Every original node sits under exactly one coarse node.
			seen := map[graph.Node]int{}
			for _, p := range coarse.Nodes() {
				for _, child := range Children(p) {
					seen[child]++
					if run.parent[child] != p {
						return false
					}
				}
			}
			if len(seen) != n {
				return false
			}
			for _, count := range seen {
				if count != 1 {
					return false
				}
			}
			return true
		},
		gen.UInt64(),
		gen.IntRange(2, 80),
		gen.IntRange(0, 40),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestCoarsenAndRefine(t *testing.T) {
	ctx := context.Background()
	c := newCoarsener(t, 0)
	assert.Equal(t, Idle, c.State())
	assert.False(t, c.Ready())

	sim, err := c.Coarsen(ctx, path("A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Levels())
	assert.Equal(t, 2, c.Depth())
	assert.Equal(t, Refining, c.State())
	assert.Same(t, sim, c.Current())
	require.Len(t, sim.Bodies(), 1)
	assert.Equal(t, layout.DefaultParams().Temperature*3, sim.Bodies()[0].Temperature)

	_, err = sim.Run(1000)
	require.NoError(t, err)
	parentPos := sim.Bodies()[0].Position

	mid, err := c.Uncoarsen(ctx)
	require.NoError(t, err)
	require.Len(t, mid.Bodies(), 2)
	assert.Equal(t, 1, c.Depth())
	for _, b := range mid.Bodies() {
		assert.Equal(t, parentPos, b.Position, "bodies start at their parent's position")
		assert.Equal(t, layout.DefaultParams().Temperature*2, b.Temperature)
	}

	_, err = mid.Run(1000)
	require.NoError(t, err)
	finest, err := c.Uncoarsen(ctx)
	require.NoError(t, err)
	assert.Len(t, finest.Bodies(), 3)
	assert.Equal(t, Ready, c.State())
	assert.True(t, c.Ready())
	assert.Zero(t, c.Depth())

	for _, b := range finest.Bodies() {
		p, ok := c.Parent(b.Node)
		require.True(t, ok)
		parent, ok := mid.Body(p)
		require.True(t, ok)
		assert.Equal(t, parent.Position, b.Position)
	}

	_, err = c.Uncoarsen(ctx)
	assert.ErrorIs(t, err, ErrNotRefining)
}

func TestStopsAtComponentCount(t *testing.T) {
	g := graph.New()
	for _, tri := range [][3]string{{"a", "b", "c"}, {"x", "y", "z"}} {
		g.AddEdge(undirected(tri[0], tri[1]))
		g.AddEdge(undirected(tri[1], tri[2]))
		g.AddEdge(undirected(tri[2], tri[0]))
	}
	g.AddNode(node("lonely"))

	c := newCoarsener(t, 0)
	sim, err := c.Coarsen(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Levels())
	assert.Len(t, sim.Bodies(), 3)
}

func TestGeneratedGraphsCoarsenToComponentCount(t *testing.T) {
	tests := []struct {
		name          string
		nodes, edges  int
		directionless bool
		isolated      int
	}{
		{"sparse tree", 200, 199, true, 0},
		{"hub heavy", 600, 900, true, 0},
		{"directed", 300, 400, false, 0},
		{"with isolated nodes", 150, 200, true, 5},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graph.New()
			graph.Generate(g, graph.GenerateOptions{Nodes: tt.nodes, Edges: tt.edges, Directionless: tt.directionless},
				rand.New(rand.NewSource(uint64(i+1))))
			for j := 0; j < tt.isolated; j++ {
				g.AddNode(node(fmt.Sprintf("isolated-%d", j)))
			}
			components := g.ComponentCount()

			c := newCoarsener(t, 0)
			sim, err := c.Coarsen(context.Background(), g)
			require.NoError(t, err)
			assert.Len(t, sim.Bodies(), components)
			assert.Equal(t, components, sim.Graph().ComponentCount())
			assert.Greater(t, c.Levels(), 1)
		})
	}
}

func TestMaxLevels(t *testing.T) {
	// A star shrinks by a single node per pass.
	g := graph.New()
	for i := 1; i <= 10; i++ {
		g.AddEdge(undirected(0, i))
	}
	c := newCoarsener(t, 3)
	sim, err := c.Coarsen(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Levels())
	assert.Len(t, sim.Bodies(), 9)

	unlimited := newCoarsener(t, 0)
	sim, err = unlimited.Coarsen(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 11, unlimited.Levels())
	assert.Len(t, sim.Bodies(), 1)
}

func TestEmptyAndTrivialGraphs(t *testing.T) {
	tests := []struct {
		name   string
		graph  *graph.Graph
		bodies int
	}{
		{"empty", graph.New(), 0},
		{"single node", path("solo"), 1},
		{"isolated nodes", func() *graph.Graph {
			g := graph.New()
			g.AddNode(node(1))
			g.AddNode(node(2))
			return g
		}(), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCoarsener(t, 0)
			sim, err := c.Coarsen(context.Background(), tt.graph)
			require.NoError(t, err)
			assert.Equal(t, 1, c.Levels())
			assert.Len(t, sim.Bodies(), tt.bodies)
			assert.True(t, c.Ready())
		})
	}
}

func TestResetDiscardsRun(t *testing.T) {
	ctx := context.Background()
	c := newCoarsener(t, 0)
	_, err := c.Coarsen(ctx, path("A", "B", "C", "D"))
	require.NoError(t, err)
	_, ok := c.Parent(node("A"))
	require.True(t, ok)

	c.Reset()
	assert.Equal(t, Idle, c.State())
	assert.Zero(t, c.Depth())
	assert.Zero(t, c.Levels())
	assert.Nil(t, c.Current())
	_, ok = c.Parent(node("A"))
	assert.False(t, ok)

	// A new run starts from an empty run context.
	_, err = c.Coarsen(ctx, path("P", "Q", "R"))
	require.NoError(t, err)
	_, ok = c.Parent(node("A"))
	assert.False(t, ok)
	_, ok = c.Parent(node("P"))
	assert.True(t, ok)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newCoarsener(t, 0)
	_, err := c.Coarsen(ctx, path("A", "B", "C"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Idle, c.State())
}

func TestMissingParentIsFatal(t *testing.T) {
	ctx := context.Background()
	c := newCoarsener(t, 0)
	_, err := c.Coarsen(ctx, path("A", "B", "C"))
	require.NoError(t, err)

	clear(c.run.parent)
	_, err = c.Uncoarsen(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingParent))
}

func TestUncoarsenBeforeCoarsen(t *testing.T) {
	c := newCoarsener(t, 0)
	_, err := c.Uncoarsen(context.Background())
	assert.ErrorIs(t, err, ErrNotRefining)
}

func TestFullHierarchyCoversGraph(t *testing.T) {
	ctx := context.Background()
	g := graph.New()
	graph.Generate(g, graph.GenerateOptions{Nodes: 60, Edges: 80, Directionless: true}, rand.New(rand.NewSource(4)))

	c := newCoarsener(t, 0)
	sim, err := c.Coarsen(ctx, g)
	require.NoError(t, err)
	require.Greater(t, c.Levels(), 1)
	for !c.Ready() {
		_, err = sim.Run(10_000)
		require.NoError(t, err)
		require.True(t, sim.Halted())
		sim, err = c.Uncoarsen(ctx)
		require.NoError(t, err)
	}
	assert.Len(t, sim.Bodies(), g.Size())
	for _, n := range g.Nodes() {
		_, ok := sim.Body(n)
		assert.True(t, ok, "%v missing from finest level", n)
	}
	assert.Equal(t, g.EdgeCount(), len(sim.Edges()))
}

func TestLabelEncoding(t *testing.T) {
	comb := Combiner{First: node(1), Second: node("b")}
	raw, err := json.Marshal(comb)
	require.NoError(t, err)
	assert.JSONEq(t, `{"f":1,"s":"b"}`, string(raw))

	nested := Wrapper{Node: graph.NewNode(comb)}
	raw, err = json.Marshal(nested)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":{"f":1,"s":"b"}}`, string(raw))

	assert.Equal(t, "{1|b}", comb.String())
	assert.Equal(t, "[{1|b}]", nested.String())
}

func TestLabelHashes(t *testing.T) {
	a, b := node("a"), node("b")
	ab := Combiner{First: a, Second: b}
	assert.Equal(t, ab.Hash(), Combiner{First: a, Second: b}.Hash())
	assert.NotEqual(t, ab.Hash(), Combiner{First: b, Second: a}.Hash())
	assert.NotEqual(t, Wrapper{Node: a}.Hash(), Wrapper{Node: b}.Hash())
	assert.Equal(t, ab.Hash(), graph.NewNode(&ab).Hash())
	assert.Nil(t, Children(a))
	assert.Equal(t, []graph.Node{a, b}, Children(graph.NewNode(&ab)))
	assert.Equal(t, []graph.Node{a}, Children(graph.NewNode(&Wrapper{Node: a})))
}
