package coarsen

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/layout"
)

// BenchmarkCoarsen measures building the full level stack.
func BenchmarkCoarsen(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		g := graph.New()
		graph.Generate(g, graph.GenerateOptions{Nodes: n, Edges: n * 3 / 2, Directionless: true}, rand.New(rand.NewSource(1)))
		c, err := New(Options{Params: layout.DefaultParams(), Rand: rand.New(rand.NewSource(2))})
		if err != nil {
			b.Fatal(err)
		}
		b.Run(fmt.Sprintf("N=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := c.Coarsen(context.Background(), g); err != nil {
					b.Fatal(err)
				}
			}
			b.ReportMetric(float64(c.Levels()), "levels")
		})
	}
}

// BenchmarkMatch measures one greedy matching pass.
func BenchmarkMatch(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		g := graph.New()
		graph.Generate(g, graph.GenerateOptions{Nodes: n, Edges: n * 3 / 2, Directionless: true}, rand.New(rand.NewSource(1)))
		b.Run(fmt.Sprintf("N=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				newRunContext().match(g)
			}
		})
	}
}
