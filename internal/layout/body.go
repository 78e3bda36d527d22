package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/onnwee/graphvis3d/internal/graph"
	"github.com/onnwee/graphvis3d/internal/octree"
)

// Rand is the random source used for seeding and symmetry breaking.
// *rand.Rand from golang.org/x/exp/rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Body is the simulation state of one graph node.
type Body struct {
	Node         graph.Node
	Position     r3.Vec
	Velocity     r3.Vec
	Acceleration r3.Vec
	Temperature  float64
	halted       bool

	// leaf holds the body in the octree of the current tick.
	leaf *octree.Node[*Body]
}

// Halted reports whether the body has come to rest.
func (b *Body) Halted() bool { return b.halted }

// Speed returns the magnitude of the velocity.
func (b *Body) Speed() float64 { return r3.Norm(b.Velocity) }

// RandomUnitVector returns a direction uniformly distributed on the unit sphere.
func RandomUnitVector(rng Rand) r3.Vec {
	angle := rng.Float64() * 2 * math.Pi
	z := rng.Float64()*2 - 1
	r := math.Sqrt(1 - z*z)
	return r3.Vec{X: r * math.Cos(angle), Y: r * math.Sin(angle), Z: z}
}

// RandomPoint returns a point uniformly distributed in the ball of the given radius.
func RandomPoint(rng Rand, radius float64) r3.Vec {
	return r3.Scale(radius*math.Cbrt(rng.Float64()), RandomUnitVector(rng))
}
