package octree

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Node is an axis-aligned box of the tree. External nodes hold a payload of
// co-located bodies and no children; internal nodes hold up to eight children
// and only the aggregate of their subtree.
type Node[T any] struct {
	min, max r3.Vec
	children [8]*Node[T]
	sum      r3.Vec
	mass     float64
	items    []Item[T]
	internal bool
}

func newNode[T any](min, max r3.Vec) *Node[T] {
	return &Node[T]{min: min, max: max}
}

func (n *Node[T]) accumulate(pos r3.Vec, mass float64) {
	n.sum = r3.Add(n.sum, r3.Scale(mass, pos))
	n.mass += mass
}

// External reports whether n is a leaf.
func (n *Node[T]) External() bool { return !n.internal }

// Mass returns the aggregate mass of the subtree.
func (n *Node[T]) Mass() float64 { return n.mass }

// MassCenter returns the mass-weighted mean position of the subtree.
func (n *Node[T]) MassCenter() r3.Vec {
	return r3.Scale(1/math.Max(n.mass, MinMass), n.sum)
}

// Items returns the bodies stored in a leaf. It is empty for internal nodes.
func (n *Node[T]) Items() []Item[T] { return n.items }

// Width returns the extent of the box along X.
func (n *Node[T]) Width() float64 { return n.max.X - n.min.X }

// Min and Max return the box corners.
func (n *Node[T]) Min() r3.Vec { return n.min }
func (n *Node[T]) Max() r3.Vec { return n.max }

// Contains reports whether a body at pos would be routed into this box. Boxes
// are half open, [min, max), except along the outer faces of the root.
func (n *Node[T]) Contains(pos r3.Vec) bool {
	return span(pos.X, n.min.X, n.max.X) &&
		span(pos.Y, n.min.Y, n.max.Y) &&
		span(pos.Z, n.min.Z, n.max.Z)
}

// Encloses reports whether other lies in n's subtree. Boxes of the tree are
// either nested or disjoint, so this holds iff n's box covers other's box.
// Unlike Contains it does not depend on where a body's position falls.
func (n *Node[T]) Encloses(other *Node[T]) bool {
	return n.min.X <= other.min.X && other.max.X <= n.max.X &&
		n.min.Y <= other.min.Y && other.max.Y <= n.max.Y &&
		n.min.Z <= other.min.Z && other.max.Z <= n.max.Z
}

func span(v, lo, hi float64) bool {
	return v >= lo && (v < hi || (v == hi && hi == Bound))
}

// Child returns the octant selected by x, y, z in {0, 1}, where 0 is the lower
// half of the axis. It may be nil.
func (n *Node[T]) Child(x, y, z int) *Node[T] {
	return n.children[index(x, y, z)]
}

// Children returns the eight child slots.
func (n *Node[T]) Children() [8]*Node[T] { return n.children }

func (n *Node[T]) division() r3.Vec {
	return r3.Vec{
		X: (n.max.X + n.min.X) / 2,
		Y: (n.max.Y + n.min.Y) / 2,
		Z: (n.max.Z + n.min.Z) / 2,
	}
}

func (n *Node[T]) octant(pos r3.Vec) (x, y, z int) {
	d := n.division()
	if pos.X >= d.X {
		x = 1
	}
	if pos.Y >= d.Y {
		y = 1
	}
	if pos.Z >= d.Z {
		z = 1
	}
	return x, y, z
}

func (n *Node[T]) childMin(x, y, z int) r3.Vec {
	d := n.division()
	return r3.Vec{X: pick(x, n.min.X, d.X), Y: pick(y, n.min.Y, d.Y), Z: pick(z, n.min.Z, d.Z)}
}

func (n *Node[T]) childMax(x, y, z int) r3.Vec {
	d := n.division()
	return r3.Vec{X: pick(x, d.X, n.max.X), Y: pick(y, d.Y, n.max.Y), Z: pick(z, d.Z, n.max.Z)}
}

func pick(octant int, lower, upper float64) float64 {
	if octant == 0 {
		return lower
	}
	return upper
}
