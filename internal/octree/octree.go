// Package octree implements the Barnes-Hut accumulator used by the layout:
// a lazily subdivided octree whose internal nodes carry the aggregate mass and
// mass-weighted position sum of their subtree.
package octree

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// Bound is the half-extent of the root box on every axis.
	Bound = math.MaxFloat32

	// DefaultMergeTolerance is the distance under which bodies share a leaf.
	DefaultMergeTolerance = 1e-3

	// MinMass floors the divisor in MassCenter.
	MinMass = 1e-3
)

// ErrInvalidPosition is returned for positions that are not finite or lie
// outside the root box.
var ErrInvalidPosition = errors.New("octree: position is not finite or out of bounds")

// Item is one body stored in a leaf.
type Item[T any] struct {
	Value    T
	Position r3.Vec
	Mass     float64
}

// Tree is a Barnes-Hut octree over bodies carrying values of type T.
// It is built once per tick and is not safe for concurrent mutation.
type Tree[T any] struct {
	root      *Node[T]
	tolerance float64
	bodies    int
	nodes     int
}

// New returns an empty tree whose root spans [-Bound, Bound] on every axis.
// Bodies closer than tolerance to a leaf's mass center are merged into that
// leaf; a non-positive tolerance selects DefaultMergeTolerance.
func New[T any](tolerance float64) *Tree[T] {
	if tolerance <= 0 {
		tolerance = DefaultMergeTolerance
	}
	return &Tree[T]{
		root:      newNode[T](r3.Vec{X: -Bound, Y: -Bound, Z: -Bound}, r3.Vec{X: Bound, Y: Bound, Z: Bound}),
		tolerance: tolerance,
		nodes:     1,
	}
}

// Root returns the root node.
func (t *Tree[T]) Root() *Node[T] { return t.root }

// Len returns the number of bodies inserted.
func (t *Tree[T]) Len() int { return t.bodies }

// NodeCount returns the number of allocated nodes.
func (t *Tree[T]) NodeCount() int { return t.nodes }

// Tolerance returns the merge tolerance.
func (t *Tree[T]) Tolerance() float64 { return t.tolerance }

// AddBody inserts a body. Every internal node on the path from the root
// accumulates the body's mass and mass-weighted position. A leaf that already
// holds bodies either absorbs the new body, when it lies within the merge
// tolerance of the leaf's mass center, or is split and both payloads are pushed
// one level down.
func (t *Tree[T]) AddBody(value T, pos r3.Vec, mass float64) error {
	if !valid(pos) {
		return ErrInvalidPosition
	}
	item := Item[T]{Value: value, Position: pos, Mass: mass}
	node := t.root
	for {
		if node.internal {
			node.accumulate(pos, mass)
			node = t.child(node, pos)
			continue
		}
		if len(node.items) == 0 {
			node.accumulate(pos, mass)
			node.items = append(node.items, item)
			break
		}
		center := node.MassCenter()
		if r3.Norm(r3.Sub(center, pos)) < t.tolerance {
			node.accumulate(pos, mass)
			node.items = append(node.items, item)
			break
		}

		// Split: the old payload moves down as a unit, keeping its aggregate.
		moved := t.child(node, center)
		moved.items, moved.sum, moved.mass = node.items, node.sum, node.mass
		node.items = nil
		node.internal = true
		node.accumulate(pos, mass)
		node = t.child(node, pos)
	}
	t.bodies++
	return nil
}

// child returns the octant of n containing pos, allocating it on demand.
func (t *Tree[T]) child(n *Node[T], pos r3.Vec) *Node[T] {
	x, y, z := n.octant(pos)
	i := index(x, y, z)
	if n.children[i] == nil {
		n.children[i] = newNode[T](n.childMin(x, y, z), n.childMax(x, y, z))
		t.nodes++
	}
	return n.children[i]
}

// ForEach walks the tree depth-first from the root and calls visit for every
// node that can stand in for its whole subtree as seen from pos: leaves, and
// internal nodes with width/distance(massCenter, pos) < threshold. Other nodes
// are opened and their children visited instead. Empty nodes are skipped.
func (t *Tree[T]) ForEach(pos r3.Vec, threshold float64, visit func(*Node[T])) {
	stack := make([]*Node[T], 0, 64)
	stack = append(stack, t.root)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.mass == 0 && len(n.items) == 0 {
			continue
		}
		if !n.internal || n.Width() < threshold*r3.Norm(r3.Sub(n.MassCenter(), pos)) {
			visit(n)
			continue
		}
		for _, c := range n.children {
			if c != nil {
				stack = append(stack, c)
			}
		}
	}
}

// Leaves calls visit for every leaf holding bodies. A body inserted within the
// merge tolerance of a leaf is kept in that leaf even when its own position
// falls in a neighbouring box.
func (t *Tree[T]) Leaves(visit func(*Node[T])) {
	stack := []*Node[T]{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !n.internal {
			if len(n.items) > 0 {
				visit(n)
			}
			continue
		}
		for _, c := range n.children {
			if c != nil {
				stack = append(stack, c)
			}
		}
	}
}

func valid(p r3.Vec) bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.Abs(v) > Bound {
			return false
		}
	}
	return true
}

func index(x, y, z int) int {
	return x + 2*(y+2*z)
}
