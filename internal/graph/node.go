// Package graph provides the directed/undirected multigraph used as layout input:
// label-identified nodes, labelled edges, forward and reverse adjacency, connected
// component decomposition and random selection helpers.
package graph

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/mitchellh/hashstructure/v2"
)

// Hasher is implemented by labels that can hash themselves cheaply.
// Coarse labels use it so that nesting does not rehash whole subtrees.
type Hasher interface {
	Hash() uint64
}

// Node wraps an immutable label. Two nodes are equal when their labels are equal,
// so Node values can be compared with == and used as map keys. Labels must be
// comparable Go values.
type Node struct {
	label any
	hash  uint64
}

// NewNode creates a node for label.
func NewNode(label any) Node {
	return Node{label: label, hash: hashLabel(label)}
}

// Label returns the node's label.
func (n Node) Label() any { return n.label }

// Hash returns the cached label hash.
func (n Node) Hash() uint64 { return n.hash }

func (n Node) String() string {
	if s, ok := n.label.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(n.label)
}

func hashLabel(label any) uint64 {
	if h, ok := label.(Hasher); ok {
		return h.Hash()
	}
	sum, err := hashstructure.Hash(label, hashstructure.FormatV2, nil)
	if err != nil {
		return xxhash.Sum64String(fmt.Sprintf("%T|%#v", label, label))
	}
	return sum
}

// less orders two distinct nodes deterministically. It is only used to pick a
// canonical endpoint order for directionless edges.
func less(a, b Node) bool {
	if a.hash != b.hash {
		return a.hash < b.hash
	}
	return fmt.Sprintf("%T|%#v", a.label, a.label) < fmt.Sprintf("%T|%#v", b.label, b.label)
}
