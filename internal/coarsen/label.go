package coarsen

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/onnwee/graphvis3d/internal/graph"
)

const (
	combinerTag byte = 'c'
	wrapperTag  byte = 'w'
)

// Combiner labels a coarse node made of two matched children. Coarse nodes
// carry a *Combiner.
type Combiner struct {
	First  graph.Node
	Second graph.Node
}

// Hash mixes the cached child hashes.
func (c Combiner) Hash() uint64 {
	var buf [17]byte
	buf[0] = combinerTag
	binary.LittleEndian.PutUint64(buf[1:], c.First.Hash())
	binary.LittleEndian.PutUint64(buf[9:], c.Second.Hash())
	return xxhash.Sum64(buf[:])
}

func (c Combiner) String() string {
	return fmt.Sprintf("{%v|%v}", c.First, c.Second)
}

// MarshalJSON encodes the children's labels as {"f": first, "s": second}.
func (c Combiner) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		First  any `json:"f"`
		Second any `json:"s"`
	}{c.First.Label(), c.Second.Label()})
}

// Children returns both children.
func (c Combiner) Children() []graph.Node {
	return []graph.Node{c.First, c.Second}
}

// Wrapper labels a coarse node carrying a single unmatched child. Coarse nodes
// carry a *Wrapper.
type Wrapper struct {
	Node graph.Node
}

// Hash tags the child's cached hash.
func (w Wrapper) Hash() uint64 {
	var buf [9]byte
	buf[0] = wrapperTag
	binary.LittleEndian.PutUint64(buf[1:], w.Node.Hash())
	return xxhash.Sum64(buf[:])
}

func (w Wrapper) String() string {
	return fmt.Sprintf("[%v]", w.Node)
}

// MarshalJSON encodes the child's label as {"n": node}.
func (w Wrapper) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Node any `json:"n"`
	}{w.Node.Label()})
}

// Children returns the single child.
func (w Wrapper) Children() []graph.Node {
	return []graph.Node{w.Node}
}

// Children returns the finer-level nodes folded into a coarse node, or nil
// for a node that was not produced by coarsening.
func Children(n graph.Node) []graph.Node {
	switch l := n.Label().(type) {
	case *Combiner:
		return l.Children()
	case *Wrapper:
		return l.Children()
	}
	return nil
}

// Link labels a coarse edge. Every coarse edge of a run gets its own Link.
type Link uint64
