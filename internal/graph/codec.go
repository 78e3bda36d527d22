package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireEdge is the JSON form of an Edge.
type wireEdge struct {
	From          json.RawMessage `json:"from"`
	To            json.RawMessage `json:"to"`
	Label         json.RawMessage `json:"label,omitempty"`
	Directionless bool            `json:"directionless,omitempty"`
}

type wireGraph struct {
	Nodes []json.RawMessage `json:"nodes"`
	Edges []wireEdge        `json:"edges"`
}

// MarshalJSON encodes e in the same form Graph uses for its edge list. Coarse
// graphs label their edges with the edge they were derived from, so edge
// labels nest.
func (e Edge) MarshalJSON() ([]byte, error) {
	w, err := encodeEdge(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func encodeEdge(e Edge) (wireEdge, error) {
	from, err := json.Marshal(e.From().Label())
	if err != nil {
		return wireEdge{}, fmt.Errorf("encode edge %v: %w", e, err)
	}
	to, err := json.Marshal(e.To().Label())
	if err != nil {
		return wireEdge{}, fmt.Errorf("encode edge %v: %w", e, err)
	}
	var label json.RawMessage
	if e.Label() != nil {
		if label, err = json.Marshal(e.Label()); err != nil {
			return wireEdge{}, fmt.Errorf("encode edge %v: %w", e, err)
		}
	}
	return wireEdge{From: from, To: to, Label: label, Directionless: e.Directionless()}, nil
}

// MarshalJSON encodes the node and edge sets of g. Only the forward
// orientation of the store is written.
func (g *Graph) MarshalJSON() ([]byte, error) {
	fwd := g
	if g.reversed {
		fwd = g.Transpose()
	}
	w := wireGraph{
		Nodes: make([]json.RawMessage, 0, fwd.Size()),
		Edges: make([]wireEdge, 0, fwd.EdgeCount()),
	}
	for _, n := range fwd.Nodes() {
		raw, err := json.Marshal(n.Label())
		if err != nil {
			return nil, fmt.Errorf("encode node %v: %w", n, err)
		}
		w.Nodes = append(w.Nodes, raw)
	}
	for _, e := range fwd.Edges() {
		we, err := encodeEdge(e)
		if err != nil {
			return nil, err
		}
		w.Edges = append(w.Edges, we)
	}
	return json.Marshal(w)
}

// UnmarshalJSON adds the encoded nodes and edges to g. Existing content is
// kept; call Clear first to replace it.
func (g *Graph) UnmarshalJSON(data []byte) error {
	if g.s == nil {
		g.s = newStore()
	}
	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}
	for _, raw := range w.Nodes {
		label, err := DecodeLabel(raw)
		if err != nil {
			return err
		}
		g.AddNode(NewNode(label))
	}
	for _, we := range w.Edges {
		from, err := DecodeLabel(we.From)
		if err != nil {
			return err
		}
		to, err := DecodeLabel(we.To)
		if err != nil {
			return err
		}
		var label any
		if len(we.Label) > 0 {
			if label, err = DecodeLabel(we.Label); err != nil {
				return err
			}
		}
		if we.Directionless {
			g.AddEdge(NewUndirectedEdge(NewNode(from), NewNode(to), label))
		} else {
			g.AddEdge(NewEdge(NewNode(from), NewNode(to), label))
		}
	}
	return nil
}

// DecodeLabel turns raw JSON into a comparable label. Numbers decode as
// json.Number; objects and arrays, which are not comparable, decode as their
// compact JSON text.
func DecodeLabel(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode label %s: %w", raw, err)
	}
	switch v.(type) {
	case map[string]any, []any:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, fmt.Errorf("compact label: %w", err)
		}
		return buf.String(), nil
	}
	return v, nil
}
