package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DiscoveredNode is a neighbor that passed the connection threshold.
type DiscoveredNode struct {
	Domain      string  `json:"domain" yaml:"domain"`
	Connections int     `json:"connections" yaml:"connections"`
	Percentage  float64 `json:"percentage" yaml:"percentage"`
}

// DiscoveryEdge is a directed link between a discovered node and a seed.
type DiscoveryEdge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Percentage returns connections as a share of seeds, rounded to two
// decimal places. Exact ties round to even, so 1 of 32 is 3.12. Zero seeds
// yields zero.
func Percentage(connections, seeds int) float64 {
	if seeds <= 0 {
		return 0
	}
	p := float64(connections) * 100 / float64(seeds)
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(p, 'f', 2, 64), 64)
	return rounded
}

// DiscoveryResult is the immutable outcome of a discovery query.
// Accessors return copies; a result is never modified after construction.
type DiscoveryResult struct {
	nodes []DiscoveredNode
	edges []DiscoveryEdge
	seeds []string
}

// NewDiscoveryResult builds a result from already ordered parts.
// The slices are copied.
func NewDiscoveryResult(nodes []DiscoveredNode, edges []DiscoveryEdge, seeds []string) *DiscoveryResult {
	r := &DiscoveryResult{
		nodes: make([]DiscoveredNode, len(nodes)),
		edges: make([]DiscoveryEdge, len(edges)),
		seeds: make([]string, len(seeds)),
	}
	copy(r.nodes, nodes)
	copy(r.edges, edges)
	copy(r.seeds, seeds)
	return r
}

// EmptyResult returns a result with no nodes, edges or seeds.
func EmptyResult() *DiscoveryResult {
	return NewDiscoveryResult(nil, nil, nil)
}

// Nodes returns discovered nodes sorted by connections, descending.
func (r *DiscoveryResult) Nodes() []DiscoveredNode {
	out := make([]DiscoveredNode, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Edges returns the node/seed edges in discovery order.
func (r *DiscoveryResult) Edges() []DiscoveryEdge {
	out := make([]DiscoveryEdge, len(r.edges))
	copy(out, r.edges)
	return out
}

// Seeds returns the seed domains the result was computed from.
func (r *DiscoveryResult) Seeds() []string {
	out := make([]string, len(r.seeds))
	copy(out, r.seeds)
	return out
}

// Len is the number of discovered nodes.
func (r *DiscoveryResult) Len() int {
	return len(r.nodes)
}

// IsSeed reports whether domain is one of the result's seeds.
func (r *DiscoveryResult) IsSeed(domain string) bool {
	for _, s := range r.seeds {
		if s == domain {
			return true
		}
	}
	return false
}

// Field returns one of "nodes", "edges" or "seeds" by name.
func (r *DiscoveryResult) Field(name string) (any, error) {
	switch name {
	case "nodes":
		return r.Nodes(), nil
	case "edges":
		return r.Edges(), nil
	case "seeds":
		return r.Seeds(), nil
	default:
		return nil, fmt.Errorf("unknown result field %q", name)
	}
}

func (r *DiscoveryResult) String() string {
	return fmt.Sprintf("DiscoveryResult(%d nodes, %d edges, %d seeds)",
		len(r.nodes), len(r.edges), len(r.seeds))
}

// ResultDocument is the serializable form of a DiscoveryResult.
type ResultDocument struct {
	Nodes []DiscoveredNode `json:"nodes" yaml:"nodes"`
	Edges []DiscoveryEdge  `json:"edges" yaml:"edges"`
	Seeds []string         `json:"seeds" yaml:"seeds"`
}

// Document returns a copy of the result as a plain struct. Empty parts
// are empty slices, never nil.
func (r *DiscoveryResult) Document() ResultDocument {
	return ResultDocument{
		Nodes: r.Nodes(),
		Edges: r.Edges(),
		Seeds: r.Seeds(),
	}
}

// Result turns a decoded document back into a DiscoveryResult.
func (d ResultDocument) Result() *DiscoveryResult {
	return NewDiscoveryResult(d.Nodes, d.Edges, d.Seeds)
}

// MarshalJSON implements json.Marshaler
func (r *DiscoveryResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Document())
}

// UnmarshalJSON implements json.Unmarshaler
func (r *DiscoveryResult) UnmarshalJSON(data []byte) error {
	var doc ResultDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*r = *doc.Result()
	return nil
}
