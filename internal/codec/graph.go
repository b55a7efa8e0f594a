package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"ccgraph/internal/domain"
)

// GraphVertex is one vertex of a GraphDocument. Seeds that were not
// themselves discovered carry no connection counts.
type GraphVertex struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	IsSeed      bool    `json:"is_seed"`
	Connections int     `json:"connections,omitempty"`
	Percentage  float64 `json:"percentage,omitempty"`
}

// GraphDocument is a directed graph with dense vertex indices, the shape
// graph libraries load without a name lookup.
type GraphDocument struct {
	Directed bool           `json:"directed"`
	Vertices []GraphVertex  `json:"vertices"`
	Edges    [][2]int       `json:"edges"`
	NameMap  map[string]int `json:"name_map"`
}

// BuildGraph indexes every domain named by the result's nodes, seeds and
// edges. Indices follow name order so the same result always maps the same
// way.
func BuildGraph(result *domain.DiscoveryResult) GraphDocument {
	nodes := result.Nodes()
	seeds := result.Seeds()
	edges := result.Edges()

	names := make(map[string]struct{})
	for _, n := range nodes {
		names[n.Domain] = struct{}{}
	}
	for _, s := range seeds {
		names[s] = struct{}{}
	}
	for _, e := range edges {
		names[e.Source] = struct{}{}
		names[e.Target] = struct{}{}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	doc := GraphDocument{
		Directed: true,
		Vertices: make([]GraphVertex, len(sorted)),
		Edges:    make([][2]int, 0, len(edges)),
		NameMap:  make(map[string]int, len(sorted)),
	}
	for i, name := range sorted {
		doc.NameMap[name] = i
		doc.Vertices[i] = GraphVertex{Index: i, Name: name, IsSeed: result.IsSeed(name)}
	}
	for _, n := range nodes {
		v := &doc.Vertices[doc.NameMap[n.Domain]]
		v.Connections = n.Connections
		v.Percentage = n.Percentage
	}
	for _, e := range edges {
		doc.Edges = append(doc.Edges, [2]int{doc.NameMap[e.Source], doc.NameMap[e.Target]})
	}
	return doc
}

// GraphCodec writes a GraphDocument as JSON
type GraphCodec struct{}

// NewGraphCodec creates a new graph codec
func NewGraphCodec() *GraphCodec {
	return &GraphCodec{}
}

// Format returns the codec format identifier
func (c *GraphCodec) Format() string {
	return "graph"
}

// Export writes the indexed graph
func (c *GraphCodec) Export(result *domain.DiscoveryResult, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(BuildGraph(result)); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}

	return nil
}
