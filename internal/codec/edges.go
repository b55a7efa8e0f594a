package codec

import (
	"bufio"
	"fmt"
	"io"

	"ccgraph/internal/domain"
)

// EdgeListCodec writes one "source<TAB>target" line per edge
type EdgeListCodec struct{}

// NewEdgeListCodec creates a new edge list codec
func NewEdgeListCodec() *EdgeListCodec {
	return &EdgeListCodec{}
}

// Format returns the codec format identifier
func (c *EdgeListCodec) Format() string {
	return "edges"
}

// Export writes the edge list in result order
func (c *EdgeListCodec) Export(result *domain.DiscoveryResult, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range result.Edges() {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", e.Source, e.Target); err != nil {
			return fmt.Errorf("failed to write edge: %w", err)
		}
	}
	return bw.Flush()
}
