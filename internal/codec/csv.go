package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ccgraph/internal/domain"
)

// CSVCodec writes one row per discovered node
type CSVCodec struct{}

// NewCSVCodec creates a new CSV codec
func NewCSVCodec() *CSVCodec {
	return &CSVCodec{}
}

// Format returns the codec format identifier
func (c *CSVCodec) Format() string {
	return "csv"
}

// Export writes a domain,connections,percentage table
func (c *CSVCodec) Export(result *domain.DiscoveryResult, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"domain", "connections", "percentage"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, n := range result.Nodes() {
		row := []string{
			n.Domain,
			strconv.Itoa(n.Connections),
			strconv.FormatFloat(n.Percentage, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
