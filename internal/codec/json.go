package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"ccgraph/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports a result document from JSON
func (c *JSONCodec) Parse(r io.Reader) (*domain.DiscoveryResult, error) {
	var doc domain.ResultDocument
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return doc.Result(), nil
}

// Export writes the {nodes, edges, seeds} document
func (c *JSONCodec) Export(result *domain.DiscoveryResult, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(result.Document()); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
