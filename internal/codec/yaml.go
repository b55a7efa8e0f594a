package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"ccgraph/internal/domain"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports a result document from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.DiscoveryResult, error) {
	var doc domain.ResultDocument
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return doc.Result(), nil
}

// Export writes the result document as YAML
func (c *YAMLCodec) Export(result *domain.DiscoveryResult, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(result.Document()); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}
