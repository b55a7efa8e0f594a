// Package codec converts discovery results to and from the formats other
// tools consume.
package codec

import (
	"fmt"
	"io"
	"sort"

	"ccgraph/internal/domain"
)

// Importer reads a previously exported result
type Importer interface {
	Parse(r io.Reader) (*domain.DiscoveryResult, error)
	Format() string
}

// Exporter writes a result in one format
type Exporter interface {
	Export(result *domain.DiscoveryResult, w io.Writer) error
	Format() string
}

var exporters = map[string]Exporter{}

func register(e Exporter) {
	exporters[e.Format()] = e
}

func init() {
	register(NewJSONCodec())
	register(NewYAMLCodec())
	register(NewCSVCodec())
	register(NewGraphCodec())
	register(NewEdgeListCodec())
}

// Lookup returns the exporter for format.
func Lookup(format string) (Exporter, error) {
	e, ok := exporters[format]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (want one of %v)", format, Formats())
	}
	return e, nil
}

// LookupImporter returns the importer for format. Only json and yaml can be
// read back.
func LookupImporter(format string) (Importer, error) {
	e, ok := exporters[format]
	if ok {
		if im, ok := e.(Importer); ok {
			return im, nil
		}
	}
	return nil, fmt.Errorf("format %q cannot be imported", format)
}

// Formats lists the registered formats in name order.
func Formats() []string {
	out := make([]string, 0, len(exporters))
	for f := range exporters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ContentType returns the media type for format.
func ContentType(format string) string {
	switch format {
	case "json", "graph":
		return "application/json"
	case "yaml":
		return "application/yaml"
	case "csv":
		return "text/csv"
	default:
		return "text/plain; charset=utf-8"
	}
}
