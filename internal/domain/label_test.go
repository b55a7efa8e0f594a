package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToStoreLabel(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		want   string
	}{
		{"three segments", "www.example.com", "com.example.www"},
		{"normalizes case and space", "  Example.COM ", "com.example"},
		{"single segment", "localhost", "localhost"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToStoreLabel(tt.domain))
		})
	}
}

func TestFromStoreLabel(t *testing.T) {
	t.Run("reverses segments", func(t *testing.T) {
		assert.Equal(t, "www.example.com", FromStoreLabel("com.example.www"))
	})

	t.Run("keeps case", func(t *testing.T) {
		assert.Equal(t, "Sub.Example.ORG", FromStoreLabel("ORG.Example.Sub"))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", FromStoreLabel(""))
	})
}

func TestLabelRoundTrip(t *testing.T) {
	for _, d := range []string{"a.b.c", "example.com", "x", "deep.sub.domain.example.co.uk"} {
		assert.Equal(t, d, FromStoreLabel(ToStoreLabel(d)), d)
	}
}

func TestParseDirection(t *testing.T) {
	for _, in := range []string{"", "backlinks", "predecessors", "in"} {
		d, err := ParseDirection(in)
		assert.NoError(t, err)
		assert.Equal(t, Backlinks, d)
	}
	for _, in := range []string{"outlinks", "successors", "out"} {
		d, err := ParseDirection(in)
		assert.NoError(t, err)
		assert.Equal(t, Outlinks, d)
	}

	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}

func TestDirectionEdge(t *testing.T) {
	assert.Equal(t, DiscoveryEdge{Source: "n.com", Target: "s.com"}, Backlinks.Edge("n.com", "s.com"))
	assert.Equal(t, DiscoveryEdge{Source: "s.com", Target: "n.com"}, Outlinks.Edge("n.com", "s.com"))
}
