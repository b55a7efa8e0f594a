package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *DiscoveryResult {
	return NewDiscoveryResult(
		[]DiscoveredNode{
			{Domain: "hub.com", Connections: 2, Percentage: 66.67},
			{Domain: "leaf.com", Connections: 1, Percentage: 33.33},
		},
		[]DiscoveryEdge{
			{Source: "hub.com", Target: "a.com"},
			{Source: "hub.com", Target: "b.com"},
			{Source: "leaf.com", Target: "c.com"},
		},
		[]string{"a.com", "b.com", "c.com"},
	)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		connections, seeds int
		want               float64
	}{
		{1, 3, 33.33},
		{2, 3, 66.67},
		{3, 3, 100},
		{1, 8, 12.5},
		{1, 0, 0},
		{1, 32, 3.12},
		{5, 32, 15.62},
		{3, 32, 9.38},
		{1, 800, 0.12},
		{3, 800, 0.38},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.connections, tt.seeds))
	}
}

func TestDiscoveryResult(t *testing.T) {
	t.Run("len and string", func(t *testing.T) {
		r := sampleResult()
		assert.Equal(t, 2, r.Len())
		assert.Equal(t, "DiscoveryResult(2 nodes, 3 edges, 3 seeds)", r.String())
	})

	t.Run("accessors return copies", func(t *testing.T) {
		r := sampleResult()
		nodes := r.Nodes()
		nodes[0].Domain = "mutated"
		seeds := r.Seeds()
		seeds[0] = "mutated"

		assert.Equal(t, "hub.com", r.Nodes()[0].Domain)
		assert.Equal(t, "a.com", r.Seeds()[0])
	})

	t.Run("constructor copies input", func(t *testing.T) {
		seeds := []string{"a.com"}
		r := NewDiscoveryResult(nil, nil, seeds)
		seeds[0] = "mutated"
		assert.Equal(t, []string{"a.com"}, r.Seeds())
	})

	t.Run("field lookup", func(t *testing.T) {
		r := sampleResult()
		v, err := r.Field("seeds")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.com", "b.com", "c.com"}, v)

		_, err = r.Field("weights")
		assert.Error(t, err)
	})

	t.Run("is seed", func(t *testing.T) {
		r := sampleResult()
		assert.True(t, r.IsSeed("b.com"))
		assert.False(t, r.IsSeed("hub.com"))
	})
}

func TestEmptyResultJSON(t *testing.T) {
	data, err := json.Marshal(EmptyResult())
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[],"seeds":[]}`, string(data))
}

func TestResultJSONDecode(t *testing.T) {
	data, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	var decoded DiscoveryResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sampleResult().Document(), decoded.Document())
}

func TestSeedPartition(t *testing.T) {
	p := NewSeedPartition()
	p.Add("a.com", 4)
	p.Add("zzz.invalid", NotFound)
	p.Add("a.com", 4)

	assert.Equal(t, []string{"a.com", "a.com"}, p.Valid)
	assert.Equal(t, []string{"zzz.invalid"}, p.Missing)
	assert.Equal(t, []VertexID{4, 4}, p.IDs)
	assert.Len(t, p.IDSet(), 1)
	assert.False(t, p.Empty())
	assert.True(t, NewSeedPartition().Empty())
}

func TestUniqueSeeds(t *testing.T) {
	got := UniqueSeeds([]string{" B.com", "a.com", "b.com", "", "A.COM"})
	assert.Equal(t, []string{"b.com", "a.com"}, got)
}
