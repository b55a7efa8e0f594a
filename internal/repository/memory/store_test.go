package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccgraph/internal/domain"
	"ccgraph/internal/repository"
)

func TestStoreResolve(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddVertex(10, "com.example")

	id, err := s.ResolveID(ctx, "com.example")
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	id, err = s.ResolveID(ctx, "com.unknown")
	require.NoError(t, err)
	assert.Equal(t, domain.NotFound, id)

	label, ok, err := s.ResolveLabel(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "com.example", label)

	_, ok, err = s.ResolveLabel(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreAdjacency(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Link("c.com", "a.com")
	s.Link("b.com", "a.com")
	s.Link("a.com", "b.com")
	s.Link("c.com", "a.com") // duplicate arc

	a := s.Domain("a.com")
	preds, err := s.PredecessorIDs(ctx, a)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{s.Domain("b.com"), s.Domain("c.com")}, preds)
	assert.IsIncreasing(t, preds)

	succ, err := s.SuccessorIDs(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{s.Domain("b.com")}, succ)

	none, err := s.SuccessorIDs(ctx, 12345)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.Stats{Vertices: 3, Arcs: 3}, stats)
}

func TestStoreShared(t *testing.T) {
	ctx := context.Background()
	s := New()
	// hub links to all three seeds, half links to two, solo to one
	for _, seed := range []string{"s1.com", "s2.com", "s3.com"} {
		s.Link("hub.com", seed)
	}
	s.Link("half.com", "s1.com")
	s.Link("half.com", "s2.com")
	s.Link("solo.com", "s3.com")

	ids := []int64{s.Domain("s1.com"), s.Domain("s2.com"), s.Domain("s3.com")}

	t.Run("threshold filters", func(t *testing.T) {
		got, err := s.SharedPredecessors(ctx, ids, 2, len(ids))
		require.NoError(t, err)
		assert.Equal(t, []int64{s.Domain("hub.com"), s.Domain("half.com")}, got)
	})

	t.Run("all seeds", func(t *testing.T) {
		got, err := s.SharedPredecessors(ctx, ids, 3, len(ids))
		require.NoError(t, err)
		assert.Equal(t, []int64{s.Domain("hub.com")}, got)
	})

	t.Run("duplicate ids count once", func(t *testing.T) {
		dup := []int64{ids[2], ids[2]}
		got, err := s.SharedPredecessors(ctx, dup, 2, len(dup))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("successor direction", func(t *testing.T) {
		got, err := s.SharedSuccessors(ctx, []int64{s.Domain("hub.com"), s.Domain("half.com")}, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{s.Domain("s1.com"), s.Domain("s2.com")}, got)
	})
}

func TestStoreClose(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.ResolveID(context.Background(), "com.example")
	assert.ErrorIs(t, err, repository.ErrClosed)
}
