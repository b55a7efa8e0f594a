package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccgraph/internal/cache"
	"ccgraph/internal/config"
	"ccgraph/internal/repository"
	"ccgraph/internal/repository/memory"
)

// unsafeStore flags overlapping calls and does not declare itself
// concurrency safe.
type unsafeStore struct {
	*memory.Store
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (s *unsafeStore) ConcurrentSafe() bool { return false }

func (s *unsafeStore) PredecessorIDs(ctx context.Context, id int64) ([]int64, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)
	time.Sleep(time.Millisecond)
	return s.Store.PredecessorIDs(ctx, id)
}

func staticOpener(store repository.GraphStore) Opener {
	return func(context.Context) (repository.GraphStore, error) { return store, nil }
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(staticOpener(memory.New()), nil)

	_, err := s.Store()
	assert.ErrorIs(t, err, repository.ErrNotReady)
	assert.False(t, s.Ready())
	assert.NoError(t, s.Close(), "close before open")

	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Open(ctx), "second open is a no-op")
	assert.True(t, s.Ready())
	assert.Greater(t, s.Uptime(), time.Duration(-1))

	store, err := s.Store()
	require.NoError(t, err)
	assert.NotNil(t, store)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = s.Store()
	assert.ErrorIs(t, err, repository.ErrNotReady)
	assert.Zero(t, s.Uptime())
}

func TestOpenFailure(t *testing.T) {
	boom := errors.New("boom")
	s := New(func(context.Context) (repository.GraphStore, error) { return nil, boom }, nil)

	err := s.Open(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Ready())
}

func TestUnsafeStoreIsSerialized(t *testing.T) {
	inner := &unsafeStore{Store: memory.New()}
	inner.Link("a.com", "b.com")

	s := New(staticOpener(inner), nil)
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	store, err := s.Store()
	require.NoError(t, err)
	assert.False(t, repository.IsConcurrentSafe(store))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.PredecessorIDs(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.False(t, inner.overlap.Load(), "calls overlapped")
}

func TestSafeStoreIsNotWrapped(t *testing.T) {
	inner := memory.New()
	s := New(staticOpener(inner), nil)
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	store, err := s.Store()
	require.NoError(t, err)
	assert.Same(t, inner, store)
}

func TestPurge(t *testing.T) {
	s := New(staticOpener(memory.New()), nil)
	assert.ErrorIs(t, s.Purge(), repository.ErrNotReady)

	require.NoError(t, s.Open(context.Background()))
	defer s.Close()
	assert.NoError(t, s.Purge(), "store without cache")
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Store.Backend = config.BackendMemory

		s := New(FromConfig(cfg, nil), nil)
		require.NoError(t, s.Open(ctx))
		defer s.Close()

		store, err := s.Store()
		require.NoError(t, err)
		_, ok := store.(*memory.Store)
		assert.True(t, ok)
	})

	t.Run("sqlite with cache", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Store.Path = filepath.Join(t.TempDir(), "graph.db")
		cfg.Cache.Enabled = true
		cfg.Cache.InMemory = true

		s := New(FromConfig(cfg, nil), nil)
		require.NoError(t, s.Open(ctx))
		defer s.Close()

		store, err := s.Store()
		require.NoError(t, err)
		_, ok := store.(*cache.CachedStore)
		assert.True(t, ok)

		id, err := store.ResolveID(ctx, "com.example")
		require.NoError(t, err)
		assert.Equal(t, int64(-1), id)
		assert.NoError(t, s.Purge())
	})

	t.Run("remote", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Store.Backend = config.BackendRemote
		cfg.Store.Remote.URL = "http://127.0.0.1:1"
		cfg.Store.Remote.Serialize = true

		s := New(FromConfig(cfg, nil), nil)
		require.NoError(t, s.Open(ctx), "remote open makes no request")
		defer s.Close()

		store, err := s.Store()
		require.NoError(t, err)
		assert.False(t, repository.IsConcurrentSafe(store))
	})
}
