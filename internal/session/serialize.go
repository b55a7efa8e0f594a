package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ccgraph/internal/repository"
)

// serialized runs one call at a time against a store that cannot take
// concurrent calls.
type serialized struct {
	mu    sync.Mutex
	inner repository.GraphStore
}

// Serialize wraps store so every call holds a single lock.
func Serialize(store repository.GraphStore) repository.GraphStore {
	return &serialized{inner: store}
}

func (s *serialized) ResolveID(ctx context.Context, label string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ResolveID(ctx, label)
}

func (s *serialized) ResolveLabel(ctx context.Context, id int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ResolveLabel(ctx, id)
}

func (s *serialized) PredecessorIDs(ctx context.Context, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.PredecessorIDs(ctx, id)
}

func (s *serialized) SuccessorIDs(ctx context.Context, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SuccessorIDs(ctx, id)
}

func (s *serialized) SharedPredecessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SharedPredecessors(ctx, ids, minShared, totalCount)
}

func (s *serialized) SharedSuccessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SharedSuccessors(ctx, ids, minShared, totalCount)
}

func (s *serialized) Stats(ctx context.Context) (repository.Stats, error) {
	sp, ok := s.inner.(repository.StatsProvider)
	if !ok {
		return repository.Stats{}, fmt.Errorf("stats: %w", errors.ErrUnsupported)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sp.Stats(ctx)
}

func (s *serialized) Purge() error {
	p, ok := s.inner.(Purger)
	if !ok {
		return nil
	}
	return p.Purge()
}

func (s *serialized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
