// Package memory provides an in-memory, thread-safe implementation of
// repository.GraphStore.
//
// The store keeps forward and transposed adjacency as id sets guarded by a
// single RWMutex: graphs are built once and then read concurrently. It is
// meant for tests and for graphs small enough to hold in memory; adjacency
// lists are returned in ascending id order, like a compressed snapshot.
package memory

import (
	"context"
	"sort"
	"sync"

	"ccgraph/internal/domain"
	"ccgraph/internal/repository"
)

// Store is an in-memory graph store.
type Store struct {
	mu     sync.RWMutex
	ids    map[string]int64 // store label -> id
	labels map[int64]string // id -> store label
	succ   map[int64]map[int64]struct{}
	pred   map[int64]map[int64]struct{}
	nextID int64
	closed bool
}

var _ repository.GraphStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		ids:    make(map[string]int64),
		labels: make(map[int64]string),
		succ:   make(map[int64]map[int64]struct{}),
		pred:   make(map[int64]map[int64]struct{}),
	}
}

// AddVertex registers a vertex under an explicit id and store label.
func (s *Store) AddVertex(id int64, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[label] = id
	s.labels[id] = label
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

// AddArc adds a directed arc src -> dst.
func (s *Store) AddArc(src, dst int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.succ, src, dst)
	addTo(s.pred, dst, src)
}

// Domain returns the id for a user-facing domain, registering it with the
// next free id if unseen.
func (s *Store) Domain(name string) int64 {
	label := domain.ToStoreLabel(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[label]; ok {
		return id
	}
	id := s.nextID
	s.nextID++
	s.ids[label] = id
	s.labels[id] = label
	return id
}

// Link adds an arc between two user-facing domains, registering either
// one if needed.
func (s *Store) Link(from, to string) {
	s.AddArc(s.Domain(from), s.Domain(to))
}

func addTo(adj map[int64]map[int64]struct{}, from, to int64) {
	set, ok := adj[from]
	if !ok {
		set = make(map[int64]struct{})
		adj[from] = set
	}
	set[to] = struct{}{}
}

// ResolveID implements repository.GraphStore
func (s *Store) ResolveID(ctx context.Context, label string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, repository.ErrClosed
	}
	if id, ok := s.ids[label]; ok {
		return id, nil
	}
	return domain.NotFound, nil
}

// ResolveLabel implements repository.GraphStore
func (s *Store) ResolveLabel(ctx context.Context, id int64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, repository.ErrClosed
	}
	label, ok := s.labels[id]
	return label, ok, nil
}

// PredecessorIDs implements repository.GraphStore
func (s *Store) PredecessorIDs(ctx context.Context, id int64) ([]int64, error) {
	return s.adjacent(s.pred, id)
}

// SuccessorIDs implements repository.GraphStore
func (s *Store) SuccessorIDs(ctx context.Context, id int64) ([]int64, error) {
	return s.adjacent(s.succ, id)
}

func (s *Store) adjacent(adj map[int64]map[int64]struct{}, id int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, repository.ErrClosed
	}
	return sortedKeys(adj[id]), nil
}

// SharedPredecessors implements repository.GraphStore
func (s *Store) SharedPredecessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	return s.shared(s.pred, ids, minShared)
}

// SharedSuccessors implements repository.GraphStore
func (s *Store) SharedSuccessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	return s.shared(s.succ, ids, minShared)
}

// shared counts, per neighbor, how many distinct ids it is adjacent to and
// keeps those reaching minShared. Results are ordered by count descending,
// then id ascending.
func (s *Store) shared(adj map[int64]map[int64]struct{}, ids []int64, minShared int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, repository.ErrClosed
	}

	counts := make(map[int64]int)
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		for n := range adj[id] {
			counts[n]++
		}
	}

	out := make([]int64, 0)
	for n, c := range counts {
		if c >= minShared {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out, nil
}

// Stats implements repository.StatsProvider
func (s *Store) Stats(ctx context.Context) (repository.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var arcs int64
	for _, set := range s.succ {
		arcs += int64(len(set))
	}
	return repository.Stats{Vertices: int64(len(s.labels)), Arcs: arcs}, nil
}

// ConcurrentSafe implements repository.ConcurrentSafe
func (s *Store) ConcurrentSafe() bool { return true }

// Close marks the store closed. Calling it twice is harmless.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sortedKeys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
