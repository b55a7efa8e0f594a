// Package session owns the lifecycle of the graph store connection.
//
// A Session is opened once, shared by every query, and closed once. Before
// Open and after Close, Store returns repository.ErrNotReady. Stores that
// do not declare themselves safe for concurrent use are wrapped so that
// calls run one at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ccgraph/internal/repository"
)

// Opener creates the underlying store.
type Opener func(ctx context.Context) (repository.GraphStore, error)

// Purger is implemented by stores holding a cache that can be dropped.
type Purger interface {
	Purge() error
}

// Session is the single long-lived handle to a graph store.
type Session struct {
	open   Opener
	logger *slog.Logger

	mu       sync.RWMutex
	store    repository.GraphStore
	openedAt time.Time
}

// New creates a session that will use open on Open.
func New(open Opener, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{open: open, logger: logger}
}

// Open connects the store. Opening an open session is a no-op.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return nil
	}

	start := time.Now()
	store, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	if !repository.IsConcurrentSafe(store) {
		store = Serialize(store)
	}

	s.store = store
	s.openedAt = time.Now()
	s.logger.Info("graph store session opened",
		"concurrent", repository.IsConcurrentSafe(store),
		"duration", time.Since(start))
	return nil
}

// Store returns the open store or repository.ErrNotReady.
func (s *Session) Store() (repository.GraphStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, repository.ErrNotReady
	}
	return s.store, nil
}

// Ready reports whether the session is open.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store != nil
}

// Uptime is the time since Open, or zero when closed.
func (s *Session) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return 0
	}
	return time.Since(s.openedAt)
}

// Purge drops cached store data, if the store has a cache.
func (s *Session) Purge() error {
	store, err := s.Store()
	if err != nil {
		return err
	}
	p, ok := store.(Purger)
	if !ok {
		return nil
	}
	return p.Purge()
}

// Close releases the store. It is safe to call more than once and on a
// session that was never opened.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	if err != nil && !errors.Is(err, repository.ErrClosed) {
		return fmt.Errorf("close graph store: %w", err)
	}
	s.logger.Info("graph store session closed")
	return nil
}
