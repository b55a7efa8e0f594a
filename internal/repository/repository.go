package repository

import (
	"context"
)

// GraphStore is the narrow interface to a web graph store. Every method is
// a single round trip; id collections travel in bulk.
type GraphStore interface {
	// ResolveID returns the vertex id for a store label, or -1 when the
	// label is unknown.
	ResolveID(ctx context.Context, label string) (int64, error)

	// ResolveLabel returns the store label for an id. ok is false when the
	// id has no label.
	ResolveLabel(ctx context.Context, id int64) (label string, ok bool, err error)

	// Adjacency
	PredecessorIDs(ctx context.Context, id int64) ([]int64, error)
	SuccessorIDs(ctx context.Context, id int64) ([]int64, error)

	// Shared neighbors: ids adjacent to at least minShared of ids.
	// totalCount is the size of the seed set the caller resolved.
	SharedPredecessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error)
	SharedSuccessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error)

	// Close releases resources
	Close() error
}

// ConcurrentSafe is implemented by stores that tolerate concurrent calls.
// Stores without it are serialized by the session.
type ConcurrentSafe interface {
	ConcurrentSafe() bool
}

// Stats describes the size of a snapshot.
type Stats struct {
	Vertices int64 `json:"vertices" yaml:"vertices"`
	Arcs     int64 `json:"arcs" yaml:"arcs"`
}

// StatsProvider is implemented by stores that can report their size.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// IsConcurrentSafe reports whether s declares itself safe for concurrent use.
func IsConcurrentSafe(s GraphStore) bool {
	cs, ok := s.(ConcurrentSafe)
	return ok && cs.ConcurrentSafe()
}
