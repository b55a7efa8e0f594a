package service

import (
	"context"
	"fmt"
	"log/slog"

	"ccgraph/internal/domain"
	"ccgraph/internal/repository"
)

// StoreSource hands out the graph store for the current session. It
// returns repository.ErrNotReady while no session is open.
type StoreSource interface {
	Store() (repository.GraphStore, error)
}

// staticSource serves one store for the lifetime of the process.
type staticSource struct {
	store repository.GraphStore
}

func (s staticSource) Store() (repository.GraphStore, error) {
	if s.store == nil {
		return nil, repository.ErrNotReady
	}
	return s.store, nil
}

// Static wraps an already open store as a StoreSource.
func Static(store repository.GraphStore) StoreSource {
	return staticSource{store: store}
}

// Client speaks domains to a graph store: it converts labels with the
// domain codec and never invents vertex ids.
type Client struct {
	src    StoreSource
	logger *slog.Logger
}

// NewClient creates a store client. A nil logger uses slog.Default().
func NewClient(src StoreSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{src: src, logger: logger}
}

func (c *Client) store() (repository.GraphStore, error) {
	st, err := c.src.Store()
	if err != nil {
		return nil, err
	}
	return st, nil
}

// DomainToID resolves a user-facing domain. found is false when the store
// does not know it; that is not an error.
func (c *Client) DomainToID(ctx context.Context, d string) (id int64, found bool, err error) {
	st, err := c.store()
	if err != nil {
		return domain.NotFound, false, err
	}
	id, err = st.ResolveID(ctx, domain.ToStoreLabel(d))
	if err != nil {
		return domain.NotFound, false, fmt.Errorf("resolve %q: %w", d, err)
	}
	if id < 0 {
		return domain.NotFound, false, nil
	}
	return id, true, nil
}

// IDToDomain returns the user-facing domain for an id.
func (c *Client) IDToDomain(ctx context.Context, id int64) (string, bool, error) {
	st, err := c.store()
	if err != nil {
		return "", false, err
	}
	label, ok, err := st.ResolveLabel(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("resolve id %d: %w", id, err)
	}
	if !ok {
		return "", false, nil
	}
	return domain.FromStoreLabel(label), true, nil
}

// ValidateSeeds resolves each seed in input order and partitions the
// normalized seeds into found and missing. Duplicates are kept.
func (c *Client) ValidateSeeds(ctx context.Context, seeds []string) (*domain.SeedPartition, error) {
	part := domain.NewSeedPartition()
	for _, s := range seeds {
		n := domain.Normalize(s)
		id, _, err := c.DomainToID(ctx, n)
		if err != nil {
			return nil, err
		}
		part.Add(n, id)
	}
	return part, nil
}

// NeighborIDs fetches the adjacency of id in one call.
func (c *Client) NeighborIDs(ctx context.Context, id int64, dir domain.Direction) ([]int64, error) {
	st, err := c.store()
	if err != nil {
		return nil, err
	}

	var ids []int64
	switch dir {
	case domain.Backlinks:
		ids, err = st.PredecessorIDs(ctx, id)
	case domain.Outlinks:
		ids, err = st.SuccessorIDs(ctx, id)
	default:
		return nil, fmt.Errorf("%w: direction %q", repository.ErrInvalidArgument, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s of %d: %w", dir, id, err)
	}
	return ids, nil
}

// SharedIDs delegates a thresholded intersection to the store.
func (c *Client) SharedIDs(ctx context.Context, ids []int64, minShared int, dir domain.Direction) ([]int64, error) {
	st, err := c.store()
	if err != nil {
		return nil, err
	}

	var shared []int64
	switch dir {
	case domain.Backlinks:
		shared, err = st.SharedPredecessors(ctx, ids, minShared, len(ids))
	case domain.Outlinks:
		shared, err = st.SharedSuccessors(ctx, ids, minShared, len(ids))
	default:
		return nil, fmt.Errorf("%w: direction %q", repository.ErrInvalidArgument, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("shared %s: %w", dir, err)
	}
	return shared, nil
}

// Neighbors returns the neighboring domains of d. An unknown domain has
// no neighbors. Ids whose label cannot be resolved are dropped.
func (c *Client) Neighbors(ctx context.Context, d string, dir domain.Direction) ([]string, error) {
	id, found, err := c.DomainToID(ctx, d)
	if err != nil {
		return nil, err
	}
	if !found {
		return []string{}, nil
	}

	ids, err := c.NeighborIDs(ctx, id, dir)
	if err != nil {
		return nil, err
	}
	return c.domains(ctx, ids)
}

// Predecessors returns the domains linking to d.
func (c *Client) Predecessors(ctx context.Context, d string) ([]string, error) {
	return c.Neighbors(ctx, d, domain.Backlinks)
}

// Successors returns the domains d links to.
func (c *Client) Successors(ctx context.Context, d string) ([]string, error) {
	return c.Neighbors(ctx, d, domain.Outlinks)
}

// domains resolves ids in order, skipping unlabeled ones.
func (c *Client) domains(ctx context.Context, ids []int64) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		d, ok, err := c.IDToDomain(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			c.logger.Warn("vertex has no label", "id", id)
			recordAnomaly(ctx)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
