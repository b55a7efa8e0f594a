package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ccgraph/internal/domain"
	"ccgraph/internal/repository"
)

// Intersector answers shared-neighbor queries by delegating the
// intersection to the store in one call.
type Intersector struct {
	client *Client
	events *EventBus
	logger *slog.Logger
}

// NewIntersector creates a shared-neighbor query service.
func NewIntersector(client *Client, events *EventBus) *Intersector {
	return &Intersector{client: client, events: events, logger: client.logger}
}

// SharedNeighbors returns the domains adjacent to at least minShared of
// the seeds. Seeds are normalized and de-duplicated; unknown seeds are
// dropped. minShared == 0 means all resolved seeds. The store's ordering
// is preserved.
func (x *Intersector) SharedNeighbors(ctx context.Context, seeds []string, minShared int, dir domain.Direction) ([]string, error) {
	if minShared < 0 {
		return nil, fmt.Errorf("%w: min shared must not be negative, got %d", repository.ErrInvalidArgument, minShared)
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: direction %q", repository.ErrInvalidArgument, dir)
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "Intersector.SharedNeighbors",
		trace.WithAttributes(
			attribute.String("direction", dir.String()),
			attribute.Int("seeds", len(seeds)),
		),
	)
	defer span.End()

	out, err := x.sharedNeighbors(ctx, seeds, minShared, dir)
	recordQuery(ctx, "shared", dir.String(), time.Since(start), len(out), err == nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

func (x *Intersector) sharedNeighbors(ctx context.Context, seeds []string, minShared int, dir domain.Direction) ([]string, error) {
	ids := make([]int64, 0, len(seeds))
	for _, s := range domain.UniqueSeeds(seeds) {
		id, found, err := x.client.DomainToID(ctx, s)
		if err != nil {
			return nil, err
		}
		if found {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []string{}, nil
	}
	if minShared == 0 {
		minShared = len(ids)
	}

	shared, err := x.client.SharedIDs(ctx, ids, minShared, dir)
	if err != nil {
		return nil, err
	}
	return x.client.domains(ctx, shared)
}

// SharedPredecessors returns domains linking to at least minShared seeds.
func (x *Intersector) SharedPredecessors(ctx context.Context, seeds []string, minShared int) ([]string, error) {
	return x.SharedNeighbors(ctx, seeds, minShared, domain.Backlinks)
}

// SharedSuccessors returns domains linked from at least minShared seeds.
func (x *Intersector) SharedSuccessors(ctx context.Context, seeds []string, minShared int) ([]string, error) {
	return x.SharedNeighbors(ctx, seeds, minShared, domain.Outlinks)
}

// SharedBacklinks is the fast-path counterpart of Discovery.DiscoverBacklinks.
func (x *Intersector) SharedBacklinks(ctx context.Context, seeds []string, minConnections int) (*domain.DiscoveryResult, error) {
	return x.SharedResult(ctx, seeds, minConnections, domain.Backlinks)
}

// SharedOutlinks is the fast-path counterpart of Discovery.DiscoverOutlinks.
func (x *Intersector) SharedOutlinks(ctx context.Context, seeds []string, minConnections int) (*domain.DiscoveryResult, error) {
	return x.SharedResult(ctx, seeds, minConnections, domain.Outlinks)
}

// SharedResult wraps SharedNeighbors in a DiscoveryResult.
//
// The store reports no per-seed counts, so every node carries zero
// connections and percentage, and edges are the full cross product of
// nodes and the seed set rather than the links that actually exist.
// Seeds never appear as nodes. The seed set is the normalized,
// de-duplicated input in first-occurrence order, unknown seeds included.
func (x *Intersector) SharedResult(ctx context.Context, seeds []string, minConnections int, dir domain.Direction) (*domain.DiscoveryResult, error) {
	if minConnections < 1 {
		return nil, fmt.Errorf("%w: min connections must be at least 1, got %d", repository.ErrInvalidArgument, minConnections)
	}

	shared, err := x.SharedNeighbors(ctx, seeds, minConnections, dir)
	if err != nil {
		return nil, err
	}

	seedSet := domain.UniqueSeeds(seeds)
	isSeed := make(map[string]struct{}, len(seedSet))
	for _, s := range seedSet {
		isSeed[s] = struct{}{}
	}

	nodes := make([]domain.DiscoveredNode, 0, len(shared))
	edges := make([]domain.DiscoveryEdge, 0, len(shared)*len(seedSet))
	for _, d := range shared {
		if _, ok := isSeed[d]; ok {
			continue
		}
		nodes = append(nodes, domain.DiscoveredNode{Domain: d})
		for _, s := range seedSet {
			edges = append(edges, dir.Edge(d, s))
		}
	}

	x.logger.Info("shared neighbors",
		"direction", dir.String(),
		"seeds", len(seedSet),
		"min_connections", minConnections,
		"nodes", len(nodes),
	)
	x.events.Publish(Event{
		Type: EventSharedCompleted,
		Payload: Summary{
			QueryID:   uuid.NewString(),
			Direction: dir.String(),
			Seeds:     len(seedSet),
			Nodes:     len(nodes),
			Edges:     len(edges),
		},
	})

	return domain.NewDiscoveryResult(nodes, edges, seedSet), nil
}
