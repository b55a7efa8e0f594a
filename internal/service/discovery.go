package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ccgraph/internal/domain"
	"ccgraph/internal/repository"
)

const (
	// DefaultWorkers bounds concurrent adjacency fetches per query.
	DefaultWorkers = 4

	// progressEvery is the seed interval between progress events.
	progressEvery = 100
)

// Report carries query metadata alongside a DiscoveryResult.
type Report struct {
	QueryID         string        `json:"query_id"`
	Valid           []string      `json:"valid"`
	Missing         []string      `json:"missing"`
	UniqueNeighbors int           `json:"unique_neighbors"`
	Anomalies       int           `json:"anomalies"`
	Duration        time.Duration `json:"duration"`
}

// Discovery counts, per neighbor, how many seeds it connects to and ranks
// the neighbors that reach a threshold.
type Discovery struct {
	client  *Client
	events  *EventBus
	logger  *slog.Logger
	workers int
}

// NewDiscovery creates the aggregator. workers < 1 means sequential fetches.
func NewDiscovery(client *Client, events *EventBus, workers int) *Discovery {
	if workers < 1 {
		workers = 1
	}
	return &Discovery{
		client:  client,
		events:  events,
		logger:  client.logger,
		workers: workers,
	}
}

// DiscoverBacklinks finds domains linking to at least minConnections seeds.
func (d *Discovery) DiscoverBacklinks(ctx context.Context, seeds []string, minConnections int) (*domain.DiscoveryResult, error) {
	return d.Discover(ctx, seeds, minConnections, domain.Backlinks)
}

// DiscoverOutlinks finds domains linked from at least minConnections seeds.
func (d *Discovery) DiscoverOutlinks(ctx context.Context, seeds []string, minConnections int) (*domain.DiscoveryResult, error) {
	return d.Discover(ctx, seeds, minConnections, domain.Outlinks)
}

// Discover runs a counted discovery query in the given direction.
func (d *Discovery) Discover(ctx context.Context, seeds []string, minConnections int, dir domain.Direction) (*domain.DiscoveryResult, error) {
	result, _, err := d.DiscoverReport(ctx, seeds, minConnections, dir)
	return result, err
}

// DiscoverReport is Discover plus the seed partition and counters.
//
// Seeds that the store does not know are reported as missing; if none
// resolve the result is empty. Each seed contributes at most one
// connection to a neighbor, neighbors that are themselves seeds are
// skipped, and nodes are ordered by connections descending with ties in
// first-discovery order.
func (d *Discovery) DiscoverReport(ctx context.Context, seeds []string, minConnections int, dir domain.Direction) (*domain.DiscoveryResult, *Report, error) {
	if minConnections < 1 {
		return nil, nil, fmt.Errorf("%w: min connections must be at least 1, got %d", repository.ErrInvalidArgument, minConnections)
	}
	if !dir.Valid() {
		return nil, nil, fmt.Errorf("%w: direction %q", repository.ErrInvalidArgument, dir)
	}

	start := time.Now()
	report := &Report{QueryID: uuid.NewString()}

	ctx, span := tracer.Start(ctx, "Discovery.Discover",
		trace.WithAttributes(
			attribute.String("direction", dir.String()),
			attribute.Int("seeds", len(seeds)),
			attribute.Int("min_connections", minConnections),
		),
	)
	defer span.End()

	result, err := d.discover(ctx, seeds, minConnections, dir, report)
	report.Duration = time.Since(start)
	recordQuery(ctx, "discover", dir.String(), report.Duration, report.UniqueNeighbors, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.Int("nodes", result.Len()),
		attribute.Int("unique_neighbors", report.UniqueNeighbors),
	)
	d.events.Publish(Event{
		Type: EventDiscoveryCompleted,
		Payload: Summary{
			QueryID:    report.QueryID,
			Direction:  dir.String(),
			Seeds:      len(report.Valid),
			Missing:    report.Missing,
			Neighbors:  report.UniqueNeighbors,
			Nodes:      result.Len(),
			Edges:      len(result.Edges()),
			DurationMS: report.Duration.Milliseconds(),
		},
	})
	return result, report, nil
}

func (d *Discovery) discover(ctx context.Context, seeds []string, minConnections int, dir domain.Direction, report *Report) (*domain.DiscoveryResult, error) {
	part, err := d.client.ValidateSeeds(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("validate seeds: %w", err)
	}
	report.Valid = part.Valid
	report.Missing = part.Missing

	if len(part.Missing) > 0 {
		d.logger.Info("seeds not found in graph", "query_id", report.QueryID, "missing", part.Missing)
	}
	if part.Empty() {
		return domain.EmptyResult(), nil
	}

	d.events.Publish(Event{
		Type:    EventDiscoveryStarted,
		Payload: Progress{QueryID: report.QueryID, Direction: dir.String(), Total: len(part.Valid)},
	})

	lists, err := d.fetchNeighbors(ctx, part.IDs, dir, report.QueryID)
	if err != nil {
		return nil, err
	}

	acc := aggregate(part, lists)
	report.UniqueNeighbors = acc.len()
	d.logger.Info("aggregated neighbors",
		"query_id", report.QueryID,
		"direction", dir.String(),
		"seeds", len(part.Valid),
		"unique_neighbors", acc.len(),
	)

	survivors := acc.atLeast(minConnections)
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].count > survivors[j].count
	})

	total := len(part.Valid)
	nodes := make([]domain.DiscoveredNode, 0, len(survivors))
	edges := make([]domain.DiscoveryEdge, 0)
	for _, e := range survivors {
		name, ok, err := d.client.IDToDomain(ctx, e.id)
		if err != nil {
			return nil, err
		}
		if !ok {
			report.Anomalies++
			recordAnomaly(ctx)
			d.logger.Warn("skipping neighbor without label", "query_id", report.QueryID, "id", e.id)
			continue
		}

		nodes = append(nodes, domain.DiscoveredNode{
			Domain:      name,
			Connections: e.count,
			Percentage:  domain.Percentage(e.count, total),
		})
		for _, seed := range e.seeds {
			edges = append(edges, dir.Edge(name, seed))
		}
	}

	d.logger.Info("filtered neighbors",
		"query_id", report.QueryID,
		"min_connections", minConnections,
		"nodes", len(nodes),
	)

	return domain.NewDiscoveryResult(nodes, edges, part.Valid), nil
}

// fetchNeighbors pulls the adjacency of every seed id, one store call per
// seed, on a bounded pool. lists[i] belongs to ids[i].
func (d *Discovery) fetchNeighbors(ctx context.Context, ids []int64, dir domain.Direction, queryID string) ([][]int64, error) {
	lists := make([][]int64, len(ids))
	total := len(ids)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, id := range ids {
		g.Go(func() error {
			ns, err := d.client.NeighborIDs(gctx, id, dir)
			if err != nil {
				return err
			}
			lists[i] = ns

			n := int(done.Add(1))
			if n%progressEvery == 0 || n == total {
				d.logger.Debug("fetched seed adjacency", "query_id", queryID, "processed", n, "total", total)
				d.events.Publish(Event{
					Type:    EventDiscoveryProgress,
					Payload: Progress{QueryID: queryID, Direction: dir.String(), Processed: n, Total: total},
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", dir, err)
	}
	return lists, nil
}

// aggregate merges per-seed neighbor lists in seed order.
func aggregate(part *domain.SeedPartition, lists [][]int64) *accumulator {
	seedIDs := part.IDSet()
	acc := newAccumulator()
	for i, seed := range part.Valid {
		seen := make(map[int64]struct{}, len(lists[i]))
		for _, n := range lists[i] {
			if _, isSeed := seedIDs[n]; isSeed {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			acc.add(n, seed)
		}
	}
	return acc
}

// accumulator is an insertion-ordered map from neighbor id to the seeds
// that reach it.
type accumulator struct {
	entries []*accEntry
	index   map[int64]*accEntry
}

type accEntry struct {
	id    int64
	count int
	seeds []string
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[int64]*accEntry)}
}

func (a *accumulator) add(id int64, seed string) {
	e, ok := a.index[id]
	if !ok {
		e = &accEntry{id: id}
		a.index[id] = e
		a.entries = append(a.entries, e)
	}
	e.count++
	e.seeds = append(e.seeds, seed)
}

func (a *accumulator) len() int {
	return len(a.entries)
}

// atLeast returns entries with count >= threshold, in first-discovery order.
func (a *accumulator) atLeast(threshold int) []*accEntry {
	out := make([]*accEntry, 0)
	for _, e := range a.entries {
		if e.count >= threshold {
			out = append(out, e)
		}
	}
	return out
}
