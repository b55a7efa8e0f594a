// Package cache keeps adjacency lists and label lookups of a graph store in
// BadgerDB so repeated discovery queries over the same seeds avoid the
// round trip.
//
// Keys are scoped by a namespace derived from the snapshot identity, so a
// cache directory can be shared across snapshots. Shared-neighbor queries
// pass straight through.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
	"lukechampine.com/blake3"

	"ccgraph/internal/bulk"
	"ccgraph/internal/repository"
)

// Config holds options for a CachedStore.
type Config struct {
	// Dir holds the badger files; ignored when InMemory is set
	Dir      string
	InMemory bool
	// Namespace scopes keys; see Namespace
	Namespace string
	Logger    *slog.Logger
}

// Namespace derives a short, stable key prefix from the parts that
// identify a snapshot, such as its version and file path.
func Namespace(parts ...string) string {
	sum := blake3.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:8])
}

// CachedStore decorates a repository.GraphStore with a BadgerDB cache.
type CachedStore struct {
	inner  repository.GraphStore
	db     *badger.DB
	prefix []byte
	flight singleflight.Group
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ repository.GraphStore = (*CachedStore)(nil)

// New opens the cache and wraps inner. Closing the CachedStore closes inner.
func New(inner repository.GraphStore, cfg Config) (*CachedStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("cache dir is required unless in_memory is set")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: cfg.Logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	initMetrics()
	return &CachedStore{
		inner:  inner,
		db:     db,
		prefix: []byte(cfg.Namespace + "/"),
		logger: cfg.Logger,
	}, nil
}

// ResolveID implements repository.GraphStore
func (c *CachedStore) ResolveID(ctx context.Context, label string) (int64, error) {
	key := c.key("i", label)
	if v, ok := c.get(ctx, "resolve-id", key); ok && len(v) == 8 {
		return int64(binary.BigEndian.Uint64(v)), nil
	}

	res, err := c.do(ctx, key, func(ctx context.Context) (interface{}, error) {
		id, err := c.inner.ResolveID(ctx, label)
		if err != nil {
			return nil, err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(id))
		c.put(key, buf[:])
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

type labelResult struct {
	label string
	ok    bool
}

// ResolveLabel implements repository.GraphStore
func (c *CachedStore) ResolveLabel(ctx context.Context, id int64) (string, bool, error) {
	key := c.key("l", strconv.FormatInt(id, 10))
	if v, ok := c.get(ctx, "resolve-label", key); ok && len(v) > 0 {
		return string(v[1:]), v[0] == 1, nil
	}

	res, err := c.do(ctx, key, func(ctx context.Context) (interface{}, error) {
		label, ok, err := c.inner.ResolveLabel(ctx, id)
		if err != nil {
			return nil, err
		}
		v := []byte{0}
		if ok {
			v = append([]byte{1}, label...)
		}
		c.put(key, v)
		return labelResult{label: label, ok: ok}, nil
	})
	if err != nil {
		return "", false, err
	}
	lr := res.(labelResult)
	return lr.label, lr.ok, nil
}

// PredecessorIDs implements repository.GraphStore
func (c *CachedStore) PredecessorIDs(ctx context.Context, id int64) ([]int64, error) {
	return c.adjacency(ctx, "predecessors", "p", id, c.inner.PredecessorIDs)
}

// SuccessorIDs implements repository.GraphStore
func (c *CachedStore) SuccessorIDs(ctx context.Context, id int64) ([]int64, error) {
	return c.adjacency(ctx, "successors", "s", id, c.inner.SuccessorIDs)
}

// SharedPredecessors implements repository.GraphStore
func (c *CachedStore) SharedPredecessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	return c.inner.SharedPredecessors(ctx, ids, minShared, totalCount)
}

// SharedSuccessors implements repository.GraphStore
func (c *CachedStore) SharedSuccessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	return c.inner.SharedSuccessors(ctx, ids, minShared, totalCount)
}

// Stats implements repository.StatsProvider when the wrapped store does.
func (c *CachedStore) Stats(ctx context.Context) (repository.Stats, error) {
	sp, ok := c.inner.(repository.StatsProvider)
	if !ok {
		return repository.Stats{}, fmt.Errorf("stats: %w", errors.ErrUnsupported)
	}
	return sp.Stats(ctx)
}

// ConcurrentSafe reports whether the wrapped store is.
func (c *CachedStore) ConcurrentSafe() bool {
	return repository.IsConcurrentSafe(c.inner)
}

// Purge drops every entry in this store's namespace.
func (c *CachedStore) Purge() error {
	if err := c.db.DropPrefix(c.prefix); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	c.logger.Info("adjacency cache purged", "namespace", strings.TrimSuffix(string(c.prefix), "/"))
	return nil
}

// Close closes the cache and the wrapped store.
func (c *CachedStore) Close() error {
	c.closeOnce.Do(func() {
		innerErr := c.inner.Close()
		dbErr := c.db.Close()
		c.closeErr = errors.Join(innerErr, dbErr)
	})
	return c.closeErr
}

func (c *CachedStore) adjacency(ctx context.Context, op, kind string, id int64, fetch func(context.Context, int64) ([]int64, error)) ([]int64, error) {
	key := c.key(kind, strconv.FormatInt(id, 10))
	if v, ok := c.get(ctx, op, key); ok {
		ids, err := bulk.DecodeIDs(v)
		if err == nil {
			return ids, nil
		}
		c.logger.Warn("dropping corrupt cache entry", "op", op, "id", id, "error", err)
	}

	res, err := c.do(ctx, key, func(ctx context.Context) (interface{}, error) {
		ids, err := fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		frame, err := bulk.EncodeIDs(ids)
		if err == nil {
			c.put(key, frame)
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	// singleflight shares one slice between callers
	shared := res.([]int64)
	return append([]int64(nil), shared...), nil
}

// do collapses concurrent misses on key into one call of fn. The call is
// detached from any single caller's cancellation; each caller still stops
// waiting when its own ctx is done.
func (c *CachedStore) do(ctx context.Context, key []byte, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(string(key), func() (interface{}, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *CachedStore) key(kind, id string) []byte {
	k := make([]byte, 0, len(c.prefix)+len(kind)+1+len(id))
	k = append(k, c.prefix...)
	k = append(k, kind...)
	k = append(k, '/')
	return append(k, id...)
}

func (c *CachedStore) get(ctx context.Context, op string, key []byte) ([]byte, bool) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})

	attrs := metric.WithAttributes(attribute.String("op", op))
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("cache read failed", "op", op, "error", err)
		}
		cacheMisses.Add(ctx, 1, attrs)
		return nil, false
	}
	cacheHits.Add(ctx, 1, attrs)
	return val, true
}

// put stores a value; failures only cost a future miss.
func (c *CachedStore) put(key, val []byte) {
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	}); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}

var (
	meter = otel.Meter("ccgraph.cache")

	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		cacheHits, err = meter.Int64Counter(
			"ccgraph_cache_hits_total",
			metric.WithDescription("Graph store calls answered from the cache"),
		)
		if err != nil {
			slog.Warn("failed to create cache hit counter", "error", err)
		}
		cacheMisses, err = meter.Int64Counter(
			"ccgraph_cache_misses_total",
			metric.WithDescription("Graph store calls that missed the cache"),
		)
		if err != nil {
			slog.Warn("failed to create cache miss counter", "error", err)
		}
	})
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
