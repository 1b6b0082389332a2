package orderbook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"execution-lab/internal/domain"
	"execution-lab/internal/lookup"
	"execution-lab/internal/observability"
	"execution-lab/internal/storage"
)

// DefaultBucket is the default time span of one cache entry.
const DefaultBucket = time.Hour

type bucketKey struct {
	symbol string
	index  int64
}

// bucket is an immutable, published cache entry.
type bucket struct {
	version uint64
	snaps   []*domain.OrderBookSnapshot
}

// Cache is a read-through snapshot cache keyed by (symbol, time bucket).
// Published buckets are never mutated; concurrent misses on the same key
// share one load. Safe for concurrent use by parallel runs.
type Cache struct {
	loader   Loader
	bucketMs int64
	logger   *zap.Logger

	group   singleflight.Group
	version atomic.Uint64

	mu         sync.RWMutex
	generation uint64
	entries    map[bucketKey]*bucket
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithBucket sets the bucket span.
func WithBucket(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.bucketMs = d.Milliseconds()
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates a cache over loader.
func NewCache(loader Loader, opts ...CacheOption) *Cache {
	c := &Cache{
		loader:   loader,
		bucketMs: DefaultBucket.Milliseconds(),
		logger:   zap.NewNop(),
		entries:  make(map[bucketKey]*bucket),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSnapshot returns the snapshot nearest to ts within tolerance.
func (c *Cache) GetSnapshot(ctx context.Context, symbol string, ts int64, tolerance time.Duration) (*domain.OrderBookSnapshot, error) {
	tolMs := tolerance.Milliseconds()
	first := floorDiv(ts-tolMs, c.bucketMs)
	last := floorDiv(ts+tolMs, c.bucketMs)

	var candidates []*domain.OrderBookSnapshot
	for idx := first; idx <= last; idx++ {
		b, err := c.bucket(ctx, symbol, idx)
		if err != nil {
			return nil, c.lookupErr(symbol, ts, err)
		}
		candidates = append(candidates, b.snaps...)
	}

	snap, err := lookup.NearestSnapshot(ts, candidates, tolMs)
	switch {
	case errors.Is(err, lookup.ErrNoSnapshots):
		return nil, &LookupError{Reason: ReasonNoSnapshotsInRange, Symbol: symbol, Timestamp: ts}
	case errors.Is(err, lookup.ErrOutOfTolerance):
		return nil, &LookupError{Reason: ReasonOutOfTolerance, Symbol: symbol, Timestamp: ts}
	case err != nil:
		return nil, &LookupError{Reason: ReasonNotFound, Symbol: symbol, Timestamp: ts, Err: err}
	}
	return snap, nil
}

// Load returns all snapshots within [start, end], warming every bucket it touches.
func (c *Cache) Load(ctx context.Context, symbol string, start, end int64) ([]*domain.OrderBookSnapshot, error) {
	if end < start {
		return nil, nil
	}

	var out []*domain.OrderBookSnapshot
	for idx := floorDiv(start, c.bucketMs); idx <= floorDiv(end, c.bucketMs); idx++ {
		b, err := c.bucket(ctx, symbol, idx)
		if err != nil {
			return nil, c.lookupErr(symbol, start, err)
		}
		for _, s := range b.snaps {
			if s.Timestamp >= start && s.Timestamp <= end {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// Version returns the version of the bucket holding ts, or 0 if it is not cached.
func (c *Cache) Version(symbol string, ts int64) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if b, ok := c.entries[bucketKey{symbol, floorDiv(ts, c.bucketMs)}]; ok {
		return b.version
	}
	return 0
}

// Len returns the number of cached buckets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reload drops every cached bucket. Loads already in flight finish but are
// not published into the new generation.
func (c *Cache) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.entries = make(map[bucketKey]*bucket)
}

func (c *Cache) bucket(ctx context.Context, symbol string, idx int64) (*bucket, error) {
	key := bucketKey{symbol, idx}

	c.mu.RLock()
	b, ok := c.entries[key]
	gen := c.generation
	c.mu.RUnlock()
	if ok {
		observability.RecordSnapshotCache(true, 0)
		return b, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("%d|%s|%d", gen, symbol, idx), func() (any, error) {
		start := idx * c.bucketMs
		end := start + c.bucketMs - 1

		began := time.Now()
		snaps, err := c.loader.GetByTimeRange(ctx, symbol, start, end)
		observability.RecordSnapshotCache(false, time.Since(began).Seconds())
		if err != nil {
			return nil, err
		}

		sorted := make([]*domain.OrderBookSnapshot, len(snaps))
		copy(sorted, snaps)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp < sorted[j].Timestamp
		})

		nb := &bucket{version: c.version.Add(1), snaps: sorted}

		c.mu.Lock()
		if c.generation == gen {
			c.entries[key] = nb
		}
		c.mu.Unlock()

		c.logger.Debug("order book bucket loaded",
			zap.String("symbol", symbol),
			zap.Int64("bucket", idx),
			zap.Int("snapshots", len(sorted)),
			zap.Uint64("version", nb.version),
		)
		return nb, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bucket), nil
}

func (c *Cache) lookupErr(symbol string, ts int64, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, storage.ErrFileNotFound) {
		return &LookupError{Reason: ReasonFileNotFound, Symbol: symbol, Timestamp: ts, Err: err}
	}
	return &LookupError{Reason: ReasonNotFound, Symbol: symbol, Timestamp: ts, Err: err}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

var _ Source = (*Cache)(nil)
