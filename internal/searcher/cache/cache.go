// Package cache memoises public query results in Redis. Concurrent misses
// for the same query share one computation, and every committed mutation
// invalidates the whole prefix.
//
// Keys carry a generation that Invalidate advances before flushing. A
// computation that began before the flush stores under the old generation,
// which is never read again and expires with its TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/redis"
)

const keyPrefix = "directory:query:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Backend = (*pkgredis.Client)(nil)

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	gen     atomic.Uint64
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, q indexer.Query) ([]entry.Entry, bool) {
	return c.get(ctx, c.key(q))
}

func (c *QueryCache) Set(ctx context.Context, q indexer.Query, result []entry.Entry) {
	c.set(ctx, c.key(q), result)
}

// GetOrCompute returns the cached result for q or computes and stores it.
// The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q indexer.Query,
	computeFn func() []entry.Entry,
) ([]entry.Entry, bool) {
	key := c.key(q)
	if result, ok := c.get(ctx, key); ok {
		return result, true
	}
	val, _, _ := c.group.Do(key, func() (interface{}, error) {
		result := computeFn()
		c.set(ctx, key, result)
		return result, nil
	})
	return val.([]entry.Entry), false
}

// Invalidate drops every cached query. The generation moves first so that
// in-flight computations cannot repopulate the new one with stale results.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	c.gen.Add(1)
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Debug("cache invalidated", "keys_deleted", deleted, "generation", c.gen.Load())
	return nil
}

func (c *QueryCache) get(ctx context.Context, key string) ([]entry.Entry, bool) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result []entry.Entry
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result []entry.Entry) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) key(q indexer.Query) string {
	return buildKey(c.gen.Load(), q)
}

func (c *QueryCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(gen uint64, q indexer.Query) string {
	hash := sha256.Sum256([]byte(normalizeQuery(q)))
	return fmt.Sprintf("%s%d:%x", keyPrefix, gen, hash[:16])
}

// normalizeQuery maps queries with equal results to the same string. Keyword
// order does not affect scores, repetition does.
func normalizeQuery(q indexer.Query) string {
	if q.Keywords == nil {
		return fmt.Sprintf("list|%d|%d", q.Availability, q.Order)
	}
	terms := make([]string, len(q.Keywords))
	for i, k := range q.Keywords {
		terms[i] = index.Normalize(k)
	}
	sort.Strings(terms)
	return fmt.Sprintf("search|%d|%d|%s", q.Availability, q.Order, strings.Join(terms, "\x1f"))
}
