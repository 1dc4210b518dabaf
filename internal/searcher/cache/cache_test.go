package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/metrics"
)

type memoryBackend struct {
	mu      sync.Mutex
	data    map[string]string
	failGet bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]string)}
}

func (b *memoryBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failGet {
		return "", errors.New("connection refused")
	}
	v, ok := b.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (b *memoryBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = string(value.([]byte))
	return nil
}

func (b *memoryBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func results(names ...string) []entry.Entry {
	out := make([]entry.Entry, len(names))
	for i, n := range names {
		out[i] = entry.Entry{ID: int32(i + 1), Name: n, Tags: []string{}, Files: []string{}}
	}
	return out
}

func TestGetOrCompute_CachesResult(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(newMemoryBackend(), time.Minute, m)
	ctx := context.Background()
	q := indexer.Query{Keywords: []string{"chess"}}

	var calls int
	compute := func() []entry.Entry {
		calls++
		return results("Chess")
	}

	got, hit := c.GetOrCompute(ctx, q, compute)
	assert.False(t, hit)
	assert.Equal(t, "Chess", got[0].Name)

	got, hit = c.GetOrCompute(ctx, q, compute)
	assert.True(t, hit)
	assert.Equal(t, "Chess", got[0].Name)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestInvalidate_DropsEverything(t *testing.T) {
	backend := newMemoryBackend()
	c := New(backend, time.Minute, nil)
	ctx := context.Background()

	c.Set(ctx, indexer.Query{}, results("A"))
	c.Set(ctx, indexer.Query{Keywords: []string{"a"}}, results("A"))
	require.NoError(t, c.Invalidate(ctx))

	_, ok := c.Get(ctx, indexer.Query{})
	assert.False(t, ok)
	assert.Empty(t, backend.data)
}

func TestInvalidate_InFlightComputeDoesNotRepopulate(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	ctx := context.Background()
	q := indexer.Query{Keywords: []string{"chess"}}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.GetOrCompute(ctx, q, func() []entry.Entry {
			close(started)
			<-release
			return results("Stale")
		})
	}()

	<-started
	require.NoError(t, c.Invalidate(ctx))
	close(release)
	<-done

	got, hit := c.GetOrCompute(ctx, q, func() []entry.Entry { return results("Fresh") })
	assert.False(t, hit, "result computed before invalidation must not be served")
	assert.Equal(t, "Fresh", got[0].Name)
}

func TestBackendFailureFallsThrough(t *testing.T) {
	backend := newMemoryBackend()
	backend.failGet = true
	c := New(backend, time.Minute, nil)

	got, hit := c.GetOrCompute(context.Background(), indexer.Query{}, func() []entry.Entry { return results("Live") })
	assert.False(t, hit)
	assert.Equal(t, "Live", got[0].Name)
}

func TestGetOrCompute_CollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	q := indexer.Query{Keywords: []string{"go"}}
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _ := c.GetOrCompute(context.Background(), q, func() []entry.Entry {
				calls.Add(1)
				<-release
				return results("Go")
			})
			assert.Len(t, got, 1)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestNormalizeQuery(t *testing.T) {
	a := indexer.Query{Keywords: []string{"Chess", "go"}}
	b := indexer.Query{Keywords: []string{"GO", "chess"}}
	assert.Equal(t, normalizeQuery(a), normalizeQuery(b))

	assert.NotEqual(t, normalizeQuery(a), normalizeQuery(indexer.Query{Keywords: []string{"chess", "go", "go"}}))
	assert.NotEqual(t, normalizeQuery(indexer.Query{}), normalizeQuery(indexer.Query{Keywords: []string{}}))
	assert.NotEqual(t,
		normalizeQuery(indexer.Query{Availability: entry.Available}),
		normalizeQuery(indexer.Query{Availability: entry.Disbanded}))
}
