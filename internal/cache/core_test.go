package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCore_FreshnessWindow(t *testing.T) {
	c := NewCore()

	v, err := c.Put("k", 50*time.Millisecond, func() (any, error) { return 1, nil }, false)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry must report a miss once expiresAt has passed")
}

func TestCore_SingleFlightCoalescesConcurrentFills(t *testing.T) {
	c := NewCore()
	var calls atomic.Int32

	fetch := func() (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]any, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Put("k", time.Second, fetch, false)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "fetch must run at most once per cache miss")
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestCore_StaleWhileRevalidateServesOldValueThenRefreshes(t *testing.T) {
	c := NewCore()

	_, err := c.Put("k", 30*time.Millisecond, func() (any, error) { return 1, nil }, false)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	var fetchCalls atomic.Int32
	slowFetch := func() (any, error) {
		fetchCalls.Add(1)
		time.Sleep(80 * time.Millisecond)
		return 2, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Put("k", 200*time.Millisecond, slowFetch, true)
			require.NoError(t, err)
			assert.Equal(t, 1, v, "all concurrent callers must get the stale value immediately")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetchCalls.Load(), "only one background refresh per key")

	require.Eventually(t, func() bool {
		v, ok := c.Get("k")
		return ok && v == 2
	}, time.Second, 10*time.Millisecond, "refreshed value must eventually become visible")
}

func TestCore_FailedRefreshClearsRefreshingFlag(t *testing.T) {
	c := NewCore()
	_, err := c.Put("k", 10*time.Millisecond, func() (any, error) { return 1, nil }, false)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	failing := errors.New("upstream down")
	v, err := c.Put("k", 10*time.Millisecond, func() (any, error) { return nil, failing }, true)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "stale value still returned even though the refresh will fail")

	require.Eventually(t, func() bool {
		e := c.load("k")
		return e != nil && !e.refreshing.Load()
	}, time.Second, 5*time.Millisecond)
}

func TestCore_ClearDropsAllEntries(t *testing.T) {
	c := NewCore()
	_, _ = c.Put("a", time.Minute, func() (any, error) { return 1, nil }, false)
	c.Clear()
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCore_StatsReportsOpsAndHits(t *testing.T) {
	c := NewCore()
	_, _ = c.Put("a", time.Minute, func() (any, error) { return 1, nil }, false)
	c.Get("a")
	c.Get("a")

	stats := c.GetStats()
	assert.GreaterOrEqual(t, stats.HitsCount, int64(2))
	assert.Greater(t, stats.RPS, 0.0)
}

func TestCore_StatsWindowsAreIndependent(t *testing.T) {
	c := NewCore()
	_, _ = c.Put("a", time.Minute, func() (any, error) { return 1, nil }, false)
	c.Get("a")

	// Draining the put window must not reset the get window's ops.
	_ = c.PutStats()
	got := c.GetStats()
	assert.Greater(t, got.RPS, 0.0, "get ops recorded before any GetStats call must survive a PutStats call")
}

// TestCore_ConcurrentReadersNeverBlockOnWriters floods the core with
// readers while writers churn disjoint keys, asserting every read of a
// preloaded fresh key succeeds. This is the smoke-test version of the
// sustained-throughput target; BenchmarkCoreGet measures the rate.
func TestCore_ConcurrentReadersNeverBlockOnWriters(t *testing.T) {
	c := NewCore()
	keys := make([]string, 100)
	for i := range keys {
		keys[i] = "key-" + string(rune('a'+i%26)) + "-" + string(rune('0'+i%10))
		c.store(keys[i], i, 10*time.Minute)
	}

	stop := make(chan struct{})
	var writers sync.WaitGroup
	for w := 0; w < 4; w++ {
		writers.Add(1)
		go func(w int) {
			defer writers.Done()
			i := 0
			for {
				select {
				case <-stop:
					return
				default:
				}
				k := "writer-" + string(rune('0'+w))
				_, _ = c.Put(k, time.Millisecond, func() (any, error) { return i, nil }, false)
				i++
			}
		}(w)
	}

	var readers sync.WaitGroup
	var misses atomic.Int64
	for r := 0; r < 8; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 10000; i++ {
				if _, ok := c.Get(keys[i%len(keys)]); !ok {
					misses.Add(1)
				}
			}
		}()
	}
	readers.Wait()
	close(stop)
	writers.Wait()

	assert.Zero(t, misses.Load(), "reads of fresh preloaded keys must never miss under concurrent writes")
}

func BenchmarkCoreGet(b *testing.B) {
	c := NewCore()
	c.store("k", 42, time.Hour)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, ok := c.Get("k"); !ok {
				b.Fatal("unexpected miss")
			}
		}
	})
}
