// Package cache implements two caching layers: Core, the in-process
// keyed cache with single-flight refill and stale-while-revalidate
// background refresh, and ResponseCache (response_cache.go), a coarser
// optional layer that memoizes whole search responses through a Client
// backend (Redis or in-memory, client.go).
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is one cache slot: a value, its expiry, and whether a background
// refresh is currently in flight for it.
type entry struct {
	value      any
	expiresAt  time.Time
	refreshing atomic.Bool
}

func (e *entry) fresh(now time.Time) bool {
	return e != nil && now.Before(e.expiresAt)
}

// Fetch computes the value to store for a cache miss or stale entry.
type Fetch func() (any, error)

// Core is a process-wide keyed cache with single-flight refill and
// stale-while-revalidate async refresh. Readers of fresh entries never
// block on a writer: the fast path only ever takes a read lock to look
// up the entry pointer.
type Core struct {
	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group

	hits       atomic.Int64
	putOps     atomic.Int64
	getOps     atomic.Int64
	putStatsAt atomic.Int64 // unix nanos of the last PutStats call
	getStatsAt atomic.Int64 // unix nanos of the last GetStats call
}

// NewCore creates an empty cache core.
func NewCore() *Core {
	c := &Core{entries: make(map[string]*entry)}
	now := time.Now().UnixNano()
	c.putStatsAt.Store(now)
	c.getStatsAt.Store(now)
	return c
}

func (c *Core) load(key string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

func (c *Core) store(key string, value any, ttl time.Duration) *entry {
	e := &entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return e
}

// Put returns the cached value for key, filling or refreshing it as
// needed. On a fresh hit it returns immediately without running fetch.
// On a stale entry with asyncGet=true it returns the stale value right
// away and kicks off at most one background refresh per key. Otherwise
// it falls through to a per-key single-flight slow path that awaits
// fetch and stores the result for ttl.
func (c *Core) Put(key string, ttl time.Duration, fetch Fetch, asyncGet bool) (any, error) {
	c.putOps.Add(1)
	now := time.Now()

	e := c.load(key)
	if e.fresh(now) {
		c.hits.Add(1)
		return e.value, nil
	}

	if e != nil && asyncGet {
		// Stale-while-revalidate: serve the old value, refresh in the
		// background if nobody else is already doing so for this key.
		if e.refreshing.CompareAndSwap(false, true) {
			go c.refreshAsync(key, ttl, fetch, e)
		}
		return e.value, nil
	}

	return c.fillSync(key, ttl, fetch)
}

// refreshAsync runs fetch for a stale-while-revalidate refill. Failure
// is never surfaced to a caller: the stale entry keeps serving and the
// refreshing flag is cleared so the next Put retries.
func (c *Core) refreshAsync(key string, ttl time.Duration, fetch Fetch, stale *entry) {
	defer stale.refreshing.Store(false)

	value, err := fetch()
	if err != nil {
		return
	}
	c.store(key, value, ttl)
}

// fillSync is the slow path: acquire the per-key single-flight lock,
// re-check freshness under it (another goroutine may have just filled
// the entry), and await fetch if still needed.
func (c *Core) fillSync(key string, ttl time.Duration, fetch Fetch) (any, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		if e := c.load(key); e.fresh(time.Now()) {
			return e.value, nil
		}
		value, err := fetch()
		if err != nil {
			return nil, err
		}
		c.store(key, value, ttl)
		return value, nil
	})
	return v, err
}

// Get returns the entry's value if fresh, reporting a miss otherwise.
// Get never triggers a refill.
func (c *Core) Get(key string) (any, bool) {
	c.getOps.Add(1)
	e := c.load(key)
	if !e.fresh(time.Now()) {
		return nil, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Clear drops every entry.
func (c *Core) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Stats is the result of PutStats/GetStats.
type Stats struct {
	HitsCount int64
	RPS       float64
}

// PutStats reports the total hit count and the Put operations-per-second
// since the previous PutStats call.
func (c *Core) PutStats() Stats {
	return c.snapshotStats(&c.putOps, &c.putStatsAt)
}

// GetStats reports the total hit count and the Get operations-per-second
// since the previous GetStats call. Its rate window is independent of
// PutStats': calling one never resets the other's.
func (c *Core) GetStats() Stats {
	return c.snapshotStats(&c.getOps, &c.getStatsAt)
}

func (c *Core) snapshotStats(ops, statsAt *atomic.Int64) Stats {
	now := time.Now().UnixNano()
	prev := statsAt.Swap(now)
	elapsed := time.Duration(now - prev)

	n := ops.Swap(0)
	hits := c.hits.Load()

	rps := 0.0
	if elapsed > 0 {
		rps = float64(n) / elapsed.Seconds()
	}
	return Stats{HitsCount: hits, RPS: rps}
}
