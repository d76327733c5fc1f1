// Package cache is the in-process TTL cache for remote market queries.
//
// Entries expire lazily: a read after the TTL behaves exactly like a miss and
// drops the entry. An optional capacity bound evicts the least recently used
// entry. Concurrent misses for the same key are coalesced into one load.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"covinance/internal/metrics"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies to market and listing queries.
const DefaultTTL = time.Hour

// Options configures a Cache.
type Options struct {
	TTL      time.Duration    // default TTL for Set; <= 0 means DefaultTTL
	Capacity int              // max entries; 0 = unbounded
	Now      func() time.Time // clock; nil = time.Now
	// LoadTimeout bounds a shared load in GetOrLoad. The load outlives any one
	// caller's context, so this is its only deadline; 0 = none.
	LoadTimeout time.Duration
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	InflightHits int64 `json:"inflight_hits"`
	Loads        int64 `json:"loads"`
	LoadErrors   int64 `json:"load_errors"`
	Evictions    int64 `json:"evictions"`
	Size         int   `json:"size"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CallsSaved is the number of remote calls avoided by hits and coalescing.
func (s Stats) CallsSaved() int64 {
	return s.Hits + s.InflightHits
}

// Add sums two snapshots (used for the combined performance report).
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Hits:         s.Hits + o.Hits,
		Misses:       s.Misses + o.Misses,
		InflightHits: s.InflightHits + o.InflightHits,
		Loads:        s.Loads + o.Loads,
		LoadErrors:   s.LoadErrors + o.LoadErrors,
		Evictions:    s.Evictions + o.Evictions,
		Size:         s.Size + o.Size,
	}
}

type entry[T any] struct {
	key       string
	value     T
	createdAt time.Time
	ttl       time.Duration
}

func (e *entry[T]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Cache is a thread-safe TTL + LRU cache. Create one per key class with New and
// pass it by reference; there is no package-level instance.
type Cache[T any] struct {
	name     string
	ttl      time.Duration
	capacity int
	now      func() time.Time
	timeout  time.Duration

	mu      sync.Mutex
	entries map[string]*list.Element // value: *entry[T]
	order   *list.List               // front = most recently used
	stats   Stats

	group singleflight.Group
}

// New creates an empty cache. name labels its metrics.
func New[T any](name string, opts Options) *Cache[T] {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	capacity := opts.Capacity
	if capacity < 0 {
		capacity = 0
	}
	return &Cache[T]{
		name:     name,
		ttl:      ttl,
		capacity: capacity,
		now:      now,
		timeout:  opts.LoadTimeout,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Name returns the cache name.
func (c *Cache[T]) Name() string { return c.name }

// Get returns the value for key if present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	v, _, ok := c.GetWithAge(key)
	return v, ok
}

// GetWithAge is Get plus the age of the cached value.
func (c *Cache[T]) GetWithAge(key string) (T, time.Duration, bool) {
	var zero T
	now := c.now()

	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		c.mu.Unlock()
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
		return zero, 0, false
	}
	e := el.Value.(*entry[T])
	if e.expired(now) {
		c.removeLocked(el)
		c.stats.Evictions++
		c.stats.Misses++
		c.mu.Unlock()
		metrics.CacheEvictions.WithLabelValues(c.name, "ttl").Inc()
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
		return zero, 0, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	v, age := e.value, now.Sub(e.createdAt)
	c.mu.Unlock()

	metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
	return v, age, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[T]) Set(key string, value T) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL. A non-positive TTL
// falls back to the default. The entry replaces any previous one wholesale.
func (c *Cache[T]) SetTTL(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	e := &entry[T]{key: key, value: value, createdAt: c.now(), ttl: ttl}

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return
	}
	c.entries[key] = c.order.PushFront(e)

	evicted := 0
	for c.capacity > 0 && c.order.Len() > c.capacity {
		c.removeLocked(c.order.Back())
		c.stats.Evictions++
		evicted++
	}
	c.mu.Unlock()

	if evicted > 0 {
		metrics.CacheEvictions.WithLabelValues(c.name, "capacity").Add(float64(evicted))
	}
}

// Delete removes key if present.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Origin tells a GetOrLoad caller where its value came from.
type Origin struct {
	Cached bool
	Age    time.Duration // zero for fresh loads
}

// GetOrLoad returns the cached value for key, or calls load on a miss and
// caches its result with ttl. Concurrent misses for the same key share a single
// load; callers that waited on another caller's load are counted as in-flight
// hits. Errors are returned to every waiter and never cached.
//
// The load runs detached from the caller that started it: a caller whose ctx
// ends gets ctx.Err() at once, while the load carries on for the others and
// still fills the cache.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, Origin, error) {
	var zero T
	if v, age, ok := c.GetWithAge(key); ok {
		return v, Origin{Cached: true, Age: age}, nil
	}

	var executed atomic.Bool
	ch := c.group.DoChan(key, func() (interface{}, error) {
		executed.Store(true)
		c.mu.Lock()
		c.stats.Loads++
		c.mu.Unlock()

		lctx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(lctx, c.timeout)
			defer cancel()
		}
		v, err := load(lctx)
		if err != nil {
			c.mu.Lock()
			c.stats.LoadErrors++
			c.mu.Unlock()
			return v, err
		}
		c.SetTTL(key, v, ttl)
		return v, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return zero, Origin{}, ctx.Err()
	}
	if !executed.Load() {
		c.mu.Lock()
		c.stats.InflightHits++
		c.mu.Unlock()
		metrics.CacheRequests.WithLabelValues(c.name, "inflight").Inc()
	}
	if res.Err != nil {
		return zero, Origin{}, res.Err
	}
	return res.Val.(T), Origin{}, nil
}

// Sweep drops every expired entry and returns how many were removed. It is
// optional housekeeping; lazy expiry on read already hides expired values.
func (c *Cache[T]) Sweep() int {
	now := c.now()
	c.mu.Lock()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry[T]).expired(now) {
			c.removeLocked(el)
			c.stats.Evictions++
			removed++
		}
		el = prev
	}
	c.mu.Unlock()
	if removed > 0 {
		metrics.CacheEvictions.WithLabelValues(c.name, "ttl").Add(float64(removed))
	}
	return removed
}

// Clear removes all entries and returns how many were dropped. Counters are kept
// so the performance report survives a manual flush.
func (c *Cache[T]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	return n
}

// Len returns the number of stored entries, including expired ones not yet
// observed.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

func (c *Cache[T]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[T])
	delete(c.entries, e.key)
	c.order.Remove(el)
}
