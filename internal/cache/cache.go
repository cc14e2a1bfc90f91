package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/a11yscan/a11yscan/internal/model"
)

// defaultSweepInterval is how often the background sweep scans for
// TTL-expired entries.
const defaultSweepInterval = 1 * time.Minute

// ComputeFunc produces the value for a cache miss.
type ComputeFunc func(ctx context.Context) ([]model.Violation, error)

// entry is a cached analysis result with its bookkeeping.
type entry struct {
	value        []model.Violation
	createdAt    time.Time
	ttl          time.Duration
	accessCount  int64
	lastAccessed time.Time
	size         int64
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	Entries     int
	Bytes       int64
}

// HitRate returns the fraction of lookups served from the cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// AnalysisCache is an LRU cache with per-entry TTL for page analysis
// results. All access goes through a single mutex; operations are O(1)
// map and list manipulations, so contention stays cheap.
//
// Design decision: GetOrCompute does not de-duplicate concurrently
// in-flight computations for the same key. Two goroutines missing on
// the same key both compute and the last write wins. Holding the lock
// across a computation that drives a browser would serialize the whole
// pool; duplicated work on a rare collision is the better trade.
type AnalysisCache struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, *entry]
	now     func() time.Time
	stats   Stats
	bytes   int64
	metrics *Metrics

	// expiring marks deliberate TTL removals so the eviction callback
	// can tell them apart from capacity evictions.
	expiring bool

	sweepInterval time.Duration
	done          chan struct{}
	stopOnce      sync.Once
}

// Option configures an AnalysisCache.
type Option func(*AnalysisCache)

// WithSweepInterval sets the background expiry sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(c *AnalysisCache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithMetrics attaches prometheus collectors to the cache.
func WithMetrics(m *Metrics) Option {
	return func(c *AnalysisCache) {
		c.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *AnalysisCache) {
		c.now = now
	}
}

// NewAnalysisCache creates a cache holding at most maxSize entries and
// starts the background expiry sweep. Call Stop when done.
func NewAnalysisCache(maxSize int, opts ...Option) (*AnalysisCache, error) {
	c := &AnalysisCache{
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	lru, err := simplelru.NewLRU(maxSize, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = lru

	go c.sweepLoop()

	return c, nil
}

// onEvict runs under c.mu via the LRU's Add/Remove/Purge paths.
func (c *AnalysisCache) onEvict(_ string, e *entry) {
	c.bytes -= e.size
	if c.expiring {
		c.stats.Expirations++
		c.metrics.IncExpiration()
		return
	}
	c.stats.Evictions++
	c.metrics.IncEviction()
}

// GetOrCompute returns the cached value for key, or invokes computeFn
// and stores its result under the given TTL. The lock is released while
// computeFn runs; see the type comment for the resulting semantics.
func (c *AnalysisCache) GetOrCompute(ctx context.Context, key string, computeFn ComputeFunc, ttl time.Duration) ([]model.Violation, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := computeFn(ctx)
	if err != nil {
		return nil, err
	}

	c.Store(key, value, ttl)
	return value, nil
}

// Get returns the cached value for key. A TTL-expired entry is removed
// and reported as a miss.
func (c *AnalysisCache) Get(key string) ([]model.Violation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.stats.Misses++
		c.metrics.IncMiss()
		return nil, false
	}

	if e.expired(c.now()) {
		c.expiring = true
		c.lru.Remove(key)
		c.expiring = false
		c.stats.Misses++
		c.metrics.IncMiss()
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = c.now()
	c.stats.Hits++
	c.metrics.IncHit()
	return e.value, true
}

// Store inserts or overwrites the value for key. When the cache is at
// capacity the least-recently-used entry is evicted.
func (c *AnalysisCache) Store(key string, value []model.Violation, ttl time.Duration) {
	now := c.now()
	e := &entry{
		value:        value,
		createdAt:    now,
		ttl:          ttl,
		lastAccessed: now,
		size:         serializedSize(value),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		c.bytes -= old.size
	}
	c.bytes += e.size
	c.lru.Add(key, e)
	c.metrics.SetEntries(c.lru.Len())
	c.metrics.SetBytes(c.bytes)
}

// Len returns the current entry count.
func (c *AnalysisCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *AnalysisCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.lru.Len()
	s.Bytes = c.bytes
	return s
}

// Sweep removes every TTL-expired entry and returns how many it
// removed. The background loop calls this on a fixed interval; it is
// exported so callers can force a pass.
func (c *AnalysisCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok || !e.expired(now) {
			continue
		}
		c.expiring = true
		c.lru.Remove(key)
		c.expiring = false
		removed++
	}
	c.metrics.SetEntries(c.lru.Len())
	c.metrics.SetBytes(c.bytes)
	return removed
}

// Stop terminates the background sweep. Safe to call more than once.
func (c *AnalysisCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *AnalysisCache) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.done:
			return
		}
	}
}

// serializedSize approximates an entry's memory footprint by its JSON
// encoding. Good enough for the memory gauge; not an allocator measure.
func serializedSize(value []model.Violation) int64 {
	b, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(b))
}
