package planner

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wbrown/janus-fixpoint/datalog"
)

// Cache memoizes compiled JoinIndexes keyed by rule hash + sort order,
// the way the teacher's planner.PlanCache memoizes
// QueryPlan by a sha256 of query structure and options: an RWMutex-guarded
// map with TTL expiry and size-bounded eviction, plus hit/miss counters.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry
	maxSize int
	ttl     time.Duration

	hits   int64
	misses int64
}

type cacheKey struct {
	ruleHash uint64
	order    SortOrder
}

type cacheEntry struct {
	indexes   *JoinIndexes
	timestamp time.Time
}

// NewCache creates a plan cache. maxSize<=0 defaults to 1000 entries;
// ttl<=0 defaults to 5 minutes, matching the teacher's PlanCache defaults.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		entries: make(map[cacheKey]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached JoinIndexes for rule under the given sort order,
// if present and unexpired.
func (c *Cache) Get(rule datalog.Rule, order SortOrder) (*JoinIndexes, bool) {
	if c == nil {
		return nil, false
	}
	key := cacheKey{ruleHash: rule.Hash(), order: order}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return entry.indexes, true
}

// Set stores a compiled JoinIndexes, evicting expired then oldest
// entries if the cache is at capacity.
func (c *Cache) Set(rule datalog.Rule, order SortOrder, indexes *JoinIndexes) {
	if c == nil || indexes == nil {
		return
	}
	key := cacheKey{ruleHash: rule.Hash(), order: order}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
		if len(c.entries) >= c.maxSize {
			c.evictOldestLocked()
		}
	}
	c.entries[key] = &cacheEntry{indexes: indexes, timestamp: time.Now()}
}

// Clear empties the cache and resets its counters.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*cacheEntry)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns cumulative hit/miss counts and current size.
func (c *Cache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), len(c.entries)
}

func (c *Cache) evictExpiredLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.Sub(e.timestamp) > c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey cacheKey
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.timestamp.Before(oldestTime) {
			oldestKey, oldestTime, first = k, e.timestamp, false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// permutationHash computes a stable FNV-1a id for one body ordering. It
// is unexported and no cache key uses it.
func permutationHash(order []int) uint64 {
	var b [8]byte
	var acc uint64 = 1469598103934665603 // FNV offset basis
	for _, idx := range order {
		binary.LittleEndian.PutUint64(b[:], uint64(idx))
		for _, by := range b {
			acc ^= uint64(by)
			acc *= 1099511628211 // FNV prime
		}
	}
	return acc
}
