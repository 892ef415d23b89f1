// Package sessioncache is the router's one piece of process-wide mutable
// state: a bounded LRU of identity→model resolutions, plus a second LRU
// mapping a session id to the project folder it was last found under. Both
// are capacity-bounded at 1000 entries with no TTL; age is refreshed on
// read.
package sessioncache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCapacity = 1000

// Metrics is a snapshot of a Cache's hit/miss/eviction counters.
type Metrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	HitRate   float64
}

// Cache is a capacity-bounded, thread-safe string→string LRU with hit,
// miss, and eviction counters. It is used both for the model-resolution
// cache (keyed "{sessionId}:{kind}:{projectId}:{identityId}") and the
// session→project-folder cache (keyed sessionId).
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, string]
	hits      int64
	misses    int64
	evictions int64
}

// New returns a Cache bounded at capacity entries (defaultCapacity if
// capacity <= 0).
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	c := &Cache{}
	evictCb := func(_ string, _ string) {
		atomic.AddInt64(&c.evictions, 1)
	}
	backing, err := lru.NewWithEvict[string, string](capacity, evictCb)
	if err != nil {
		// Only invalid (non-positive) capacity reaches here, already guarded above.
		backing, _ = lru.New[string, string](defaultCapacity)
	}
	c.lru = backing
	return c
}

// Get looks up key, recording a hit or miss. A lookup failure in the
// underlying structure (never expected, but guarded per spec) is treated as
// a miss.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.lru.Get(key)
	if ok {
		atomic.AddInt64(&c.hits, 1)
	} else {
		atomic.AddInt64(&c.misses, 1)
	}
	return val, ok
}

// Set stores value under key, moving it to most-recently-used.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, value)
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Metrics returns a snapshot of the hit/miss/eviction counters plus the
// current size and hit rate. Counters are monotonic until Reset.
func (c *Cache) Metrics() Metrics {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	evictions := atomic.LoadInt64(&c.evictions)
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Metrics{
		Hits:      hits,
		Misses:    misses,
		Evictions: evictions,
		Size:      c.Size(),
		HitRate:   rate,
	}
}

// Reset clears every entry and zeroes the counters.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// ModelCacheKey composes the namespaced key for the identity→model cache:
// "{sessionId}:{kind}:{projectId}:{identityId}". The kind namespace keeps
// an agent id from colliding with a workflow id that happens to share the
// same UUID; the projectId namespace lets the same identity resolve
// independently per project.
func ModelCacheKey(sessionID, kind, projectID, identityID string) string {
	return sessionID + ":" + kind + ":" + projectID + ":" + identityID
}

// Caches bundles the two process-wide LRUs the router owns.
type Caches struct {
	ModelCache          *Cache
	SessionProjectCache *Cache
}

// NewCaches constructs both caches at the spec-mandated capacity of 1000.
func NewCaches() *Caches {
	return &Caches{
		ModelCache:          New(defaultCapacity),
		SessionProjectCache: New(defaultCapacity),
	}
}
