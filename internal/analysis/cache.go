package analysis

import (
	"sync"
	"time"
)

// DefaultTTL is how long an analysis stays servable from the cache.
const DefaultTTL = 24 * time.Hour

type cacheEntry struct {
	result  Result
	created time.Time
}

// Cache is an in-memory, TTL-bounded analysis cache. Expired entries are
// dropped when read.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[Key]cacheEntry
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces the cache clock.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache constructs an empty Cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[Key]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the live entry for key.
func (c *Cache) Get(key Key) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if c.now().Sub(e.created) > c.ttl {
		delete(c.entries, key)
		return Result{}, false
	}
	return e.result, true
}

// Put stores result under key, replacing any previous entry.
func (c *Cache) Put(key Key, result Result) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: result, created: c.now()}
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
