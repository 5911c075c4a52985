// Package cache provides a small TTL-bounded in-memory cache used for
// translation results and semantic-feature lookups (diagnostics,
// completions, hover). Entries expire lazily on read.
package cache

import (
	"sync"
	"time"
)

// Cache is a TTL-bounded map. The zero value is not usable; create one with
// New. All methods are safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[K]entry[V]
	now     func() time.Time
}

type entry[V any] struct {
	value    V
	deadline time.Time
}

// New creates a cache whose entries expire after ttl. A non-positive ttl
// disables expiry.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if c.ttl > 0 && c.now().After(e.deadline) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the entry.
		if cur, still := c.entries[key]; still && c.now().After(cur.deadline) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores a value under key, resetting its deadline.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, deadline: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate removes the entry for key.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Len returns the number of entries, including any not yet expired lazily.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// PurgeExpired removes all expired entries and returns how many were
// removed.
func (c *Cache[K, V]) PurgeExpired() int {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.deadline) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
