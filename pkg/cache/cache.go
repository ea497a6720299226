// Package cache provides thread-safe typed caching with TTL support.
package cache

import (
	"sync"
	"time"
)

// Recommended TTLs for the data the evaluator caches.
const (
	// TTLMergedPR is for changed files of merged PRs (immutable once merged).
	TTLMergedPR = 28 * 24 * time.Hour

	// TTLIssue is for issue bodies, which can still be edited.
	TTLIssue = 24 * time.Hour

	// TTLLinesOfCode is for repository line counts (changes slowly).
	TTLLinesOfCode = 7 * 24 * time.Hour
)

type entry[V any] struct {
	expiration time.Time
	value      V
}

// Cache provides thread-safe in-memory caching with TTL.
type Cache[V any] struct {
	entries map[string]entry[V]
	mu      sync.RWMutex
	ttl     time.Duration
}

// New creates a new cache with the specified default TTL.
func New[V any](ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
	}
	go c.cleanupExpired()
	return c
}

// Get retrieves a value from cache if not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()
	if !exists {
		return zero, false
	}

	if time.Now().After(e.expiration) {
		c.mu.Lock()
		// Double-check after lock upgrade; another writer may have refreshed the key.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiration) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return e.value, true
}

// Set stores a value in cache with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:      value,
		expiration: time.Now().Add(ttl),
	}
}

// Len returns the number of entries, expired ones included until the next sweep.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanupExpired periodically removes expired entries.
func (c *Cache[V]) cleanupExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, e := range c.entries {
			if now.After(e.expiration) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}
