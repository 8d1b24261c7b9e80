// Package cache provides a small TTL cache for values that are expensive to
// recompute but cheap to hold, such as per-file page counts.
package cache

import (
	"sync"
	"time"
)

// entry pairs a cached value with the time it was stored
type entry struct {
	value    any
	storedAt time.Time
}

// Cache is an in-memory key/value store whose entries expire after a fixed
// TTL. Safe for concurrent use. Expired entries are replaced on the next Set
// for their key; there is no background eviction.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates a cache whose entries live for ttl
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Get returns the value stored under key when one exists and has not expired
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, restarting its TTL
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, storedAt: time.Now()}
}

// Len returns the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
