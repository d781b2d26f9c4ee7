package http

import (
	"sync"
	"time"
)

// ttlCache is a small concurrency-safe cache with per-entry expiry. Month
// pages are cheap to rebuild, so eviction beyond TTL is not needed; expired
// entries are swept periodically by the server.
type ttlCache[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]ttlEntry[T]
}

type ttlEntry[T any] struct {
	data      T
	expiresAt time.Time
}

func newTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	return &ttlCache[T]{
		ttl:   ttl,
		items: make(map[string]ttlEntry[T]),
	}
}

func (c *ttlCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	entry, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return entry.data, true
}

func (c *ttlCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = ttlEntry[T]{data: data, expiresAt: time.Now().Add(c.ttl)}
}

func (c *ttlCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Purge drops every entry, expired or not.
func (c *ttlCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]ttlEntry[T])
}

// CleanExpired removes all expired entries and reports how many were dropped.
func (c *ttlCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}
