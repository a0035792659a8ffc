package jobcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lens-tracker/internal/logger"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a thread-safe TTL cache for per-job derived values (histories).
// A singleflight.Group coalesces concurrent loads of the same key.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
}

// New creates an empty cache. A ttl <= 0 disables caching: Fetch always loads.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]*entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		return zero, false
	}
	return e.value, true
}

// Put stores value under key for the cache TTL.
func (c *Cache[V]) Put(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry[V]{value: value, expires: c.now().Add(c.ttl)}
}

// Fetch returns the cached value for key or loads, stores and returns it.
// Errors are not cached.
func (c *Cache[V]) Fetch(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		// The load is shared; one caller leaving must not fail the others.
		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	if shared {
		logger.Info("CACHE", "Coalesced load for "+key)
	}
	return result.(V), nil
}

// Clear drops every entry. Called after the log changes.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
}

// Len counts entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
