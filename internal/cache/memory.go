package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process layer, backed by go-cache.
type MemoryCache struct {
	items *gocache.Cache
	stats counters
}

// NewMemoryCache creates a memory cache; expired items are swept every cleanupInterval.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.items.Get(key)
	data, ok := val.([]byte)
	c.stats.lookup(found && ok)
	if !found || !ok {
		return nil, false
	}
	return data, true
}

// Set stores value; a zero ttl uses the cache default.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, value, ttl)
	c.stats.writes.Add(1)
	return nil
}

// Len reports how many unexpired items are held.
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}

func (c *MemoryCache) Stats() Stats {
	return c.stats.snapshot()
}
