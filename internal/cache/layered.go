package cache

import (
	"time"
)

// LayeredCache serves from memory first and falls back to disk, copying
// disk hits into memory for the rest of the run.
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewLayeredCache puts a memory cache with memoryTTL in front of a disk cache at diskDir.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, memoryTTL),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}
	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}
	return nil, false
}

// Set writes through to both layers. Only the disk write can fail.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	_ = c.memory.Set(key, value, 0)
	return c.disk.Set(key, value, ttl)
}

// Prune drops expired disk entries.
func (c *LayeredCache) Prune() (int, error) {
	return c.disk.Prune()
}

// Stats reports lookups as seen by callers: a memory miss that disk
// answers counts as one hit.
func (c *LayeredCache) Stats() Stats {
	m := c.memory.Stats()
	d := c.disk.Stats()
	return Stats{
		Hits:   m.Hits + d.Hits,
		Misses: d.Misses,
		Writes: d.Writes,
	}
}
