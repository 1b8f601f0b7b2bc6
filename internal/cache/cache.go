package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"
)

// Cache stores scraped pages and analyst verdicts between runs.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
}

// CacheKey builds "<namespace>-<digest>". The digest keeps keys file-name
// safe whatever the value looks like.
func CacheKey(namespace, value string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + value))
	return namespace + "-" + hex.EncodeToString(sum[:20])
}

// Stats counts cache traffic for the run summary.
type Stats struct {
	Hits   int64
	Misses int64
	Writes int64
}

// HitRatio is hits over lookups, zero when nothing was looked up.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits, misses, writes atomic.Int64
}

func (c *counters) lookup(found bool) {
	if found {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Writes: c.writes.Load()}
}
