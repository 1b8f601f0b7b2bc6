package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const entrySuffix = ".json"

// DiskCache keeps one JSON file per key under <dir>/<namespace>/ so page
// text and verdicts survive between daily runs.
type DiskCache struct {
	dir   string
	ttl   time.Duration
	now   func() time.Time
	stats counters
}

// NewDiskCache creates a disk cache rooted at dir.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

type diskEntry struct {
	Key       string    `json:"key"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Data      []byte    `json:"data"`
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	entry, err := c.read(c.path(key))
	if err != nil || entry.Key != key || c.now().After(entry.ExpiresAt) {
		c.stats.lookup(false)
		return nil, false
	}
	c.stats.lookup(true)
	return entry.Data, true
}

// Set writes the entry to a temp file and renames it into place.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	now := c.now().UTC()
	data, err := json.Marshal(diskEntry{Key: key, StoredAt: now, ExpiresAt: now.Add(ttl), Data: value})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	c.stats.writes.Add(1)
	return nil
}

// Prune deletes expired and unreadable entries and returns how many went.
func (c *DiskCache) Prune() (int, error) {
	now := c.now()
	removed := 0
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, entrySuffix) {
			return nil
		}
		entry, readErr := c.read(path)
		if readErr == nil && !now.After(entry.ExpiresAt) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("prune cache: %w", err)
	}
	return removed, nil
}

func (c *DiskCache) Stats() Stats {
	return c.stats.snapshot()
}

func (c *DiskCache) read(path string) (diskEntry, error) {
	var entry diskEntry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// path files "article-ab12..." as <dir>/article/ab12....json.
func (c *DiskCache) path(key string) string {
	namespace, name, ok := strings.Cut(key, "-")
	if !ok || namespace == "" || name == "" {
		return filepath.Join(c.dir, "misc", key+entrySuffix)
	}
	return filepath.Join(c.dir, namespace, name+entrySuffix)
}
