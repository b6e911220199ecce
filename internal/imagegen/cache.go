package imagegen

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lox/sunburntimer/internal/log"
)

// Cache keeps generated backdrops on disk, one file per UV band.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// NewCache creates the cache directory. Backdrops older than maxAge are regenerated.
func NewCache(dir string, maxAge time.Duration) *Cache {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warnf("imagegen: could not create cache directory: %v", err)
	}
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &Cache{dir: dir, maxAge: maxAge}
}

func (c *Cache) path(band UVBand) string {
	return filepath.Join(c.dir, fmt.Sprintf("backdrop_%s.png", band))
}

// Get returns a cached backdrop unless it is missing or stale.
func (c *Cache) Get(band UVBand) ([]byte, bool) {
	path := c.path(band)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Cache) Set(band UVBand, data []byte) error {
	return os.WriteFile(c.path(band), data, 0o644)
}

// CardCache holds rendered cards in memory for a short time, keyed by calculation ID.
type CardCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cardEntry
}

type cardEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewCardCache(ttl time.Duration) *CardCache {
	return &CardCache{ttl: ttl, entries: make(map[string]cardEntry)}
}

func (c *CardCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

func (c *CardCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cardEntry{data: data, expiresAt: now.Add(c.ttl)}
}
