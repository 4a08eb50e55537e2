package transcribe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheEntry stores one transcription result plus its insertion time.
type cacheEntry struct {
	Result     Result
	InsertedAt time.Time
}

// resultCache is a capacity+TTL bounded LRU over compound audio⊕options keys.
//
// The expirable LRU prunes TTL-expired entries on its own low-frequency
// sweep; eviction on overflow is strict LRU.
type resultCache struct {
	lru *expirable.LRU[string, cacheEntry]

	hits   atomic.Int64
	misses atomic.Int64
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	return &resultCache{
		lru: expirable.NewLRU[string, cacheEntry](size, nil, ttl),
	}
}

// Get returns a cached result, updating LRU recency and hit/miss counters.
func (c *resultCache) Get(key string) (Result, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return Result{}, false
	}
	c.hits.Add(1)
	return entry.Result, true
}

// Put stores one result under the compound key.
func (c *resultCache) Put(key string, result Result) {
	c.lru.Add(key, cacheEntry{Result: result, InsertedAt: time.Now()})
}

// Len reports current entry count.
func (c *resultCache) Len() int {
	return c.lru.Len()
}

// CacheStats is the persisted metadata sidecar shape.
type CacheStats struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Entries   int       `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats snapshots the counters.
func (c *resultCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Entries:   c.lru.Len(),
		UpdatedAt: time.Now(),
	}
}

// SaveStats writes the metadata sidecar under the cache directory.
func (c *resultCache) SaveStats(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	content, err := json.MarshalIndent(c.Stats(), "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "stats.json")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write cache stats %q: %w", path, err)
	}
	return nil
}
