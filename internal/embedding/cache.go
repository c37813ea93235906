package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default entry cap. High enough that single-process
// workloads rarely evict, while still bounding memory.
const DefaultCacheSize = 8192

// Cache is a bounded, content-addressed vector cache. Keys are a hash of
// the exact text embedded; entries are immutable, only ever inserted or
// evicted, never mutated in place.
type Cache struct {
	entries *lru.Cache[string, []float32]
}

// NewCache creates a cache holding at most size entries, evicting the least
// recently used. Non-positive size uses DefaultCacheSize.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// CacheKey returns the content hash used as the cache key for text.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for text, if present.
func (c *Cache) Get(text string) ([]float32, bool) {
	return c.entries.Get(CacheKey(text))
}

// Put stores a vector under the content hash of text.
func (c *Cache) Put(text string, vector []float32) {
	c.entries.Add(CacheKey(text), vector)
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Save writes the cache to path as a flat key->vector JSON mapping, for
// warm-start reuse across process restarts.
func (c *Cache) Save(path string) error {
	snapshot := make(map[string][]float32, c.entries.Len())
	for _, key := range c.entries.Keys() {
		if v, ok := c.entries.Peek(key); ok {
			snapshot[key] = v
		}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode embedding cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write embedding cache: %w", err)
	}
	return nil
}

// Load restores entries from a file written by Save. Existing entries are
// kept; loaded entries may evict them once the cap is reached.
func (c *Cache) Load(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read embedding cache: %w", err)
	}
	var snapshot map[string][]float32
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return 0, fmt.Errorf("decode embedding cache: %w", err)
	}
	for key, vector := range snapshot {
		c.entries.Add(key, vector)
	}
	return len(snapshot), nil
}
