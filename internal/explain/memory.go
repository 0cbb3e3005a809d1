package explain

import (
	"context"
	"sync"

	"github.com/opensource-finance/osprey/internal/domain"
)

// MemoryCache is the in-process explanation cache: an unbounded map with
// no eviction, cleared only by explicit administrative action, rebuilt on
// restart. Reads take the read lock; inserts are last-writer-wins.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

// Get retrieves a cached explanation.
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores an explanation under the given fingerprint.
func (c *MemoryCache) Put(ctx context.Context, key string, explanation string) error {
	c.mu.Lock()
	c.entries[key] = explanation
	c.mu.Unlock()
	return nil
}

// Clear discards every entry.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]string)
	c.mu.Unlock()
	return nil
}

// Size returns the number of cached entries.
func (c *MemoryCache) Size(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// Peek returns the entry for a key or domain.ErrNotFound.
func (c *MemoryCache) Peek(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

// Ping always succeeds for the in-process cache.
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close discards the entries.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]string)
	c.mu.Unlock()
	return nil
}
