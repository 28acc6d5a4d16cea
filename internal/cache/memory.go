// internal/cache/memory.go
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/wishlink/wishlink/pkg/api"
)

type memoryEntry struct {
	product   api.Product
	expiresAt time.Time
}

// MemoryCache is an in-process Cache for single-instance deployments and
// tests. Expired entries are dropped lazily on read and by a background
// sweep.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates a memory cache and starts its sweep loop.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *MemoryCache) Get(_ context.Context, canonicalURL string) (*api.Product, error) {
	c.mu.RLock()
	entry, ok := c.entries[canonicalURL]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, canonicalURL)
		c.mu.Unlock()
		return nil, nil
	}

	product := entry.product
	return &product, nil
}

func (c *MemoryCache) Set(_ context.Context, canonicalURL string, product *api.Product, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[canonicalURL] = memoryEntry{
		product:   *product,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, canonicalURL string) error {
	c.mu.Lock()
	delete(c.entries, canonicalURL)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
