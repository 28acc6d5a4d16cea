// internal/cache/cache.go

// Package cache stores enriched products keyed by canonical URL so repeat
// lookups of the same page skip the fetch entirely.
package cache

import (
	"context"
	"time"

	"github.com/wishlink/wishlink/pkg/api"
)

// Cache is a TTL-bounded product cache. Implementations must be safe for
// concurrent use. Get returns (nil, nil) on a miss; an error means the
// backend itself failed and the caller should proceed without the cache.
type Cache interface {
	Get(ctx context.Context, canonicalURL string) (*api.Product, error)
	Set(ctx context.Context, canonicalURL string, product *api.Product, ttl time.Duration) error
	Delete(ctx context.Context, canonicalURL string) error
	Close() error
}
