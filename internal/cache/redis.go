// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wishlink/wishlink/pkg/api"
)

const redisKeyPrefix = "wishlink:product:"

// RedisCache is a Cache backed by redis, for deployments with more than one
// service instance. Products are stored as JSON with redis handling expiry.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, canonicalURL string) (*api.Product, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+canonicalURL).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var product api.Product
	if err := json.Unmarshal(data, &product); err != nil {
		// A corrupt entry behaves like a miss.
		return nil, nil
	}
	return &product, nil
}

func (c *RedisCache) Set(ctx context.Context, canonicalURL string, product *api.Product, ttl time.Duration) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to encode product: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+canonicalURL, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, canonicalURL string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+canonicalURL).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
