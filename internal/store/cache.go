package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// cacheKey is the Redis set holding every fingerprint already persisted.
const cacheKey = "collector:fingerprints"

// Cache is a Redis-backed fingerprint set used as a fast pre-check in
// front of the calls table's uniqueness constraints. It is an accelerator,
// never the source of truth: every operation degrades silently to "ask
// Postgres" on failure.
type Cache struct {
	rdb *redis.Client
}

// NewCache parses redisURL and verifies connectivity.
func NewCache(ctx context.Context, redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Cache{rdb: client}, nil
}

// Has reports whether fp is known to be stored. False on any Redis error.
func (c *Cache) Has(ctx context.Context, fp string) bool {
	ok, err := c.rdb.SIsMember(ctx, cacheKey, fp).Result()
	return err == nil && ok
}

// Add marks fp as stored. Best-effort.
func (c *Cache) Add(ctx context.Context, fp string) {
	c.rdb.SAdd(ctx, cacheKey, fp)
}

// Clear drops the whole set.
func (c *Cache) Clear(ctx context.Context) {
	c.rdb.Del(ctx, cacheKey)
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
