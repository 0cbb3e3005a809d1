package explain

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opensource-finance/osprey/internal/domain"
)

// explanationsHashKey is the single Redis hash holding all cached
// explanations; fingerprints are hash fields.
const explanationsHashKey = "kestrel:explanations"

// RedisCache implements the explanation cache on Redis (Pro tier), so
// multiple nodes share one memoization space. Same lifecycle contract as
// the memory backend: no TTL, cleared only by explicit Clear.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed explanation cache.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a cached explanation.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.HGet(ctx, explanationsHashKey, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

// Put stores an explanation under the given fingerprint.
func (c *RedisCache) Put(ctx context.Context, key string, explanation string) error {
	return c.client.HSet(ctx, explanationsHashKey, key, explanation).Err()
}

// Clear discards every entry.
func (c *RedisCache) Clear(ctx context.Context) error {
	return c.client.Del(ctx, explanationsHashKey).Err()
}

// Size returns the number of cached entries.
func (c *RedisCache) Size(ctx context.Context) (int, error) {
	n, err := c.client.HLen(ctx, explanationsHashKey).Result()
	return int(n), err
}

// Peek returns the entry for a key or domain.ErrNotFound.
func (c *RedisCache) Peek(ctx context.Context, key string) (string, error) {
	v, err := c.client.HGet(ctx, explanationsHashKey, key).Result()
	if err == redis.Nil {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
