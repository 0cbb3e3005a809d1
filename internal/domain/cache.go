package domain

import "context"

// ExplanationCache memoizes generated explanations keyed by a normalized
// charge fingerprint. Entries live until an explicit Clear; there is no
// eviction. Get returns ("", false) on a miss. Concurrent misses for the
// same fingerprint may both generate; the cached value is derived and
// idempotent, so the second write winning is acceptable.
type ExplanationCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key string, explanation string) error

	// Administrative operations.
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int, error)
	Peek(ctx context.Context, key string) (string, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ExplanationCacheConfig holds configuration for cache initialization.
type ExplanationCacheConfig struct {
	// Type is the cache backend: "memory" or "redis"
	Type string

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}
