package explain

import (
	"fmt"

	"github.com/opensource-finance/osprey/internal/domain"
)

// NewCache creates an explanation cache based on configuration.
// Community tier: in-process map. Pro tier: Redis.
func NewCache(cfg domain.ExplanationCacheConfig) (domain.ExplanationCache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryCache(), nil
	case "redis":
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported explanation cache type: %s", cfg.Type)
	}
}
