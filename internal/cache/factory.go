package cache

import (
	"context"
	"fmt"

	"libshare/internal/config"
	"libshare/internal/libshare"
)

// NewCacheFromConfig creates a Cache implementation based on the cache
// config type.
func NewCacheFromConfig(ctx context.Context, cfg config.CacheConfig) (libshare.Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryCache(), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis cache requires redis_addr to be set")
		}
		return NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
