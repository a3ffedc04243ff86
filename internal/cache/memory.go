// Package cache provides the short-lived key/value stores backing audit
// codes: an in-process LRU for single-node deployments and a Redis
// client for clustered ones.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"

	"libshare/internal/libshare"
)

const memoryCacheSize = 4096

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	c gcache.Cache
}

// NewMemoryCache creates an in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{c: gcache.New(memoryCacheSize).LRU().Build()}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	v, err := m.c.Get(key)
	if err != nil {
		return "", fmt.Errorf("%w: cache key %s", libshare.ErrNotFound, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("cache key %s holds unexpected type %T", key, v)
	}
	return s, nil
}

func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if err := m.c.SetWithExpire(key, value, ttl); err != nil {
		return fmt.Errorf("setting cache key %s: %w", key, err)
	}
	return nil
}

func (m *MemoryCache) Del(_ context.Context, key string) error {
	m.c.Remove(key)
	return nil
}

func (m *MemoryCache) Close() error {
	m.c.Purge()
	return nil
}
