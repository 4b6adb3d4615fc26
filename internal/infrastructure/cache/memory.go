// Package cache provides the in-process descriptor vector cache and a
// layered cache that fronts a shared store with it.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/turtacn/rxntd/pkg/errors"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "cache miss")

// IsMiss reports whether err is a plain miss rather than a store fault.
func IsMiss(err error) bool {
	return errors.IsCode(err, errors.ErrCodeNotFound)
}

// MemoryCache holds encoded vectors in process memory with per-entry TTL.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a memory cache. A zero defaultTTL never expires
// entries stored without a TTL.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if val, found := c.cache.Get(key); found {
		return val.([]byte), nil
	}
	return nil, ErrCacheMiss
}

// Set stores a copy of value. A zero ttl uses the cache default.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// Len reports the number of entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}

func (c *MemoryCache) Clear() {
	c.cache.Flush()
}
