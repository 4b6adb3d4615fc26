package cache

import (
	"context"
	"time"

	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
)

// Store is a byte cache layer. The redis vector cache satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// LayeredCache checks memory first, then the shared store. Shared hits are
// promoted into memory. Shared store failures degrade to misses so a down
// redis never fails a run.
type LayeredCache struct {
	memory    *MemoryCache
	shared    Store
	memoryTTL time.Duration
	logger    logging.Logger
}

// NewLayeredCache fronts shared with memory. shared may be nil, in which
// case the cache is memory only.
func NewLayeredCache(memory *MemoryCache, shared Store, memoryTTL time.Duration, log logging.Logger) *LayeredCache {
	if memory == nil {
		panic("memory cache cannot be nil")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &LayeredCache{memory: memory, shared: shared, memoryTTL: memoryTTL, logger: log}
}

func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if val, err := c.memory.Get(ctx, key); err == nil {
		return val, nil
	}
	if c.shared == nil {
		return nil, ErrCacheMiss
	}
	val, err := c.shared.Get(ctx, key)
	if err != nil {
		if !IsMiss(err) {
			c.logger.Debug("shared cache read failed", logging.String("key", key), logging.Err(err))
		}
		return nil, ErrCacheMiss
	}
	_ = c.memory.Set(ctx, key, val, c.memoryTTL)
	return val, nil
}

// Set writes both layers. The memory layer keeps its own TTL.
func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	memTTL := c.memoryTTL
	if ttl > 0 && (memTTL <= 0 || ttl < memTTL) {
		memTTL = ttl
	}
	_ = c.memory.Set(ctx, key, value, memTTL)
	if c.shared == nil {
		return nil
	}
	if err := c.shared.Set(ctx, key, value, ttl); err != nil {
		c.logger.Debug("shared cache write failed", logging.String("key", key), logging.Err(err))
	}
	return nil
}
