package redis

import (
	"context"
	stdliberrors "errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/pkg/errors"
)

// DefaultKeyPrefix namespaces every key written by rxntd.
const DefaultKeyPrefix = "rxntd:"

var (
	ErrCacheMiss       = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrCacheValueEmpty = errors.New(errors.ErrCodeValidation, "cache value is empty")
)

// VectorCache stores encoded descriptor vectors in redis. Concurrent reads of
// the same key share one round trip.
type VectorCache struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	defaultTTL time.Duration
	group      singleflight.Group
}

type CacheOption func(*VectorCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *VectorCache) { c.prefix = prefix }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *VectorCache) { c.defaultTTL = ttl }
}

func NewVectorCache(client *Client, log logging.Logger, opts ...CacheOption) *VectorCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &VectorCache{
		client:     client,
		logger:     log,
		prefix:     client.KeyPrefix(),
		defaultTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *VectorCache) fullKey(key string) string {
	return c.prefix + key
}

// jitterTTL spreads expiry by +/- 10% so a bulk run does not expire at once.
func (c *VectorCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

// Get returns the stored bytes or ErrCacheMiss.
func (c *VectorCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := c.fullKey(key)
	v, err, _ := c.group.Do(fullKey, func() (interface{}, error) {
		data, err := c.client.Get(ctx, fullKey).Bytes()
		if stdliberrors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Set stores value under key. A zero ttl uses the default TTL.
func (c *VectorCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if len(value) == 0 {
		return ErrCacheValueEmpty
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.fullKey(key), value, c.jitterTTL(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set cache")
	}
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (c *VectorCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.fullKey(k)
	}
	if err := c.client.Del(ctx, fullKeys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to delete from cache")
	}
	return nil
}

func (c *VectorCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
