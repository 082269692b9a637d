// Package rediscache provides read-through Redis caches in front of the SQLite repositories.
//
// Redis is optional. A nil client disables caching and every read goes to the loader. Redis failures are logged
// and fall through to the loader as well, so the caches never make a request fail.
package rediscache

import (
	"context"
	"encoding/json"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"
)

const keyPrefix = "decisionverse:"

// cache stores the JSON encoding of a single value of type T under key.
type cache[T any] struct {
	client     *redis.Client
	key        string
	ttl        time.Duration
	load       func(ctx context.Context) (T, error)
	sf         singleflight.Group
	// generation is bumped by invalidate. Loads started in an older generation do not write to Redis.
	generation atomic.Uint64
	logger     *slog.Logger
}

func newCache[T any](
	client *redis.Client,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (T, error),
	logger *slog.Logger,
) *cache[T] {
	return &cache[T]{
		client:     client,
		key:        keyPrefix + key,
		ttl:        ttl,
		load:       load,
		sf:         singleflight.Group{},
		generation: atomic.Uint64{},
		logger:     logger.With("source", "rediscache", "key", keyPrefix+key),
	}
}

func (c *cache[T]) get(ctx context.Context) (T, error) {
	if c.client == nil {
		return c.load(ctx)
	}
	if v, ok := c.lookup(ctx); ok {
		return v, nil
	}
	gen := c.generation.Load()
	// Callers after an invalidation must not join a load that may have read stale data.
	result, err, _ := c.sf.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		// Another caller may have filled the cache while we waited.
		if v, ok := c.lookup(ctx); ok {
			return v, nil
		}
		v, err := c.load(ctx)
		if err != nil {
			return v, err
		}
		if c.generation.Load() == gen {
			c.store(ctx, v)
			// An invalidation may have slipped in between the check and the write.
			if c.generation.Load() != gen {
				c.drop(ctx)
			}
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil //nolint:forcetypeassert // the singleflight function only returns T
}

func (c *cache[T]) lookup(ctx context.Context) (T, bool) {
	var v T
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false
	}
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "cache read failed", errors.SlogError(err))
		return v, false
	}
	if err = json.Unmarshal(data, &v); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "corrupt cache entry", errors.SlogError(err))
		return v, false
	}
	return v, true
}

func (c *cache[T]) store(ctx context.Context, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "encode cache entry", errors.SlogError(err))
		return
	}
	if err = c.client.Set(ctx, c.key, data, c.ttlWithJitter()).Err(); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "cache write failed", errors.SlogError(err))
	}
}

// ttlWithJitter spreads expiry over an extra tenth of the TTL.
func (c *cache[T]) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	spread := c.ttl / 10
	if spread <= 0 {
		return c.ttl
	}
	return c.ttl + rand.N(spread)
}

func (c *cache[T]) invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}
	c.generation.Add(1)
	c.drop(ctx)
}

func (c *cache[T]) drop(ctx context.Context) {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "cache invalidation failed", errors.SlogError(err))
	}
}

// NewClient connects to addr and verifies the connection with a ping.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr}) //nolint:exhaustruct // defaults for the rest
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis", slog.String("addr", addr))
	}
	return client, nil
}
