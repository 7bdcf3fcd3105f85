package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// LayeredCache reads memory first, then Redis, and writes through to both.
// Redis failures degrade to memory-only behaviour rather than failing a fetch.
type LayeredCache struct {
	memory *TTLCache
	redis  *RedisCache
}

func NewLayeredCache(memory *TTLCache, redis *RedisCache) *LayeredCache {
	return &LayeredCache{memory: memory, redis: redis}
}

func (lc *LayeredCache) Name() string { return "layered" }

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.memory.Get(ctx, key, dest); err == nil {
		return nil
	}

	err := lc.redis.Get(ctx, key, dest)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Redis tier read failed")
		}
		return ErrCacheMiss
	}

	// backfill L1 for whatever lifetime the entry has left
	if ttl := lc.redis.TTL(ctx, key); ttl > 0 {
		_ = lc.memory.Set(ctx, key, dest, ttl)
	}
	return nil
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := lc.memory.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := lc.redis.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis tier write failed")
	}
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, key string) error {
	_ = lc.memory.Delete(ctx, key)
	return lc.redis.Delete(ctx, key)
}

func (lc *LayeredCache) Close() error {
	_ = lc.memory.Close()
	return lc.redis.Close()
}
