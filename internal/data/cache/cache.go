// Package cache holds the last good candle series per (symbol, timeframe)
// in an in-process tier and, optionally, a shared Redis tier.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Store is one cache tier
type Store interface {
	Name() string
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// TTLConfig sets how long a fetched series stays reusable
type TTLConfig struct {
	Intraday time.Duration `yaml:"intraday" default:"15s"`
	Daily    time.Duration `yaml:"daily" default:"60s"`
}

func DefaultTTLConfig() TTLConfig {
	return TTLConfig{Intraday: 15 * time.Second, Daily: 60 * time.Second}
}

// For returns the TTL for a timeframe
func (t TTLConfig) For(tf market.Timeframe) time.Duration {
	if tf.IsIntraday() {
		return t.Intraday
	}
	return t.Daily
}

// CandleKey is the cache key of a (symbol, timeframe) series
func CandleKey(symbol string, tf market.Timeframe) string {
	return fmt.Sprintf("candles:%s:%s", symbol, tf)
}
