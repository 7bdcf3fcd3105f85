package validate

import (
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// StalenessConfig holds the thresholds behind the latency and freshness flags
type StalenessConfig struct {
	MaxDelay         time.Duration `yaml:"max_delay"`          // latency above this sets IsDelayed
	RateLimitLatency time.Duration `yaml:"rate_limit_latency"` // latency above this sets RateLimitHit
	StaleAfter       time.Duration `yaml:"stale_after"`        // grace past the last bar's expected close
	GapFactor        float64       `yaml:"gap_factor"`         // timestamp delta multiple that counts as a gap
}

// DefaultStalenessConfig returns default staleness checking configuration
func DefaultStalenessConfig() StalenessConfig {
	return StalenessConfig{
		MaxDelay:         5 * time.Second,
		RateLimitLatency: 10 * time.Second,
		StaleAfter:       60 * time.Second,
		GapFactor:        4,
	}
}

// StalenessChecker computes quality flags for a fetched series
type StalenessChecker struct {
	config StalenessConfig
}

// NewStalenessChecker creates a new staleness checker with configuration
func NewStalenessChecker(config StalenessConfig) *StalenessChecker {
	def := DefaultStalenessConfig()
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.RateLimitLatency <= 0 {
		config.RateLimitLatency = def.RateLimitLatency
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = def.StaleAfter
	}
	if config.GapFactor <= 1 {
		config.GapFactor = def.GapFactor
	}
	return &StalenessChecker{config: config}
}

// Flags evaluates latency, staleness and gaps for candles fetched at now.
// Candles must already be ordered.
func (sc *StalenessChecker) Flags(candles []market.Candle, tf market.Timeframe, latency time.Duration, now time.Time) market.QualityFlags {
	flags := market.QualityFlags{
		Latency:      latency,
		IsDelayed:    latency > sc.config.MaxDelay,
		RateLimitHit: latency > sc.config.RateLimitLatency,
	}
	if len(candles) == 0 {
		return flags
	}

	interval := tf.Interval()
	lastClose := candles[len(candles)-1].Timestamp.Add(interval)
	flags.IsStale = now.Sub(lastClose) > sc.config.StaleAfter+sc.sessionAllowance(tf)
	flags.HasGaps = sc.hasGaps(candles, interval)
	return flags
}

// sessionAllowance widens the freshness window for daily bars, whose
// "expected close" is only loosely tied to wall-clock time.
func (sc *StalenessChecker) sessionAllowance(tf market.Timeframe) time.Duration {
	if tf.IsIntraday() {
		return 0
	}
	return 72 * time.Hour
}

func (sc *StalenessChecker) hasGaps(candles []market.Candle, interval time.Duration) bool {
	limit := time.Duration(float64(interval) * sc.config.GapFactor)
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp.Sub(candles[i-1].Timestamp) > limit {
			return true
		}
	}
	return false
}
