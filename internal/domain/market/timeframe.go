package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the bar width requested from providers.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var timeframeIntervals = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// ParseTimeframe accepts the canonical names plus a few common aliases.
func ParseTimeframe(s string) (Timeframe, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "60m":
		v = "1h"
	case "240m":
		v = "4h"
	case "d", "1day", "daily":
		v = "1d"
	}
	tf := Timeframe(v)
	if _, ok := timeframeIntervals[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Interval returns the bar width. Unknown timeframes map to one hour.
func (tf Timeframe) Interval() time.Duration {
	if d, ok := timeframeIntervals[tf]; ok {
		return d
	}
	return time.Hour
}

// IsIntraday is true for anything shorter than a daily bar.
func (tf Timeframe) IsIntraday() bool {
	return tf.Interval() < 24*time.Hour
}

func (tf Timeframe) String() string { return string(tf) }
