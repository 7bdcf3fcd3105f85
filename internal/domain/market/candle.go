package market

import (
	"math"
	"sort"
	"time"
)

// Candle represents one OHLCV bar. Timestamp is the bar open time.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IsBullish reports whether the bar closed above its open.
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// IsBearish reports whether the bar closed below its open.
func (c Candle) IsBearish() bool { return c.Close < c.Open }

func (c Candle) Body() float64 { return math.Abs(c.Close - c.Open) }

func (c Candle) Range() float64 { return c.High - c.Low }

func (c Candle) UpperWick() float64 { return c.High - math.Max(c.Open, c.Close) }

func (c Candle) LowerWick() float64 { return math.Min(c.Open, c.Close) - c.Low }

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high series.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low series.
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts the volume series.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// ClosedOnly drops a trailing bar that has not finished forming at now.
// Detectors only ever look at closed bars.
func ClosedOnly(candles []Candle, tf Timeframe, now time.Time) []Candle {
	if len(candles) == 0 {
		return candles
	}
	last := candles[len(candles)-1]
	if last.Timestamp.Add(tf.Interval()).After(now) {
		return candles[:len(candles)-1]
	}
	return candles
}

// Aggregate folds bars into buckets of the target width, aligned on UTC
// boundaries. Used when a provider has no native interval for a timeframe.
func Aggregate(candles []Candle, target time.Duration) []Candle {
	if len(candles) == 0 || target <= 0 {
		return nil
	}

	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var out []Candle
	for _, c := range sorted {
		bucket := c.Timestamp.UTC().Truncate(target)
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(bucket) {
			agg := &out[n-1]
			agg.High = math.Max(agg.High, c.High)
			agg.Low = math.Min(agg.Low, c.Low)
			agg.Close = c.Close
			agg.Volume += c.Volume
			continue
		}
		out = append(out, Candle{
			Timestamp: bucket,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	return out
}
