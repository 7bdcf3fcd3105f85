package indicators

import (
	"math"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// RSIResult represents the RSI at the latest bar
type RSIResult struct {
	Value     float64 `json:"value"`
	Previous  float64 `json:"previous"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// RSISeries computes Wilder's RSI for every bar. Bars before the first full
// period read a neutral 50, and a series with no movement at all stays at 50.
func RSISeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = 50.0
	}
	if period <= 0 || len(prices) < period+1 {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		g, l := gainLoss(prices[i] - prices[i-1])
		avgGain += g
		avgLoss += l
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(prices); i++ {
		g, l := gainLoss(prices[i] - prices[i-1])
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

// CalculateRSI returns the RSI at the last bar, 50 when history is short
func CalculateRSI(prices []float64, period int) RSIResult {
	res := RSIResult{Value: 50.0, Previous: 50.0, Period: period, DataCount: len(prices)}
	if period <= 0 || len(prices) < period+1 {
		return res
	}
	series := RSISeries(prices, period)
	res.Value = series[len(series)-1]
	res.Previous = series[len(series)-2]
	res.IsValid = true
	return res
}

func gainLoss(change float64) (float64, float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ATRResult represents the ATR at the latest bar
type ATRResult struct {
	Value     float64 `json:"value"`
	Previous  float64 `json:"previous"`
	Period    int     `json:"period"`
	Trending  bool    `json:"trending"` // current ATR above the previous bar
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses its own range.
func TrueRange(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			out[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		hl := c.High - c.Low
		hc := math.Abs(c.High - prevClose)
		lc := math.Abs(c.Low - prevClose)
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATRSeries is Wilder's average true range, seeded with the SMA of the first
// period true ranges.
func ATRSeries(candles []market.Candle, period int) []float64 {
	return wilderSmooth(TrueRange(candles), period)
}

// CalculateATR returns the ATR at the last bar
func CalculateATR(candles []market.Candle, period int) ATRResult {
	res := ATRResult{Period: period, DataCount: len(candles)}
	if period <= 0 || len(candles) < period+1 {
		return res
	}
	series := ATRSeries(candles, period)
	n := len(series)
	res.Value = series[n-1]
	res.Previous = series[n-2]
	res.Trending = res.Value > res.Previous
	res.IsValid = true
	return res
}

// wilderSmooth averages values with 1/period weighting after an SMA seed.
// Bars before the seed carry the expanding mean.
func wilderSmooth(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	if period <= 1 {
		copy(out, values)
		return out
	}
	sum := 0.0
	p := float64(period)
	for i, v := range values {
		if i < period {
			sum += v
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (out[i-1]*(p-1) + v) / p
	}
	return out
}
