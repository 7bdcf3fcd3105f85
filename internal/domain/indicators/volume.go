package indicators

import "github.com/csd2000/Trade-Flow-sub002/internal/domain/market"

// OBV is on-balance volume: volume added on up closes and subtracted on
// down closes.
func OBV(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			out[i] = out[i-1] + candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			out[i] = out[i-1] - candles[i].Volume
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// RelativeVolume is the volume of bar i over the mean of the lookback bars
// before it. Returns 1.0 when there is nothing to compare against.
func RelativeVolume(volumes []float64, i, lookback int) float64 {
	if i <= 0 || i >= len(volumes) || lookback <= 0 {
		return 1.0
	}
	start := i - lookback
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, v := range volumes[start:i] {
		sum += v
	}
	avg := sum / float64(i-start)
	if avg <= 0 {
		return 1.0
	}
	return volumes[i] / avg
}

// PivotLevels are classic floor-trader pivots.
type PivotLevels struct {
	P  float64 `json:"p"`
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	R3 float64 `json:"r3"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
	S3 float64 `json:"s3"`
}

// ClassicPivots derives pivots from one bar's high, low and close.
func ClassicPivots(c market.Candle) PivotLevels {
	p := (c.High + c.Low + c.Close) / 3
	rng := c.High - c.Low
	return PivotLevels{
		P:  p,
		R1: 2*p - c.Low,
		S1: 2*p - c.High,
		R2: p + rng,
		S2: p - rng,
		R3: c.High + 2*(p-c.Low),
		S3: c.Low - 2*(c.High-p),
	}
}

// Resistances lists R1..R3 ascending.
func (pl PivotLevels) Resistances() []float64 { return []float64{pl.R1, pl.R2, pl.R3} }

// Supports lists S1..S3 descending.
func (pl PivotLevels) Supports() []float64 { return []float64{pl.S1, pl.S2, pl.S3} }
