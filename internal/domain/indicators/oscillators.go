package indicators

import (
	"math"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// StochParams configures %K lookback, %K smoothing and the %D period.
type StochParams struct {
	K       int `yaml:"k" json:"k"`
	SmoothK int `yaml:"smooth_k" json:"smooth_k"`
	D       int `yaml:"d" json:"d"`
}

// StochSeries holds smoothed %K and %D, both bounded to [0,100].
type StochSeries struct {
	K []float64
	D []float64
}

// StochValue is the stochastic state at the latest bar.
type StochValue struct {
	K     float64 `json:"k"`
	D     float64 `json:"d"`
	PrevK float64 `json:"prev_k"`
	PrevD float64 `json:"prev_d"`
}

// Stochastic computes the slow stochastic oscillator. A window with no range
// reads 50.
func Stochastic(candles []market.Candle, p StochParams) StochSeries {
	n := len(candles)
	raw := make([]float64, n)
	lookback := p.K
	if lookback < 1 {
		lookback = 1
	}
	for i := range candles {
		start := i - lookback + 1
		if start < 0 {
			start = 0
		}
		hh, ll := candles[start].High, candles[start].Low
		for j := start + 1; j <= i; j++ {
			hh = math.Max(hh, candles[j].High)
			ll = math.Min(ll, candles[j].Low)
		}
		if hh == ll {
			raw[i] = 50.0
			continue
		}
		raw[i] = clamp(100*(candles[i].Close-ll)/(hh-ll), 0, 100)
	}
	k := clampAll(SMA(raw, p.SmoothK))
	return StochSeries{K: k, D: clampAll(SMA(k, p.D))}
}

func (s StochSeries) Latest() StochValue {
	if len(s.K) == 0 {
		return StochValue{K: 50, D: 50, PrevK: 50, PrevD: 50}
	}
	return StochValue{K: last(s.K), D: last(s.D), PrevK: prev(s.K), PrevD: prev(s.D)}
}

// BollingerValue is the band state at the latest bar.
type BollingerValue struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	Width    float64 `json:"width"`     // (upper-lower)/middle
	PercentB float64 `json:"percent_b"` // position of price inside the bands
}

// Bollinger returns SMA(period) ± k·σ at the last bar, with σ the population
// standard deviation of the window.
func Bollinger(closes []float64, period int, k float64) BollingerValue {
	n := len(closes)
	if n == 0 {
		return BollingerValue{PercentB: 0.5}
	}
	if period <= 0 {
		period = 20
	}
	start := n - period
	if start < 0 {
		start = 0
	}
	window := closes[start:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))
	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(len(window)))

	bv := BollingerValue{Upper: mean + k*sd, Middle: mean, Lower: mean - k*sd, PercentB: 0.5}
	if mean != 0 {
		bv.Width = (bv.Upper - bv.Lower) / mean
	}
	if bv.Upper > bv.Lower {
		bv.PercentB = (closes[n-1] - bv.Lower) / (bv.Upper - bv.Lower)
	}
	return bv
}

// ADXSeries holds ADX and the directional indicators, all in [0,100].
type ADXSeries struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADXValue is the trend-strength state at the latest bar.
type ADXValue struct {
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
}

// ADX computes Wilder's ADX. Values read 0 until enough bars exist for the
// first smoothed DX average.
func ADX(candles []market.Candle, period int) ADXSeries {
	n := len(candles)
	s := ADXSeries{ADX: make([]float64, n), PlusDI: make([]float64, n), MinusDI: make([]float64, n)}
	if period <= 0 || n <= period {
		return s
	}

	tr := TrueRange(candles)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}

	p := float64(period)
	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if i > period {
			sTR = sTR - sTR/p + tr[i]
			sPlus = sPlus - sPlus/p + plusDM[i]
			sMinus = sMinus - sMinus/p + minusDM[i]
		}
		if sTR > 0 {
			s.PlusDI[i] = clamp(100*sPlus/sTR, 0, 100)
			s.MinusDI[i] = clamp(100*sMinus/sTR, 0, 100)
		}
		if sum := s.PlusDI[i] + s.MinusDI[i]; sum > 0 {
			dx[i] = clamp(100*math.Abs(s.PlusDI[i]-s.MinusDI[i])/sum, 0, 100)
		}
	}

	first := 2*period - 1
	if first >= n {
		return s
	}
	adx := 0.0
	for i := period; i <= first; i++ {
		adx += dx[i]
	}
	adx /= p
	s.ADX[first] = adx
	for i := first + 1; i < n; i++ {
		adx = (adx*(p-1) + dx[i]) / p
		s.ADX[i] = clamp(adx, 0, 100)
	}
	return s
}

func (s ADXSeries) Latest() ADXValue {
	return ADXValue{ADX: last(s.ADX), PlusDI: last(s.PlusDI), MinusDI: last(s.MinusDI)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampAll pins running-sum drift back into [0,100].
func clampAll(values []float64) []float64 {
	for i, v := range values {
		values[i] = clamp(v, 0, 100)
	}
	return values
}
