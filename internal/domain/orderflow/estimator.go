package orderflow

import (
	"math"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// Estimator approximates intrabar buying and selling from OHLCV. The output
// is informational and is never used as a gate on its own.
type Estimator struct {
	config *Config
}

// NewEstimator creates an estimator, falling back to DefaultConfig on nil
func NewEstimator(config *Config) *Estimator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Estimator{config: config}
}

// Config contains the order-flow thresholds
type Config struct {
	TrendLookback     int     `yaml:"trend_lookback"`      // 20 bars for CVD trend
	TrendThresholdPct float64 `yaml:"trend_threshold_pct"` // 15% normalized CVD change
	FlatPricePct      float64 `yaml:"flat_price_pct"`      // 1% max price drift for accumulation
	DeltaWindow       int     `yaml:"delta_window"`        // 5 bars per delta-flip window
	AbsorptionRVOL    float64 `yaml:"absorption_rvol"`     // 1.8x volume after a sweep
	AbsorptionMaxBody float64 `yaml:"absorption_max_body"` // 0.35 body/range
	AbsorptionWithin  int     `yaml:"absorption_within"`   // 2 bars after the sweep
	VolumeLookback    int     `yaml:"volume_lookback"`     // 20 bars for relative volume
}

// DefaultConfig returns the production order-flow configuration
func DefaultConfig() *Config {
	return &Config{
		TrendLookback:     20,
		TrendThresholdPct: 15.0,
		FlatPricePct:      1.0,
		DeltaWindow:       5,
		AbsorptionRVOL:    1.8,
		AbsorptionMaxBody: 0.35,
		AbsorptionWithin:  2,
		VolumeLookback:    20,
	}
}

// Trend classifies the CVD slope
type Trend string

const (
	Rising  Trend = "rising"
	Falling Trend = "falling"
	Flat    Trend = "flat"
)

// Label is the display category for pressure
type Label string

const (
	LabelBuy        Label = "buy"
	LabelSell       Label = "sell"
	LabelNeutral    Label = "neutral"
	LabelAbsorption Label = "absorption"
)

// Snapshot is the order-flow read at the latest bar
type Snapshot struct {
	BuyVolume    float64          `json:"buy_volume"`
	SellVolume   float64          `json:"sell_volume"`
	CVD          float64          `json:"cvd"`
	CVDChangePct float64          `json:"cvd_change_pct"`
	Trend        Trend            `json:"trend"`
	Absorption   bool             `json:"absorption"`
	Accumulation bool             `json:"accumulation"`
	Distribution bool             `json:"distribution"`
	DeltaFlip    market.Direction `json:"delta_flip"`
	Pressure     float64          `json:"pressure"` // 0..100
	Label        Label            `json:"label"`
}

// Split estimates the buy and sell share of a bar's volume from where it
// closed inside its range. A bar with no range splits evenly.
func Split(c market.Candle) (buy, sell float64) {
	rng := c.High - c.Low
	if rng <= 0 {
		return c.Volume / 2, c.Volume / 2
	}
	frac := (c.Close - c.Low) / rng
	frac = math.Max(0, math.Min(1, frac))
	buy = c.Volume * frac
	return buy, c.Volume - buy
}

// Deltas returns buy-sell per bar.
func Deltas(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		b, s := Split(c)
		out[i] = b - s
	}
	return out
}

// CVD is the running sum of per-bar deltas.
func CVD(candles []market.Candle) []float64 {
	d := Deltas(candles)
	for i := 1; i < len(d); i++ {
		d[i] += d[i-1]
	}
	return d
}

// Estimate reads the order flow of candles. sweepIdx lists bars where a
// liquidity sweep fired, used for the absorption check.
func (e *Estimator) Estimate(candles []market.Candle, sweepIdx []int) Snapshot {
	snap := Snapshot{Trend: Flat, DeltaFlip: market.Neutral, Pressure: 50, Label: LabelNeutral}
	n := len(candles)
	if n == 0 {
		return snap
	}
	cfg := e.config

	deltas := Deltas(candles)
	cvd := CVD(candles)
	snap.CVD = cvd[n-1]

	lb := cfg.TrendLookback
	if lb >= n {
		lb = n - 1
	}
	if lb > 0 {
		gross := 0.0
		for _, c := range candles[n-lb:] {
			gross += c.Volume
		}
		if gross > 0 {
			snap.CVDChangePct = (cvd[n-1] - cvd[n-1-lb]) / gross * 100
		}
		switch {
		case snap.CVDChangePct >= cfg.TrendThresholdPct:
			snap.Trend = Rising
		case snap.CVDChangePct <= -cfg.TrendThresholdPct:
			snap.Trend = Falling
		}

		from, to := candles[n-1-lb].Close, candles[n-1].Close
		if from > 0 && math.Abs(to-from)/from*100 <= cfg.FlatPricePct {
			snap.Accumulation = snap.Trend == Rising
			snap.Distribution = snap.Trend == Falling
		}
	}

	snap.DeltaFlip = deltaFlip(deltas, cfg.DeltaWindow)
	snap.Absorption = e.absorption(candles, sweepIdx)

	w := cfg.DeltaWindow
	if w <= 0 || w > n {
		w = n
	}
	for _, c := range candles[n-w:] {
		b, s := Split(c)
		snap.BuyVolume += b
		snap.SellVolume += s
	}
	snap.Pressure, snap.Label = pressure(snap)
	return snap
}

// deltaFlip compares the delta sums of the last window and the one before.
func deltaFlip(deltas []float64, w int) market.Direction {
	if w <= 0 || len(deltas) < 2*w {
		return market.Neutral
	}
	n := len(deltas)
	var recent, prior float64
	for _, d := range deltas[n-w:] {
		recent += d
	}
	for _, d := range deltas[n-2*w : n-w] {
		prior += d
	}
	switch {
	case prior < 0 && recent > 0:
		return market.Bullish
	case prior > 0 && recent < 0:
		return market.Bearish
	}
	return market.Neutral
}

// absorption is heavy volume with little displacement on a bar at or just
// after a sweep.
func (e *Estimator) absorption(candles []market.Candle, sweepIdx []int) bool {
	n := len(candles)
	volumes := market.Volumes(candles)
	for _, s := range sweepIdx {
		if s < 0 || s >= n || n-1-s > e.config.AbsorptionWithin {
			continue
		}
		for i := s; i < n && i <= s+e.config.AbsorptionWithin; i++ {
			c := candles[i]
			if c.Range() <= 0 {
				continue
			}
			if indicators.RelativeVolume(volumes, i, e.config.VolumeLookback) >= e.config.AbsorptionRVOL &&
				c.Body()/c.Range() <= e.config.AbsorptionMaxBody {
				return true
			}
		}
	}
	return false
}

func pressure(s Snapshot) (float64, Label) {
	p := 50.0
	if total := s.BuyVolume + s.SellVolume; total > 0 {
		p = 50 + 50*(s.BuyVolume-s.SellVolume)/total
	}
	switch s.Trend {
	case Rising:
		p += 10
	case Falling:
		p -= 10
	}
	p += 5 * s.DeltaFlip.Sign()
	p = math.Max(0, math.Min(100, p))

	switch {
	case s.Absorption:
		return p, LabelAbsorption
	case p >= 60:
		return p, LabelBuy
	case p <= 40:
		return p, LabelSell
	default:
		return p, LabelNeutral
	}
}
