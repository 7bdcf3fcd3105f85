package patterns

import (
	"math"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// DivergenceType classifies price/oscillator disagreement
type DivergenceType string

const (
	RegularBullish DivergenceType = "regular_bullish"
	RegularBearish DivergenceType = "regular_bearish"
	HiddenBullish  DivergenceType = "hidden_bullish"
	HiddenBearish  DivergenceType = "hidden_bearish"
)

// Direction maps the type to its trade direction
func (t DivergenceType) Direction() market.Direction {
	switch t {
	case RegularBullish, HiddenBullish:
		return market.Bullish
	case RegularBearish, HiddenBearish:
		return market.Bearish
	}
	return market.Neutral
}

// Strength bands a normalized magnitude
type Strength string

const (
	Weak     Strength = "weak"
	Moderate Strength = "moderate"
	Strong   Strength = "strong"
)

func bandStrength(mag float64) Strength {
	switch {
	case mag >= 0.67:
		return Strong
	case mag >= 0.34:
		return Moderate
	default:
		return Weak
	}
}

// Divergence compares two sequential swings in price and oscillator
type Divergence struct {
	Type      DivergenceType `json:"type"`
	FromIndex int            `json:"from_index"`
	ToIndex   int            `json:"to_index"`
	PriceFrom float64        `json:"price_from"`
	PriceTo   float64        `json:"price_to"`
	OscFrom   float64        `json:"osc_from"`
	OscTo     float64        `json:"osc_to"`
	Magnitude float64        `json:"magnitude"` // 0..1
	Strength  Strength       `json:"strength"`
}

// DetectDivergences compares the last two swing highs (bearish side) and the
// last two swing lows (bullish side) inside the lookback window. Each side
// needs at least two comparable swings or it reports nothing.
func DetectDivergences(highs, lows, osc []float64, span int, cfg DivergenceConfig) []Divergence {
	n := len(osc)
	if n == 0 || len(highs) != n || len(lows) != n || n < 2*span+3 {
		return nil
	}
	start := 0
	if cfg.Lookback > 0 && n > cfg.Lookback {
		start = n - cfg.Lookback
	}

	var out []Divergence
	highSwings := swingsFrom(FindSwings(highs, span, true), start)
	if a, b, ok := lastPair(highSwings, cfg.MinSeparation); ok {
		if d, ok := classifyBearish(a, b, osc, cfg); ok {
			out = append(out, d)
		}
	}
	lowSwings := swingsFrom(FindSwings(lows, span, false), start)
	if a, b, ok := lastPair(lowSwings, cfg.MinSeparation); ok {
		if d, ok := classifyBullish(a, b, osc, cfg); ok {
			out = append(out, d)
		}
	}
	return out
}

func classifyBearish(a, b Swing, osc []float64, cfg DivergenceConfig) (Divergence, bool) {
	p1, p2 := a.Price, b.Price
	o1, o2 := osc[a.Index], osc[b.Index]
	switch {
	case p2 > p1 && o2 < o1:
		return newDivergence(RegularBearish, a, b, o1, o2, cfg), true
	case p2 < p1 && o2 > o1 && movePct(p1, p2) <= cfg.MildMovePct && o2 >= cfg.HiddenHighBand:
		return newDivergence(HiddenBearish, a, b, o1, o2, cfg), true
	}
	return Divergence{}, false
}

func classifyBullish(a, b Swing, osc []float64, cfg DivergenceConfig) (Divergence, bool) {
	p1, p2 := a.Price, b.Price
	o1, o2 := osc[a.Index], osc[b.Index]
	switch {
	case p2 < p1 && o2 > o1:
		return newDivergence(RegularBullish, a, b, o1, o2, cfg), true
	case p2 > p1 && o2 < o1 && movePct(p1, p2) <= cfg.MildMovePct && o2 <= cfg.HiddenLowBand:
		return newDivergence(HiddenBullish, a, b, o1, o2, cfg), true
	}
	return Divergence{}, false
}

func newDivergence(t DivergenceType, a, b Swing, o1, o2 float64, cfg DivergenceConfig) Divergence {
	mag := 0.5*saturate(movePct(a.Price, b.Price), cfg.PriceNormPct) +
		0.5*saturate(math.Abs(o2-o1), cfg.OscNorm)
	return Divergence{
		Type:      t,
		FromIndex: a.Index,
		ToIndex:   b.Index,
		PriceFrom: a.Price,
		PriceTo:   b.Price,
		OscFrom:   o1,
		OscTo:     o2,
		Magnitude: mag,
		Strength:  bandStrength(mag),
	}
}

func movePct(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return math.Abs(to-from) / math.Abs(from) * 100
}

// saturate maps v onto [0,1] reaching 1 at norm.
func saturate(v, norm float64) float64 {
	if norm <= 0 {
		return 0
	}
	return math.Min(1, v/norm)
}
