package patterns

import (
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// FairValueGap is a three-bar imbalance between bar N-2 and bar N
type FairValueGap struct {
	Index       int              `json:"index"` // bar N
	Time        time.Time        `json:"time"`
	Direction   market.Direction `json:"direction"`
	Top         float64          `json:"top"`
	Bottom      float64          `json:"bottom"`
	SizePct     float64          `json:"size_pct"`
	Filled      bool             `json:"filled"`
	FilledIndex int              `json:"filled_index,omitempty"`
}

// Contains reports whether price sits inside the gap
func (g FairValueGap) Contains(price float64) bool {
	return price >= g.Bottom && price <= g.Top
}

// DetectFairValueGaps finds gaps in the lookback window and marks those that
// price has revisited since they formed. Gaps smaller than MinGapPct of the
// middle bar's close are discarded.
func DetectFairValueGaps(candles []market.Candle, cfg FVGConfig) []FairValueGap {
	n := len(candles)
	if n < 3 {
		return nil
	}
	start := 2
	if cfg.Lookback > 0 && n-cfg.Lookback > start {
		start = n - cfg.Lookback
	}

	var out []FairValueGap
	for i := start; i < n; i++ {
		c1, c2, c3 := candles[i-2], candles[i-1], candles[i]
		if c2.Close <= 0 {
			continue
		}
		var g FairValueGap
		switch {
		case c3.Low > c1.High:
			g = FairValueGap{Direction: market.Bullish, Top: c3.Low, Bottom: c1.High}
		case c3.High < c1.Low:
			g = FairValueGap{Direction: market.Bearish, Top: c1.Low, Bottom: c3.High}
		default:
			continue
		}
		g.Index = i
		g.Time = c3.Timestamp
		g.SizePct = (g.Top - g.Bottom) / c2.Close * 100
		if g.SizePct < cfg.MinGapPct {
			continue
		}
		for k := i + 1; k < n; k++ {
			if (g.Direction == market.Bullish && candles[k].Low <= g.Top) ||
				(g.Direction == market.Bearish && candles[k].High >= g.Bottom) {
				g.Filled = true
				g.FilledIndex = k
				break
			}
		}
		out = append(out, g)
	}
	return out
}

// OrderBlock is the last opposite-coloured bar before an expansion bar
type OrderBlock struct {
	Index           int              `json:"index"`
	ExpansionIndex  int              `json:"expansion_index"`
	Time            time.Time        `json:"time"`
	Direction       market.Direction `json:"direction"`
	High            float64          `json:"high"`
	Low             float64          `json:"low"`
	VolumeRatio     float64          `json:"volume_ratio"`
	VolumeConfirmed bool             `json:"volume_confirmed"`
	Mitigated       bool             `json:"mitigated"`
}

// DetectOrderBlocks finds bullish blocks (bearish bar followed by a bullish
// bar closing above its high) and the bearish mirror. A block is mitigated
// once a later close trades through its far side.
func DetectOrderBlocks(candles []market.Candle, cfg OrderBlockConfig) []OrderBlock {
	n := len(candles)
	if n < 2 {
		return nil
	}
	start := 1
	if cfg.Lookback > 0 && n-cfg.Lookback > start {
		start = n - cfg.Lookback
	}
	volumes := market.Volumes(candles)

	var out []OrderBlock
	for i := start; i < n; i++ {
		e, p := candles[i], candles[i-1]
		if e.Range() <= 0 || e.Body()/e.Range() < cfg.MinBodyRatio {
			continue
		}
		var dir market.Direction
		switch {
		case e.IsBullish() && p.IsBearish() && e.Close > p.High:
			dir = market.Bullish
		case e.IsBearish() && p.IsBullish() && e.Close < p.Low:
			dir = market.Bearish
		default:
			continue
		}
		ob := OrderBlock{
			Index:          i - 1,
			ExpansionIndex: i,
			Time:           p.Timestamp,
			Direction:      dir,
			High:           p.High,
			Low:            p.Low,
			VolumeRatio:    indicators.RelativeVolume(volumes, i-1, cfg.VolumeLookback),
		}
		ob.VolumeConfirmed = ob.VolumeRatio > cfg.VolumeMultiple
		for k := i + 1; k < n; k++ {
			if (dir == market.Bullish && candles[k].Close < ob.Low) ||
				(dir == market.Bearish && candles[k].Close > ob.High) {
				ob.Mitigated = true
				break
			}
		}
		out = append(out, ob)
	}
	return out
}

// BreakoutTrap is a close beyond a level that fails back inside it
type BreakoutTrap struct {
	BreakIndex    int              `json:"break_index"`
	FailIndex     int              `json:"fail_index"`
	Time          time.Time        `json:"time"`
	Level         float64          `json:"level"`
	Direction     market.Direction `json:"direction"` // direction implied by the failure
	BarsToFailure int              `json:"bars_to_failure"`
	Probability   float64          `json:"probability"`
}

// DetectBreakoutTraps tests each confirmed swing level for a fresh close
// beyond it followed by a close back on the original side within Window
// bars. Probability is 1/barsToFailure.
func DetectBreakoutTraps(candles []market.Candle, span int, cfg TrapConfig) []BreakoutTrap {
	n := len(candles)
	if n < 2*span+3 {
		return nil
	}
	window := cfg.Window
	if window <= 0 {
		window = 3
	}
	start := 0
	if cfg.Lookback > 0 && n > cfg.Lookback {
		start = n - cfg.Lookback
	}
	closes := market.Closes(candles)

	seen := make(map[[2]int]bool)
	var out []BreakoutTrap
	check := func(s Swing, resistance bool) {
		for i := s.Index + span + 1; i < n; i++ {
			var broke bool
			if resistance {
				broke = closes[i] > s.Price && closes[i-1] <= s.Price
			} else {
				broke = closes[i] < s.Price && closes[i-1] >= s.Price
			}
			if !broke {
				continue
			}
			for k := i + 1; k < n && k <= i+window; k++ {
				failed := (resistance && closes[k] < s.Price) || (!resistance && closes[k] > s.Price)
				if !failed {
					continue
				}
				key := [2]int{i, k}
				if seen[key] {
					return
				}
				seen[key] = true
				dir := market.Bearish
				if !resistance {
					dir = market.Bullish
				}
				bars := k - i
				out = append(out, BreakoutTrap{
					BreakIndex:    i,
					FailIndex:     k,
					Time:          candles[k].Timestamp,
					Level:         s.Price,
					Direction:     dir,
					BarsToFailure: bars,
					Probability:   1 / float64(bars),
				})
				return
			}
			return
		}
	}

	for _, s := range swingsFrom(FindSwings(market.Highs(candles), span, true), start) {
		check(s, true)
	}
	for _, s := range swingsFrom(FindSwings(market.Lows(candles), span, false), start) {
		check(s, false)
	}
	return out
}
