package patterns

import (
	"math"
	"sort"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// LevelKind identifies where a liquidity level came from
type LevelKind string

const (
	SwingHighLevel  LevelKind = "swing_high"
	SwingLowLevel   LevelKind = "swing_low"
	EqualHighsLevel LevelKind = "equal_highs"
	EqualLowsLevel  LevelKind = "equal_lows"
	PeriodHighLevel LevelKind = "period_high"
	PeriodLowLevel  LevelKind = "period_low"
)

// rank orders levels by how much resting liquidity they imply.
func (k LevelKind) rank() int {
	switch k {
	case EqualHighsLevel, EqualLowsLevel:
		return 3
	case PeriodHighLevel, PeriodLowLevel:
		return 2
	default:
		return 1
	}
}

// Level is a price where stops are expected to rest
type Level struct {
	Price   float64   `json:"price"`
	Kind    LevelKind `json:"kind"`
	Above   bool      `json:"above"` // true for highs (buy stops), false for lows
	Touches int       `json:"touches"`
	Index   int       `json:"index"` // last bar that formed the level
}

// Sweep is a pierce of a level followed by a close back inside it
type Sweep struct {
	Index          int              `json:"index"`
	Time           time.Time        `json:"time"`
	Direction      market.Direction `json:"direction"`
	Level          Level            `json:"level"`
	Extreme        float64          `json:"extreme"`
	PiercePct      float64          `json:"pierce_pct"`
	ReclaimIndex   int              `json:"reclaim_index"`
	RejectionRatio float64          `json:"rejection_ratio"` // wick / body
	VolumeSpike    bool             `json:"volume_spike"`
	Quality        float64          `json:"quality"` // 0..1
}

// FindLevels collects liquidity levels from bars [upto-Lookback, upto).
// Swings need span confirming bars before upto.
func FindLevels(candles []market.Candle, upto, span int, cfg SweepConfig) []Level {
	if upto > len(candles) {
		upto = len(candles)
	}
	start := 0
	if cfg.Lookback > 0 && upto > cfg.Lookback {
		start = upto - cfg.Lookback
	}
	window := candles[start:upto]
	if len(window) < 2*span+1 {
		return nil
	}

	highs := FindSwings(market.Highs(window), span, true)
	lows := FindSwings(market.Lows(window), span, false)
	for i := range highs {
		highs[i].Index += start
	}
	for i := range lows {
		lows[i].Index += start
	}

	var levels []Level
	levels = append(levels, clusterLevels(highs, true, cfg.EqualTolerancePct)...)
	levels = append(levels, clusterLevels(lows, false, cfg.EqualTolerancePct)...)

	hiIdx, loIdx := start, start
	for i := start; i < upto; i++ {
		if candles[i].High > candles[hiIdx].High {
			hiIdx = i
		}
		if candles[i].Low < candles[loIdx].Low {
			loIdx = i
		}
	}
	levels = append(levels,
		Level{Price: candles[hiIdx].High, Kind: PeriodHighLevel, Above: true, Touches: 1, Index: hiIdx},
		Level{Price: candles[loIdx].Low, Kind: PeriodLowLevel, Above: false, Touches: 1, Index: loIdx},
	)
	return levels
}

// clusterLevels groups swings within tolerance of each other. Groups with
// two or more touches become equal-level entries; singletons stay swings.
func clusterLevels(swings []Swing, above bool, tolPct float64) []Level {
	if len(swings) == 0 {
		return nil
	}
	sorted := make([]Swing, len(swings))
	copy(sorted, swings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	var out []Level
	flush := func(group []Swing) {
		if len(group) == 0 {
			return
		}
		if len(group) == 1 {
			kind := SwingLowLevel
			if above {
				kind = SwingHighLevel
			}
			out = append(out, Level{Price: group[0].Price, Kind: kind, Above: above, Touches: 1, Index: group[0].Index})
			return
		}
		sum, idx := 0.0, 0
		for _, s := range group {
			sum += s.Price
			if s.Index > idx {
				idx = s.Index
			}
		}
		kind := EqualLowsLevel
		if above {
			kind = EqualHighsLevel
		}
		out = append(out, Level{Price: sum / float64(len(group)), Kind: kind, Above: above, Touches: len(group), Index: idx})
	}

	group := []Swing{sorted[0]}
	for _, s := range sorted[1:] {
		anchor := group[0].Price
		if anchor != 0 && math.Abs(s.Price-anchor)/math.Abs(anchor)*100 <= tolPct {
			group = append(group, s)
			continue
		}
		flush(group)
		group = []Swing{s}
	}
	flush(group)
	return out
}

// DetectSweeps looks for sweeps in the trailing ScanBars bars. A bar may
// sweep at most one level per side and each level is swept at most once.
func DetectSweeps(candles []market.Candle, span int, cfg SweepConfig) []Sweep {
	n := len(candles)
	if n < 2*span+3 {
		return nil
	}
	scan := cfg.ScanBars
	if scan <= 0 {
		scan = 1
	}
	first := n - scan
	if first < 2*span+1 {
		first = 2*span + 1
	}

	volumes := market.Volumes(candles)
	swept := make(map[levelKey]bool)
	var out []Sweep

	for j := first; j < n; j++ {
		levels := FindLevels(candles, j, span, cfg)
		bar := candles[j]

		for _, above := range []bool{false, true} {
			var best *Level
			var reclaimAt int
			for i := range levels {
				lv := levels[i]
				if lv.Above != above || swept[keyOf(lv)] {
					continue
				}
				at, ok := pierceAndReclaim(candles, j, lv, cfg.MinPiercePct)
				if !ok {
					continue
				}
				if best == nil || betterLevel(lv, *best) {
					best = &levels[i]
					reclaimAt = at
				}
			}
			if best == nil {
				continue
			}
			swept[keyOf(*best)] = true
			out = append(out, buildSweep(bar, j, reclaimAt, *best, volumes, cfg))
		}
	}
	return out
}

func pierceAndReclaim(candles []market.Candle, j int, lv Level, minPiercePct float64) (int, bool) {
	bar := candles[j]
	offset := lv.Price * minPiercePct / 100
	inside := func(c market.Candle) bool {
		if lv.Above {
			return c.Close < lv.Price
		}
		return c.Close > lv.Price
	}
	if lv.Above {
		if bar.High <= lv.Price+offset {
			return 0, false
		}
	} else if bar.Low >= lv.Price-offset {
		return 0, false
	}
	if inside(bar) {
		return j, true
	}
	if j+1 < len(candles) && inside(candles[j+1]) {
		return j + 1, true
	}
	return 0, false
}

func betterLevel(a, b Level) bool {
	if a.Kind.rank() != b.Kind.rank() {
		return a.Kind.rank() > b.Kind.rank()
	}
	if a.Touches != b.Touches {
		return a.Touches > b.Touches
	}
	// the further level held more stops behind it
	if a.Above {
		return a.Price > b.Price
	}
	return a.Price < b.Price
}

func buildSweep(bar market.Candle, j, reclaimAt int, lv Level, volumes []float64, cfg SweepConfig) Sweep {
	s := Sweep{
		Index:        j,
		Time:         bar.Timestamp,
		Level:        lv,
		ReclaimIndex: reclaimAt,
	}
	var wick float64
	if lv.Above {
		s.Direction = market.Bearish
		s.Extreme = bar.High
		wick = bar.UpperWick()
	} else {
		s.Direction = market.Bullish
		s.Extreme = bar.Low
		wick = bar.LowerWick()
	}
	if lv.Price != 0 {
		s.PiercePct = math.Abs(s.Extreme-lv.Price) / lv.Price * 100
	}

	body := math.Max(bar.Body(), bar.Range()*0.05)
	if body > 0 {
		s.RejectionRatio = wick / body
	}
	s.Quality = saturate(s.RejectionRatio, cfg.RejectionNorm)
	if indicators.RelativeVolume(volumes, j, cfg.VolumeLookback) >= cfg.VolumeSpike {
		s.VolumeSpike = true
		s.Quality = math.Min(1, s.Quality*1.25)
	}
	return s
}

type levelKey struct {
	above bool
	price int64
}

func keyOf(lv Level) levelKey {
	return levelKey{above: lv.Above, price: int64(math.Round(lv.Price * 1e6))}
}
