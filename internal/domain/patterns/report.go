package patterns

import (
	"fmt"
	"sort"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// Kind tags a PatternEvent
type Kind string

const (
	KindDivergence     Kind = "divergence"
	KindLiquiditySweep Kind = "liquidity_sweep"
	KindFairValueGap   Kind = "fair_value_gap"
	KindOrderBlock     Kind = "order_block"
	KindBreakoutTrap   Kind = "breakout_trap"
)

// Event is the tagged union every detector reports through. Exactly one of
// the detail pointers is set, matching Kind.
type Event struct {
	Kind      Kind             `json:"kind"`
	Direction market.Direction `json:"direction"`
	Index     int              `json:"index"`
	Time      time.Time        `json:"time"`
	Price     float64          `json:"price"`
	Strength  float64          `json:"strength"` // 0..1
	Label     string           `json:"label"`

	Divergence   *Divergence   `json:"divergence,omitempty"`
	Sweep        *Sweep        `json:"sweep,omitempty"`
	FairValueGap *FairValueGap `json:"fair_value_gap,omitempty"`
	OrderBlock   *OrderBlock   `json:"order_block,omitempty"`
	Trap         *BreakoutTrap `json:"trap,omitempty"`
}

// Report is the combined detector output for one series
type Report struct {
	Bars       int     `json:"bars"`
	RecentBars int     `json:"recent_bars"`
	Events     []Event `json:"events"`
}

// DetectAll runs every detector over closed candles. osc is the oscillator
// used for divergence, normally RSI, and must align with candles. Filled
// gaps and mitigated order blocks are not reported.
func DetectAll(candles []market.Candle, osc []float64, cfg Config) Report {
	r := Report{Bars: len(candles), RecentBars: cfg.RecentBars}
	if len(candles) < 3 {
		return r
	}
	at := func(i int) time.Time { return candles[i].Timestamp }

	if len(osc) == len(candles) {
		for _, d := range DetectDivergences(market.Highs(candles), market.Lows(candles), osc, cfg.SwingSpan, cfg.Divergence) {
			d := d
			r.Events = append(r.Events, Event{
				Kind:       KindDivergence,
				Direction:  d.Type.Direction(),
				Index:      d.ToIndex,
				Time:       at(d.ToIndex),
				Price:      d.PriceTo,
				Strength:   d.Magnitude,
				Label:      fmt.Sprintf("%s %s divergence", d.Strength, d.Type),
				Divergence: &d,
			})
		}
	}

	for _, s := range DetectSweeps(candles, cfg.SwingSpan, cfg.Sweep) {
		s := s
		r.Events = append(r.Events, Event{
			Kind:      KindLiquiditySweep,
			Direction: s.Direction,
			Index:     s.Index,
			Time:      s.Time,
			Price:     s.Level.Price,
			Strength:  s.Quality,
			Label:     fmt.Sprintf("%s sweep of %s %.6g", s.Direction, s.Level.Kind, s.Level.Price),
			Sweep:     &s,
		})
	}

	for _, g := range DetectFairValueGaps(candles, cfg.FVG) {
		if g.Filled {
			continue
		}
		g := g
		r.Events = append(r.Events, Event{
			Kind:         KindFairValueGap,
			Direction:    g.Direction,
			Index:        g.Index,
			Time:         g.Time,
			Price:        (g.Top + g.Bottom) / 2,
			Strength:     saturate(g.SizePct, 1.0),
			Label:        fmt.Sprintf("%s FVG %.6g-%.6g", g.Direction, g.Bottom, g.Top),
			FairValueGap: &g,
		})
	}

	for _, ob := range DetectOrderBlocks(candles, cfg.OrderBlock) {
		if ob.Mitigated {
			continue
		}
		ob := ob
		strength := 0.5
		if ob.VolumeConfirmed {
			strength = 0.8
		}
		r.Events = append(r.Events, Event{
			Kind:       KindOrderBlock,
			Direction:  ob.Direction,
			Index:      ob.Index,
			Time:       ob.Time,
			Price:      (ob.High + ob.Low) / 2,
			Strength:   strength,
			Label:      fmt.Sprintf("%s order block %.6g-%.6g", ob.Direction, ob.Low, ob.High),
			OrderBlock: &ob,
		})
	}

	for _, tr := range DetectBreakoutTraps(candles, cfg.SwingSpan, cfg.Trap) {
		tr := tr
		r.Events = append(r.Events, Event{
			Kind:      KindBreakoutTrap,
			Direction: tr.Direction,
			Index:     tr.FailIndex,
			Time:      tr.Time,
			Price:     tr.Level,
			Strength:  tr.Probability,
			Label:     fmt.Sprintf("failed breakout at %.6g after %d bars", tr.Level, tr.BarsToFailure),
			Trap:      &tr,
		})
	}

	sort.SliceStable(r.Events, func(i, j int) bool { return r.Events[i].Index < r.Events[j].Index })
	return r
}

// Recent returns events of kind in direction dir formed within RecentBars
// of the last bar. An empty kind matches everything.
func (r Report) Recent(kind Kind, dir market.Direction) []Event {
	cutoff := r.Bars - r.RecentBars
	var out []Event
	for _, e := range r.Events {
		if e.Index < cutoff {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		if dir != "" && e.Direction != dir {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Active returns every event of kind in direction dir regardless of age.
// Used for zones that stay valid until revisited.
func (r Report) Active(kind Kind, dir market.Direction) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == kind && (dir == "" || e.Direction == dir) {
			out = append(out, e)
		}
	}
	return out
}

// Dominant sums the strength of recent events per direction and returns
// the side that wins, or neutral on a tie or when nothing is recent.
func (r Report) Dominant() (market.Direction, float64) {
	var bull, bear float64
	for _, e := range r.Recent("", "") {
		switch e.Direction {
		case market.Bullish:
			bull += e.Strength
		case market.Bearish:
			bear += e.Strength
		}
	}
	switch {
	case bull > bear:
		return market.Bullish, bull - bear
	case bear > bull:
		return market.Bearish, bear - bull
	default:
		return market.Neutral, 0
	}
}

// SweepIndices lists the bar index of every sweep, for the order-flow
// absorption check.
func (r Report) SweepIndices() []int {
	var out []int
	for _, e := range r.Events {
		if e.Kind == KindLiquiditySweep {
			out = append(out, e.Index)
		}
	}
	return out
}
