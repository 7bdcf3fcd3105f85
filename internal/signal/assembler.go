package signal

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/patterns"
	"github.com/csd2000/Trade-Flow-sub002/internal/gates"
)

var (
	// ErrNoDirection means the confluence result has no tradable side
	ErrNoDirection = errors.New("no trade direction")
	// ErrInvalidPrice means the latest close cannot anchor a plan
	ErrInvalidPrice = errors.New("invalid entry price")
)

// Trigger names why a signal was raised
type Trigger string

const (
	TriggerConfirmed Trigger = "confirmed" // gate confirmation
	TriggerCross     Trigger = "cross"     // secondary momentum cross rule
)

// Config holds the trade-plan parameters
type Config struct {
	ATRStopMultiple float64   `yaml:"atr_stop_multiple" default:"1.5" validate:"gt=0"`
	MinStopATR      float64   `yaml:"min_stop_atr" default:"0.5" validate:"gte=0"`
	StopBufferATR   float64   `yaml:"stop_buffer_atr" default:"0.1" validate:"gte=0"`
	FallbackStopPct float64   `yaml:"fallback_stop_pct" default:"1.0" validate:"gt=0,lt=50"`
	TargetMultiples []float64 `yaml:"target_multiples" validate:"min=1,dive,gt=0"`
	PrimaryTarget   int       `yaml:"primary_target" default:"1" validate:"gte=0"` // index into TargetMultiples
	Structural      bool      `yaml:"structural_targets" default:"true"`
	ExpiryBars      int       `yaml:"expiry_bars" default:"3" validate:"min=1"`
}

func DefaultConfig() Config {
	return Config{
		ATRStopMultiple: 1.5,
		MinStopATR:      0.5,
		StopBufferATR:   0.1,
		FallbackStopPct: 1.0,
		TargetMultiples: []float64{1, 2, 3},
		PrimaryTarget:   1,
		Structural:      true,
		ExpiryBars:      3,
	}
}

// Target is one take-profit level
type Target struct {
	Label      string          `json:"label"`
	Price      decimal.Decimal `json:"price"`
	RMultiple  float64         `json:"r_multiple"`
	Structural bool            `json:"structural"`
}

// Signal is an emitted trade plan
type Signal struct {
	ID            string              `json:"id"`
	Symbol        string              `json:"symbol"`
	Timeframe     market.Timeframe    `json:"timeframe"`
	Class         market.AssetClass   `json:"class"`
	Type          string              `json:"type"`
	Trigger       Trigger             `json:"trigger"`
	Direction     market.Direction    `json:"direction"`
	Tier          gates.Tier          `json:"tier"`
	Entry         decimal.Decimal     `json:"entry"`
	Stop          decimal.Decimal     `json:"stop"`
	StopBasis     string              `json:"stop_basis"`
	Targets       []Target            `json:"targets"`
	Primary       int                 `json:"primary_target"`
	RiskReward    float64             `json:"risk_reward"`
	Confidence    float64             `json:"confidence"`
	WeightedScore float64             `json:"weighted_score"`
	FinalScore    float64             `json:"final_score"`
	Reasoning     []string            `json:"reasoning"`
	Quality       market.QualityFlags `json:"quality"`
	Provider      string              `json:"provider"`
	Timestamp     time.Time           `json:"timestamp"`
	ExpiresAt     time.Time           `json:"expires_at"`
}

// PrimaryTarget returns the target used for risk-reward
func (s *Signal) PrimaryTarget() Target {
	if len(s.Targets) == 0 {
		return Target{}
	}
	if s.Primary < 0 || s.Primary >= len(s.Targets) {
		return s.Targets[len(s.Targets)-1]
	}
	return s.Targets[s.Primary]
}

// TypeFor is the alert-episode key for a direction and trigger
func TypeFor(dir market.Direction, trigger Trigger) string {
	return fmt.Sprintf("%s_%s", dir, trigger)
}

// Input is everything the assembler reads
type Input struct {
	Symbol     string
	Timeframe  market.Timeframe
	Class      market.AssetClass
	Trigger    Trigger
	Direction  market.Direction // overrides the confluence direction when set
	Result     *gates.ConfluenceResult
	Snapshot   *indicators.Snapshot
	Patterns   patterns.Report
	Quality    market.QualityFlags
	Provider   string
	FinalScore float64
	Notes      []string // appended to the reasoning trail, e.g. sentiment
	Timestamp  time.Time
}

// Assembler turns a confluence result into a trade plan
type Assembler struct {
	config Config
	newID  func() string
}

func NewAssembler(config Config) *Assembler {
	def := DefaultConfig()
	if len(config.TargetMultiples) == 0 {
		config.TargetMultiples = def.TargetMultiples
	}
	config.TargetMultiples = append([]float64(nil), config.TargetMultiples...)
	sort.Float64s(config.TargetMultiples)
	if config.PrimaryTarget < 0 || config.PrimaryTarget >= len(config.TargetMultiples) {
		config.PrimaryTarget = len(config.TargetMultiples) / 2
	}
	if config.ATRStopMultiple <= 0 {
		config.ATRStopMultiple = def.ATRStopMultiple
	}
	if config.FallbackStopPct <= 0 {
		config.FallbackStopPct = def.FallbackStopPct
	}
	if config.ExpiryBars <= 0 {
		config.ExpiryBars = def.ExpiryBars
	}
	return &Assembler{config: config, newID: func() string { return uuid.NewString() }}
}

// Assemble builds the plan: entry at the latest close, stop beyond the
// nearest invalidation level or an ATR multiple, targets at R multiples
func (a *Assembler) Assemble(in Input) (*Signal, error) {
	snap := in.Snapshot
	if snap == nil || snap.Price <= 0 || math.IsNaN(snap.Price) || math.IsInf(snap.Price, 0) {
		return nil, fmt.Errorf("%s: %w", in.Symbol, ErrInvalidPrice)
	}
	dir := in.Direction
	if dir == "" && in.Result != nil {
		dir = in.Result.TradeDirection()
	}
	if dir != market.Bullish && dir != market.Bearish {
		return nil, fmt.Errorf("%s: %w", in.Symbol, ErrNoDirection)
	}
	sign := dir.Sign()
	price := snap.Price

	stopDist, basis := a.stopDistance(dir, price, snap, in.Patterns)
	stop := price - sign*stopDist

	entryDec := RoundPrice(price, price)
	stopDec := RoundPrice(stop, price)
	targets := a.targets(dir, price, stopDist, snap)

	risk := entryDec.Sub(stopDec).Abs()
	primary := targets[a.config.PrimaryTarget]
	rr := 0.0
	if risk.IsPositive() {
		rr, _ = primary.Price.Sub(entryDec).Abs().Div(risk).Round(2).Float64()
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = snap.Timestamp
	}
	sig := &Signal{
		ID:         a.newID(),
		Symbol:     in.Symbol,
		Timeframe:  in.Timeframe,
		Class:      in.Class,
		Type:       TypeFor(dir, in.Trigger),
		Trigger:    in.Trigger,
		Direction:  dir,
		Entry:      entryDec,
		Stop:       stopDec,
		StopBasis:  basis,
		Targets:    targets,
		Primary:    a.config.PrimaryTarget,
		RiskReward: rr,
		FinalScore: in.FinalScore,
		Quality:    in.Quality,
		Provider:   in.Provider,
		Timestamp:  ts,
		ExpiresAt:  ts.Add(time.Duration(a.config.ExpiryBars) * in.Timeframe.Interval()),
	}
	if in.Result != nil {
		sig.Tier = in.Result.Tier
		sig.Confidence = in.Result.Confidence
		sig.WeightedScore = in.Result.WeightedScore
	}
	sig.Reasoning = a.reasoning(in, sig, primary)
	return sig, nil
}

// stopDistance prefers the nearest invalidation level when it is tighter
// than the ATR stop and still at least MinStopATR away
func (a *Assembler) stopDistance(dir market.Direction, price float64, snap *indicators.Snapshot, report patterns.Report) (float64, string) {
	atr := snap.ATR.Value
	if !snap.ATR.IsValid || atr <= 0 || math.IsNaN(atr) {
		return price * a.config.FallbackStopPct / 100, fmt.Sprintf("%.2f%% of price (no ATR)", a.config.FallbackStopPct)
	}

	atrDist := a.config.ATRStopMultiple * atr
	level, from, ok := nearestInvalidation(dir, price, snap, report)
	if ok {
		d := math.Abs(price-level) + a.config.StopBufferATR*atr
		if d >= a.config.MinStopATR*atr && d < atrDist {
			return d, fmt.Sprintf("beyond %s %.6g", from, level)
		}
	}
	return atrDist, fmt.Sprintf("%.1fx ATR %.6g", a.config.ATRStopMultiple, atr)
}

// nearestInvalidation finds the closest structural level on the losing
// side of price: sweep extremes, unmitigated order blocks, open gaps and
// pivot supports (resistances for shorts)
func nearestInvalidation(dir market.Direction, price float64, snap *indicators.Snapshot, report patterns.Report) (float64, string, bool) {
	long := dir == market.Bullish
	best, label, found := 0.0, "", false
	consider := func(level float64, what string) {
		if level <= 0 || math.IsNaN(level) {
			return
		}
		if long && level >= price || !long && level <= price {
			return
		}
		if !found || math.Abs(price-level) < math.Abs(price-best) {
			best, label, found = level, what, true
		}
	}

	for _, ev := range report.Recent(patterns.KindLiquiditySweep, dir) {
		if ev.Sweep != nil {
			consider(ev.Sweep.Extreme, "sweep extreme")
		}
	}
	for _, ev := range report.Active(patterns.KindOrderBlock, dir) {
		if ob := ev.OrderBlock; ob != nil {
			if long {
				consider(ob.Low, "order block")
			} else {
				consider(ob.High, "order block")
			}
		}
	}
	for _, ev := range report.Active(patterns.KindFairValueGap, dir) {
		if g := ev.FairValueGap; g != nil {
			if long {
				consider(g.Bottom, "fair value gap")
			} else {
				consider(g.Top, "fair value gap")
			}
		}
	}
	levels := snap.Pivots.Supports()
	if !long {
		levels = snap.Pivots.Resistances()
	}
	for i, lv := range levels {
		name := "S"
		if !long {
			name = "R"
		}
		consider(lv, fmt.Sprintf("pivot %s%d", name, i+1))
	}
	return best, label, found
}

// targets places R-multiple targets; a pivot level at least 1R away
// replaces the first R target it does not exceed
func (a *Assembler) targets(dir market.Direction, price, risk float64, snap *indicators.Snapshot) []Target {
	sign := dir.Sign()
	out := make([]Target, len(a.config.TargetMultiples))
	for i, m := range a.config.TargetMultiples {
		out[i] = Target{
			Label:     fmt.Sprintf("T%d", i+1),
			Price:     RoundPrice(price+sign*m*risk, price),
			RMultiple: m,
		}
	}
	if !a.config.Structural || risk <= 0 {
		return out
	}

	levels := snap.Pivots.Resistances()
	if dir == market.Bearish {
		levels = snap.Pivots.Supports()
	}
	nearest := math.Inf(1)
	for _, lv := range levels {
		d := (lv - price) * sign
		if d >= risk && d < nearest {
			nearest = d
		}
	}
	if math.IsInf(nearest, 1) {
		return out
	}
	r := nearest / risk
	for i, m := range a.config.TargetMultiples {
		if r <= m {
			out[i].Price = RoundPrice(price+sign*nearest, price)
			out[i].RMultiple = math.Round(r*100) / 100
			out[i].Structural = true
			break
		}
	}
	return out
}

func (a *Assembler) reasoning(in Input, sig *Signal, primary Target) []string {
	var out []string
	if r := in.Result; r != nil {
		out = append(out, r.Summary())
		for _, c := range r.Checks {
			if c.Passed {
				out = append(out, fmt.Sprintf("gate %s passed: %s", c.Name, c.Description))
			}
		}
		for _, b := range r.Bonuses {
			out = append(out, fmt.Sprintf("bonus %s +%.1f", b.Name, b.Points))
		}
	}
	if in.Trigger == TriggerCross {
		out = append(out, fmt.Sprintf("%s momentum cross on the last bar", sig.Direction))
	}
	for _, ev := range in.Patterns.Recent("", sig.Direction) {
		out = append(out, fmt.Sprintf("pattern: %s (strength %.2f)", ev.Label, ev.Strength))
	}
	out = append(out,
		fmt.Sprintf("entry %s, stop %s (%s)", sig.Entry, sig.Stop, sig.StopBasis),
		fmt.Sprintf("primary target %s %s at %.2fR, risk-reward %.2f", primary.Label, primary.Price, primary.RMultiple, sig.RiskReward),
	)
	if q := in.Quality; q.Degraded() {
		out = append(out, fmt.Sprintf("data quality: delayed=%t stale=%t gaps=%t rate_limited=%t malformed=%t",
			q.IsDelayed, q.IsStale, q.HasGaps, q.RateLimitHit, q.Malformed))
	}
	return append(out, in.Notes...)
}
