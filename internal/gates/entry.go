package gates

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/orderflow"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/patterns"
)

// Tier grades a confluence result
type Tier string

const (
	TierConfirmed       Tier = "confirmed"
	TierHighProbability Tier = "high_probability"
	TierWatch           Tier = "watch"
	TierNone            Tier = "none"
)

// Actionable is true only for confirmed results
func (t Tier) Actionable() bool { return t == TierConfirmed }

// MacroContext is the reference-instrument read used by the forex macro
// gate, fetched once per scan
type MacroContext struct {
	Symbol    string           `json:"symbol"`
	Price     float64          `json:"price"`
	EMATrend  float64          `json:"ema_trend"`
	Direction market.Direction `json:"direction"`
}

// NewMacroContext reads the trend of a reference instrument from its
// snapshot. Direction requires price and the fast EMA on the same side of
// the trend EMA.
func NewMacroContext(symbol string, snap *indicators.Snapshot) *MacroContext {
	if snap == nil || snap.Bars == 0 {
		return nil
	}
	mc := &MacroContext{Symbol: symbol, Price: snap.Price, EMATrend: snap.EMATrend, Direction: market.Neutral}
	switch {
	case snap.Price > snap.EMATrend && snap.EMAFast > snap.EMASlow:
		mc.Direction = market.Bullish
	case snap.Price < snap.EMATrend && snap.EMAFast < snap.EMASlow:
		mc.Direction = market.Bearish
	}
	return mc
}

// Inputs is everything one evaluation reads
type Inputs struct {
	Symbol    string
	Class     market.AssetClass
	Timestamp time.Time
	Snapshot  *indicators.Snapshot
	Patterns  patterns.Report
	OrderFlow orderflow.Snapshot
	Macro     *MacroContext
	Profiles  ProfileSet // resolved once per scan; nil selects from the router
}

// GateCheck represents the result of a single gate evaluation
type GateCheck struct {
	Name        GateID      `json:"name"`
	Passed      bool        `json:"passed"`
	Weight      float64     `json:"weight"`
	Value       interface{} `json:"value"`       // Actual measured value
	Threshold   interface{} `json:"threshold"`   // Required threshold
	Description string      `json:"description"` // Human-readable description
}

// Bonus is an aligned pattern combination that adds score
type Bonus struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// ConfluenceResult is the ordered gate outcome for one symbol
type ConfluenceResult struct {
	Symbol         string            `json:"symbol"`
	Class          market.AssetClass `json:"class"`
	Timestamp      time.Time         `json:"timestamp"`
	Candidate      market.Direction  `json:"candidate"` // direction the gates were evaluated for
	Direction      market.Direction  `json:"direction"` // resolved direction, neutral unless patterns and oscillator agree
	Continuation   bool              `json:"continuation"`
	Checks         []*GateCheck      `json:"checks"`
	Passed         int               `json:"passed"`
	Total          int               `json:"total"`
	Bonuses        []Bonus           `json:"bonuses,omitempty"`
	Score          float64           `json:"score"`
	Confidence     float64           `json:"confidence"`     // 0..100
	WeightedScore  float64           `json:"weighted_score"` // 0..100
	Tier           Tier              `json:"tier"`
	Guards         *GuardResult      `json:"guards,omitempty"`
	PassedGates    []GateID          `json:"passed_gates"`
	FailureReasons []string          `json:"failure_reasons"`
}

// TradeDirection is the side a signal would take: the resolved direction,
// or the candidate when the result is a continuation
func (r *ConfluenceResult) TradeDirection() market.Direction {
	if r.Direction != market.Neutral {
		return r.Direction
	}
	if r.Continuation {
		return r.Candidate
	}
	return market.Neutral
}

// Check returns the outcome for one gate, or nil
func (r *ConfluenceResult) Check(id GateID) *GateCheck {
	for _, c := range r.Checks {
		if c.Name == id {
			return c
		}
	}
	return nil
}

// Summary is a one-line description for logs and reasoning trails
func (r *ConfluenceResult) Summary() string {
	return fmt.Sprintf("%s %s: %d/%d gates, confidence %.1f%% (%s)",
		r.Symbol, r.TradeDirection(), r.Passed, r.Total, r.Confidence, r.Tier)
}

// Confidence converts gates passed plus bonus into a percentage of total.
// The bonus never lifts the score past total.
func Confidence(passed int, bonus float64, total int) float64 {
	if total <= 0 {
		return 0
	}
	score := math.Min(float64(passed)+math.Max(bonus, 0), float64(total))
	if score < 0 {
		score = 0
	}
	return score / float64(total) * 100
}

// Evaluator scores inputs against the asset-class gate table
type Evaluator struct {
	router *GateRouter
	guards *GuardMetrics
}

// NewEvaluator creates an evaluator over router. A nil router uses the
// built-in table; a nil guard config uses DefaultGuardConfig.
func NewEvaluator(router *GateRouter, guards *GuardConfig) *Evaluator {
	if router == nil {
		router = NewGateRouterWithDefaults()
	}
	return &Evaluator{router: router, guards: NewGuardMetrics(guards)}
}

func (e *Evaluator) Router() *GateRouter { return e.router }

// Evaluate runs every gate in the profile for in.Class, in table order
func (e *Evaluator) Evaluate(in Inputs, quality market.QualityFlags) *ConfluenceResult {
	profile := in.Profiles.For(in.Class, e.router)
	th := e.router.Thresholds()
	snap := in.Snapshot
	if snap == nil {
		snap = &indicators.Snapshot{}
	}

	candidate, _ := in.Patterns.Dominant()
	if candidate == market.Neutral {
		candidate = snap.MomentumBias()
	}

	result := &ConfluenceResult{
		Symbol:         in.Symbol,
		Class:          in.Class,
		Timestamp:      in.Timestamp,
		Candidate:      candidate,
		Direction:      market.Neutral,
		Total:          len(profile.Gates),
		PassedGates:    []GateID{},
		FailureReasons: []string{},
	}

	var weightSum, weightPassed float64
	for _, id := range profile.Gates {
		check := e.evaluateGate(id, candidate, in, snap, th)
		check.Weight = profile.Weight(id)
		result.Checks = append(result.Checks, check)

		weightSum += check.Weight
		if check.Passed {
			weightPassed += check.Weight
			result.Passed++
			result.PassedGates = append(result.PassedGates, id)
		} else {
			result.FailureReasons = append(result.FailureReasons, fmt.Sprintf("%s: %s", id, check.Description))
		}
	}

	bonus := 0.0
	if candidate != market.Neutral {
		result.Bonuses = alignedBonuses(candidate, in.Patterns, snap, th)
		for _, b := range result.Bonuses {
			bonus += b.Points
		}
		bonus = math.Min(bonus, th.MaxBonus)
	}

	result.Score = math.Min(float64(result.Passed)+bonus, float64(result.Total))
	result.Confidence = Confidence(result.Passed, bonus, result.Total)
	if weightSum > 0 {
		result.WeightedScore = weightPassed / weightSum * 100
	}
	result.Tier = tierFor(result.Confidence, th)

	dominant, _ := in.Patterns.Dominant()
	if dominant != market.Neutral && oscillatorAgrees(dominant, snap, th) {
		result.Direction = dominant
	} else {
		result.Continuation = candidate != market.Neutral
	}
	if result.TradeDirection() == market.Neutral && result.Tier == TierConfirmed {
		result.Tier = TierHighProbability
	}

	result.Guards = e.guards.Evaluate(snap, quality, result.TradeDirection(), th)
	if result.Tier == TierConfirmed && !result.Guards.AllPassed {
		result.Tier = TierHighProbability
		result.FailureReasons = append(result.FailureReasons, result.Guards.FailureReasons...)
	}
	return result
}

func tierFor(confidence float64, th Thresholds) Tier {
	switch {
	case confidence >= th.ConfirmedPct:
		return TierConfirmed
	case confidence >= th.HighProbabilityPct:
		return TierHighProbability
	case confidence >= th.WatchPct:
		return TierWatch
	default:
		return TierNone
	}
}

func (e *Evaluator) evaluateGate(id GateID, dir market.Direction, in Inputs, snap *indicators.Snapshot, th Thresholds) *GateCheck {
	switch id {
	case GateTrendFilter:
		return trendFilter(dir, snap)
	case GateMomentumCross:
		return momentumCross(dir, snap)
	case GateTrendStrength:
		return &GateCheck{
			Name:        id,
			Passed:      snap.ADX.ADX >= th.ADXMin,
			Value:       snap.ADX.ADX,
			Threshold:   th.ADXMin,
			Description: fmt.Sprintf("ADX %.1f ≥ %.1f", snap.ADX.ADX, th.ADXMin),
		}
	case GateVolumeParticipation:
		return &GateCheck{
			Name:        id,
			Passed:      snap.RelativeVolume >= th.RVOLMin,
			Value:       snap.RelativeVolume,
			Threshold:   th.RVOLMin,
			Description: fmt.Sprintf("relative volume %.2fx ≥ %.2fx", snap.RelativeVolume, th.RVOLMin),
		}
	case GateOscillatorZone:
		return &GateCheck{
			Name:        id,
			Passed:      oscillatorAgrees(dir, snap, th),
			Value:       snap.RSI.Value,
			Threshold:   oscillatorBand(dir, th),
			Description: fmt.Sprintf("RSI %.1f stoch %.1f in %s zone", snap.RSI.Value, snap.Stoch.K, dir),
		}
	case GateCurrencyIndexTrend:
		return currencyIndexTrend(dir, in.Symbol, in.Macro)
	case GateOrderFlowSentiment:
		return orderFlowSentiment(dir, in.OrderFlow, th)
	case GateADXTrendConfirm:
		return adxTrendConfirm(dir, snap, th)
	case GateMarketBreadth:
		return marketBreadth(dir, snap)
	case GateLiquiditySweep:
		return liquiditySweep(dir, in.Patterns, th)
	case GateFairValueGap:
		return presence(id, dir, in.Patterns.Active(patterns.KindFairValueGap, dir), "unfilled fair value gap")
	case GateOrderBlock:
		var confirmed []patterns.Event
		for _, ev := range in.Patterns.Active(patterns.KindOrderBlock, dir) {
			if ev.OrderBlock != nil && ev.OrderBlock.VolumeConfirmed {
				confirmed = append(confirmed, ev)
			}
		}
		return presence(id, dir, confirmed, "volume-confirmed order block")
	default:
		return &GateCheck{Name: id, Description: "unknown gate"}
	}
}

func trendFilter(dir market.Direction, snap *indicators.Snapshot) *GateCheck {
	passed := false
	switch dir {
	case market.Bullish:
		passed = snap.Price > snap.EMATrend
	case market.Bearish:
		passed = snap.Price < snap.EMATrend
	}
	return &GateCheck{
		Name:        GateTrendFilter,
		Passed:      passed && snap.EMATrend > 0,
		Value:       snap.Price,
		Threshold:   snap.EMATrend,
		Description: fmt.Sprintf("price %.6g vs trend EMA %.6g for %s", snap.Price, snap.EMATrend, dir),
	}
}

// momentumCross passes when the EMA pair and histogram agree with dir, or
// the MACD line crossed its signal in dir on the last bar
func momentumCross(dir market.Direction, snap *indicators.Snapshot) *GateCheck {
	var aligned, crossed bool
	switch dir {
	case market.Bullish:
		aligned = snap.EMAFast > snap.EMASlow && snap.MACD.Histogram > 0
		crossed = snap.MACD.BullishCross() || snap.EMACrossUp()
	case market.Bearish:
		aligned = snap.EMAFast < snap.EMASlow && snap.MACD.Histogram < 0
		crossed = snap.MACD.BearishCross() || snap.EMACrossDown()
	}
	return &GateCheck{
		Name:        GateMomentumCross,
		Passed:      aligned || crossed,
		Value:       snap.MACD.Histogram,
		Threshold:   0.0,
		Description: fmt.Sprintf("EMA %.6g/%.6g histogram %.4g for %s", snap.EMAFast, snap.EMASlow, snap.MACD.Histogram, dir),
	}
}

// oscillatorAgrees is true when RSI and stochastic leave room to run in
// dir: a bullish read sits between the bull floor and overbought, bearish
// mirrors it
func oscillatorAgrees(dir market.Direction, snap *indicators.Snapshot, th Thresholds) bool {
	rsi, k := snap.RSI.Value, snap.Stoch.K
	switch dir {
	case market.Bullish:
		return rsi >= th.RSIBullFloor && rsi < th.RSIOverbought && k < th.StochOverbought
	case market.Bearish:
		return rsi <= th.RSIBearCeiling && rsi > th.RSIOversold && k > th.StochOversold
	default:
		return false
	}
}

func oscillatorBand(dir market.Direction, th Thresholds) string {
	if dir == market.Bearish {
		return fmt.Sprintf("%.0f<RSI≤%.0f", th.RSIOversold, th.RSIBearCeiling)
	}
	return fmt.Sprintf("%.0f≤RSI<%.0f", th.RSIBullFloor, th.RSIOverbought)
}

// currencyIndexTrend wants the dollar index moving against the quote side:
// a bullish EURUSD needs a bearish index, a bullish USDJPY a bullish one
func currencyIndexTrend(dir market.Direction, symbol string, macro *MacroContext) *GateCheck {
	check := &GateCheck{Name: GateCurrencyIndexTrend, Threshold: "index trend aligned"}
	if macro == nil {
		check.Description = "currency index unavailable"
		return check
	}
	want := dir.Opposite()
	if strings.HasPrefix(strings.ToUpper(symbol), "USD") {
		want = dir
	}
	check.Value = macro.Direction
	check.Passed = dir != market.Neutral && macro.Direction == want
	check.Description = fmt.Sprintf("%s %s, want %s", macro.Symbol, macro.Direction, want)
	return check
}

// orderFlowSentiment reads the CVD evidence directly; pressure is only
// carried in the description
func orderFlowSentiment(dir market.Direction, of orderflow.Snapshot, th Thresholds) *GateCheck {
	passed := false
	switch dir {
	case market.Bullish:
		passed = !of.Distribution && of.Trend != orderflow.Falling &&
			(of.CVDChangePct >= th.OrderFlowCVDPct || of.Accumulation || of.DeltaFlip == market.Bullish)
	case market.Bearish:
		passed = !of.Accumulation && of.Trend != orderflow.Rising &&
			(of.CVDChangePct <= -th.OrderFlowCVDPct || of.Distribution || of.DeltaFlip == market.Bearish)
	}
	return &GateCheck{
		Name:        GateOrderFlowSentiment,
		Passed:      passed,
		Value:       of.CVDChangePct,
		Threshold:   th.OrderFlowCVDPct,
		Description: fmt.Sprintf("CVD %+.1f%% (%s, flip %s), pressure %.1f %s", of.CVDChangePct, of.Trend, of.DeltaFlip, of.Pressure, of.Label),
	}
}

func adxTrendConfirm(dir market.Direction, snap *indicators.Snapshot, th Thresholds) *GateCheck {
	adx := snap.ADX
	passed := false
	switch dir {
	case market.Bullish:
		passed = adx.PlusDI > adx.MinusDI
	case market.Bearish:
		passed = adx.MinusDI > adx.PlusDI
	}
	return &GateCheck{
		Name:        GateADXTrendConfirm,
		Passed:      passed && adx.ADX >= th.ADXMin,
		Value:       adx.PlusDI - adx.MinusDI,
		Threshold:   th.ADXMin,
		Description: fmt.Sprintf("ADX %.1f +DI %.1f -DI %.1f for %s", adx.ADX, adx.PlusDI, adx.MinusDI, dir),
	}
}

// marketBreadth proxies breadth with price against the 50-bar SMA
func marketBreadth(dir market.Direction, snap *indicators.Snapshot) *GateCheck {
	passed := false
	switch dir {
	case market.Bullish:
		passed = snap.Price > snap.SMABreadth
	case market.Bearish:
		passed = snap.Price < snap.SMABreadth
	}
	return &GateCheck{
		Name:        GateMarketBreadth,
		Passed:      passed && snap.SMABreadth > 0,
		Value:       snap.Price,
		Threshold:   snap.SMABreadth,
		Description: fmt.Sprintf("price %.6g vs SMA %.6g", snap.Price, snap.SMABreadth),
	}
}

func liquiditySweep(dir market.Direction, report patterns.Report, th Thresholds) *GateCheck {
	best := 0.0
	for _, ev := range report.Recent(patterns.KindLiquiditySweep, dir) {
		if ev.Sweep != nil && ev.Sweep.RejectionRatio > best {
			best = ev.Sweep.RejectionRatio
		}
	}
	return &GateCheck{
		Name:        GateLiquiditySweep,
		Passed:      dir != market.Neutral && best >= th.SweepMinRejection,
		Value:       best,
		Threshold:   th.SweepMinRejection,
		Description: fmt.Sprintf("recent %s sweep rejection %.2f ≥ %.2f", dir, best, th.SweepMinRejection),
	}
}

func presence(id GateID, dir market.Direction, events []patterns.Event, what string) *GateCheck {
	return &GateCheck{
		Name:        id,
		Passed:      dir != market.Neutral && len(events) > 0,
		Value:       len(events),
		Threshold:   1,
		Description: fmt.Sprintf("%d %s %s", len(events), dir, what),
	}
}

// alignedBonuses awards points for pattern combinations that agree with dir
func alignedBonuses(dir market.Direction, report patterns.Report, snap *indicators.Snapshot, th Thresholds) []Bonus {
	var out []Bonus
	macdCross := snap.MACD.BullishCross() || snap.MACD.ZeroCrossUp()
	if dir == market.Bearish {
		macdCross = snap.MACD.BearishCross() || snap.MACD.ZeroCrossDown()
	}
	if macdCross && len(report.Recent(patterns.KindLiquiditySweep, dir)) > 0 {
		out = append(out, Bonus{Name: "sweep_with_macd_cross", Points: th.BonusPoints})
	}
	for _, ev := range report.Recent(patterns.KindDivergence, dir) {
		if ev.Divergence != nil && ev.Divergence.Strength != patterns.Weak {
			out = append(out, Bonus{Name: "divergence_" + string(ev.Divergence.Strength), Points: th.BonusPoints})
			break
		}
	}
	if len(report.Recent(patterns.KindBreakoutTrap, dir)) > 0 {
		out = append(out, Bonus{Name: "failed_breakout", Points: th.BonusPoints / 2})
	}
	return out
}
