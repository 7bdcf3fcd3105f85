package gates

import (
	"fmt"
	"math"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// GuardMetrics evaluates data freshness, fatigue and proximity guards. A
// failed guard keeps a result from being confirmed but does not change
// its confidence.
type GuardMetrics struct {
	config *GuardConfig
}

// GuardConfig contains thresholds for freshness, fatigue and proximity guards
type GuardConfig struct {
	// Freshness guard: the producing provider's series must not be stale
	RequireFresh bool `yaml:"require_fresh"`

	// Fatigue guard: prevent entries after an extended run
	FatigueLookback int     `yaml:"fatigue_lookback"`   // bars, 12
	FatigueMovePct  float64 `yaml:"fatigue_move_pct"`   // >8% over the lookback
	FatigueRSI      float64 `yaml:"fatigue_rsi_offset"` // RSI beyond overbought-offset counts as stretched

	// Proximity guard: price must be close to the fast EMA
	ProximityATRMultiple float64 `yaml:"proximity_atr_multiple"` // 2.0x ATR maximum
}

// DefaultGuardConfig returns production guard configuration
func DefaultGuardConfig() *GuardConfig {
	return &GuardConfig{
		RequireFresh:         true,
		FatigueLookback:      12,
		FatigueMovePct:       8.0,
		FatigueRSI:           5.0,
		ProximityATRMultiple: 2.0,
	}
}

// NewGuardMetrics creates a guard evaluator
func NewGuardMetrics(config *GuardConfig) *GuardMetrics {
	if config == nil {
		config = DefaultGuardConfig()
	}
	return &GuardMetrics{config: config}
}

// GuardResult contains the evaluation results for all guards
type GuardResult struct {
	AllPassed      bool                  `json:"all_passed"`
	GuardChecks    map[string]*GateCheck `json:"guard_checks"`
	FailureReasons []string              `json:"failure_reasons"`
	PassedGuards   []string              `json:"passed_guards"`
}

// Evaluate runs every guard for a trade in dir
func (gm *GuardMetrics) Evaluate(snap *indicators.Snapshot, quality market.QualityFlags, dir market.Direction, th Thresholds) *GuardResult {
	result := &GuardResult{
		GuardChecks:    make(map[string]*GateCheck),
		FailureReasons: []string{},
		PassedGuards:   []string{},
	}

	for _, check := range []*GateCheck{
		gm.evaluateFreshnessGuard(quality),
		gm.evaluateFatigueGuard(snap, dir, th),
		gm.evaluateProximityGuard(snap),
	} {
		result.GuardChecks[string(check.Name)] = check
		if check.Passed {
			result.PassedGuards = append(result.PassedGuards, string(check.Name))
		} else {
			result.FailureReasons = append(result.FailureReasons, fmt.Sprintf("guard %s: %s", check.Name, check.Description))
		}
	}

	result.AllPassed = len(result.FailureReasons) == 0
	return result
}

func (gm *GuardMetrics) evaluateFreshnessGuard(quality market.QualityFlags) *GateCheck {
	passed := !gm.config.RequireFresh || !quality.IsStale
	return &GateCheck{
		Name:        "freshness",
		Passed:      passed,
		Value:       quality.IsStale,
		Threshold:   false,
		Description: fmt.Sprintf("stale=%t delayed=%t gaps=%t", quality.IsStale, quality.IsDelayed, quality.HasGaps),
	}
}

// evaluateFatigueGuard flags an entry in dir after a move larger than
// FatigueMovePct with RSI already stretched past its band
func (gm *GuardMetrics) evaluateFatigueGuard(snap *indicators.Snapshot, dir market.Direction, th Thresholds) *GateCheck {
	closes := snap.Series.Close
	move := 0.0
	if lb := gm.config.FatigueLookback; lb > 0 && len(closes) > lb && closes[len(closes)-1-lb] > 0 {
		from := closes[len(closes)-1-lb]
		move = (closes[len(closes)-1] - from) / from * 100
	}

	overextended := false
	switch dir {
	case market.Bullish:
		overextended = move > gm.config.FatigueMovePct && snap.RSI.Value > th.RSIOverbought-gm.config.FatigueRSI
	case market.Bearish:
		overextended = -move > gm.config.FatigueMovePct && snap.RSI.Value < th.RSIOversold+gm.config.FatigueRSI
	}

	return &GateCheck{
		Name:        "fatigue",
		Passed:      !overextended,
		Value:       move,
		Threshold:   gm.config.FatigueMovePct,
		Description: fmt.Sprintf("%d-bar move %.1f%% (thresh %.1f%%), RSI %.1f", gm.config.FatigueLookback, move, gm.config.FatigueMovePct, snap.RSI.Value),
	}
}

// evaluateProximityGuard keeps entries within a few ATR of the fast EMA
func (gm *GuardMetrics) evaluateProximityGuard(snap *indicators.Snapshot) *GateCheck {
	distance := math.Abs(snap.Price - snap.EMAFast)
	maxDistance := snap.ATR.Value * gm.config.ProximityATRMultiple
	passed := !snap.ATR.IsValid || distance <= maxDistance

	return &GateCheck{
		Name:      "proximity",
		Passed:    passed,
		Value:     distance,
		Threshold: maxDistance,
		Description: fmt.Sprintf("distance from fast EMA %.6g ≤ %.6g (%.1fx ATR)",
			distance, maxDistance, gm.config.ProximityATRMultiple),
	}
}
