package exits

import (
	"context"
	"fmt"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// ExitReason represents the reason for exit with precedence
type ExitReason int

const (
	NoExit         ExitReason = iota
	OpposingCross             // Highest precedence: fast/slow EMA or MACD crossed against the position
	HistogramFade             // MACD histogram shrinking on the position's side
	FastEMABreach             // Close through the fast EMA
	OppositeCandle            // Opposite-coloured bar (lowest precedence)
)

func (er ExitReason) String() string {
	switch er {
	case NoExit:
		return "no_exit"
	case OpposingCross:
		return "opposing_cross"
	case HistogramFade:
		return "histogram_fade"
	case FastEMABreach:
		return "fast_ema_breach"
	case OppositeCandle:
		return "opposite_candle"
	default:
		return "unknown"
	}
}

// ExitResult contains the exit evaluation outcome
type ExitResult struct {
	Symbol        string     `json:"symbol"`
	Timestamp     time.Time  `json:"timestamp"`
	ShouldExit    bool       `json:"should_exit"`
	ExitReason    ExitReason `json:"exit_reason"`
	ReasonString  string     `json:"reason_string"`
	TriggeredBy   string     `json:"triggered_by"` // Specific trigger description
	CurrentPrice  float64    `json:"current_price"`
	EntryPrice    float64    `json:"entry_price"`
	UnrealizedPnL float64    `json:"unrealized_pnl"` // % return on the position's side
	HoursHeld     float64    `json:"hours_held"`
}

// ExitInputs contains all data required for exit evaluation
type ExitInputs struct {
	Symbol      string           `json:"symbol"`
	Direction   market.Direction `json:"direction"` // side of the open position
	EntryPrice  float64          `json:"entry_price"`
	EntryTime   time.Time        `json:"entry_time"`
	CurrentTime time.Time        `json:"current_time"`

	Candle   market.Candle        `json:"candle"` // latest closed bar
	Snapshot *indicators.Snapshot `json:"-"`
}

// ExitEvaluator evaluates exit conditions with proper precedence
type ExitEvaluator struct {
	config *ExitConfig
}

// ExitConfig contains exit rule configuration
type ExitConfig struct {
	EnableOpposingCross bool `yaml:"enable_opposing_cross"`

	EnableHistogramFade bool `yaml:"enable_histogram_fade"`
	FadeBars            int  `yaml:"fade_bars"` // consecutive shrinking bars, 2 default

	EnableFastEMABreach bool `yaml:"enable_fast_ema_breach"`

	EnableOppositeCandle bool    `yaml:"enable_opposite_candle"`
	OppositeMinBody      float64 `yaml:"opposite_min_body"` // body/range; 0 counts any opposite bar
}

// DefaultExitConfig returns production exit configuration
func DefaultExitConfig() *ExitConfig {
	return &ExitConfig{
		EnableOpposingCross:  true,
		EnableHistogramFade:  true,
		FadeBars:             2,
		EnableFastEMABreach:  true,
		EnableOppositeCandle: true,
		OppositeMinBody:      0,
	}
}

// NewExitEvaluator creates a new exit evaluator
func NewExitEvaluator(config *ExitConfig) *ExitEvaluator {
	if config == nil {
		config = DefaultExitConfig()
	}
	if config.FadeBars < 1 {
		config.FadeBars = 1
	}
	return &ExitEvaluator{config: config}
}

// EvaluateExit checks the exit rules in precedence order; the first one
// that holds decides. Exits are not gated by the confluence score.
func (ee *ExitEvaluator) EvaluateExit(ctx context.Context, inputs ExitInputs) (*ExitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if inputs.Direction != market.Bullish && inputs.Direction != market.Bearish {
		return nil, fmt.Errorf("exit evaluation for %s: position direction %q", inputs.Symbol, inputs.Direction)
	}
	snap := inputs.Snapshot
	if snap == nil {
		return nil, fmt.Errorf("exit evaluation for %s: missing indicator snapshot", inputs.Symbol)
	}

	result := &ExitResult{
		Symbol:       inputs.Symbol,
		Timestamp:    inputs.CurrentTime,
		ExitReason:   NoExit,
		ReasonString: NoExit.String(),
		CurrentPrice: inputs.Candle.Close,
		EntryPrice:   inputs.EntryPrice,
		HoursHeld:    inputs.CurrentTime.Sub(inputs.EntryTime).Hours(),
	}
	if inputs.EntryPrice > 0 {
		result.UnrealizedPnL = (inputs.Candle.Close/inputs.EntryPrice - 1.0) * 100 * inputs.Direction.Sign()
	}

	long := inputs.Direction == market.Bullish
	rules := []struct {
		enabled bool
		reason  ExitReason
		check   func() (bool, string)
	}{
		{ee.config.EnableOpposingCross, OpposingCross, func() (bool, string) { return ee.evaluateOpposingCross(snap, long) }},
		{ee.config.EnableHistogramFade, HistogramFade, func() (bool, string) { return ee.evaluateHistogramFade(snap, long) }},
		{ee.config.EnableFastEMABreach, FastEMABreach, func() (bool, string) { return ee.evaluateFastEMABreach(inputs.Candle, snap, long) }},
		{ee.config.EnableOppositeCandle, OppositeCandle, func() (bool, string) { return ee.evaluateOppositeCandle(inputs.Candle, long) }},
	}
	for _, rule := range rules {
		if !rule.enabled {
			continue
		}
		if hit, why := rule.check(); hit {
			result.ShouldExit = true
			result.ExitReason = rule.reason
			result.ReasonString = rule.reason.String()
			result.TriggeredBy = why
			break
		}
	}
	return result, nil
}

func (ee *ExitEvaluator) evaluateOpposingCross(snap *indicators.Snapshot, long bool) (bool, string) {
	if long {
		switch {
		case snap.EMACrossDown():
			return true, fmt.Sprintf("EMA %.6g crossed below %.6g", snap.EMAFast, snap.EMASlow)
		case snap.MACD.BearishCross():
			return true, fmt.Sprintf("MACD %.4g crossed below signal %.4g", snap.MACD.MACD, snap.MACD.Signal)
		}
		return false, ""
	}
	switch {
	case snap.EMACrossUp():
		return true, fmt.Sprintf("EMA %.6g crossed above %.6g", snap.EMAFast, snap.EMASlow)
	case snap.MACD.BullishCross():
		return true, fmt.Sprintf("MACD %.4g crossed above signal %.4g", snap.MACD.MACD, snap.MACD.Signal)
	}
	return false, ""
}

// evaluateHistogramFade fires when the histogram is still on the
// position's side but has shrunk for FadeBars bars in a row
func (ee *ExitEvaluator) evaluateHistogramFade(snap *indicators.Snapshot, long bool) (bool, string) {
	h := snap.Series.Histogram
	n := ee.config.FadeBars
	if len(h) < n+1 {
		return false, ""
	}
	tail := h[len(h)-n-1:]
	sign := 1.0
	if !long {
		sign = -1.0
	}
	if tail[n]*sign <= 0 {
		return false, ""
	}
	for i := 1; i <= n; i++ {
		if tail[i]*sign >= tail[i-1]*sign {
			return false, ""
		}
	}
	return true, fmt.Sprintf("histogram faded %d bars to %.4g", n, tail[n])
}

func (ee *ExitEvaluator) evaluateFastEMABreach(c market.Candle, snap *indicators.Snapshot, long bool) (bool, string) {
	if snap.EMAFast <= 0 {
		return false, ""
	}
	if long && c.Close < snap.EMAFast {
		return true, fmt.Sprintf("close %.6g below fast EMA %.6g", c.Close, snap.EMAFast)
	}
	if !long && c.Close > snap.EMAFast {
		return true, fmt.Sprintf("close %.6g above fast EMA %.6g", c.Close, snap.EMAFast)
	}
	return false, ""
}

func (ee *ExitEvaluator) evaluateOppositeCandle(c market.Candle, long bool) (bool, string) {
	opposite := (long && c.IsBearish()) || (!long && c.IsBullish())
	if !opposite {
		return false, ""
	}
	if rng := c.Range(); ee.config.OppositeMinBody > 0 && rng > 0 && c.Body()/rng < ee.config.OppositeMinBody {
		return false, ""
	}
	colour := "bearish"
	if !long {
		colour = "bullish"
	}
	return true, fmt.Sprintf("%s bar %.6g→%.6g", colour, c.Open, c.Close)
}

// GetExitSummary returns a concise exit evaluation summary
func (er *ExitResult) GetExitSummary() string {
	if er.ShouldExit {
		return fmt.Sprintf("EXIT %s: %s (%.1f%% PnL after %.1fh)",
			er.Symbol, er.ExitReason.String(), er.UnrealizedPnL, er.HoursHeld)
	}
	return fmt.Sprintf("HOLD %s: %.1f%% PnL after %.1fh", er.Symbol, er.UnrealizedPnL, er.HoursHeld)
}
