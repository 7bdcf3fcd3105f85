package scan

import (
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/orderflow"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/patterns"
	"github.com/csd2000/Trade-Flow-sub002/internal/exits"
	"github.com/csd2000/Trade-Flow-sub002/internal/gates"
	"github.com/csd2000/Trade-Flow-sub002/internal/narrative"
	"github.com/csd2000/Trade-Flow-sub002/internal/signal"
	"github.com/csd2000/Trade-Flow-sub002/internal/state"
)

// Config holds the orchestrator settings
type Config struct {
	MaxInFlight   int           `yaml:"max_in_flight" default:"4" validate:"min=1,max=64"`
	SymbolTimeout time.Duration `yaml:"symbol_timeout" default:"15s" validate:"gt=0"`
	Pacing        time.Duration `yaml:"pacing" default:"50ms" validate:"gte=0"`
	MinBars       int           `yaml:"min_bars" default:"30" validate:"min=30,max=50"`
	Profile       string        `yaml:"profile" default:"swing" validate:"oneof=scalping swing reversal"`
	CurrencyIndex string        `yaml:"currency_index" default:"DX-Y.NYB" validate:"required"`
	CrossEntries  bool          `yaml:"cross_entries" default:"true"`
	Scoring       ScoringConfig `yaml:"scoring"`
}

// ScoringConfig weights the blended score reported next to the technical
// confidence. Confirmation never reads it.
type ScoringConfig struct {
	TechWeight      float64 `yaml:"tech_weight" default:"0.7" validate:"gte=0,lte=1"`
	AIWeight        float64 `yaml:"ai_weight" default:"0.3" validate:"gte=0,lte=1"`
	SentimentWeight float64 `yaml:"sentiment_weight" default:"1" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		MaxInFlight:   4,
		SymbolTimeout: 15 * time.Second,
		Pacing:        50 * time.Millisecond,
		MinBars:       30,
		Profile:       indicators.ProfileSwing,
		CurrencyIndex: "DX-Y.NYB",
		CrossEntries:  true,
		Scoring:       ScoringConfig{TechWeight: 0.7, AIWeight: 0.3, SentimentWeight: 1},
	}
}

// Analysis is the full read of one symbol. Signal is set only when an
// entry qualifies.
type Analysis struct {
	Symbol           string                  `json:"symbol"`
	Timeframe        market.Timeframe        `json:"timeframe"`
	Class            market.AssetClass       `json:"class"`
	Provider         string                  `json:"provider,omitempty"`
	Quality          market.QualityFlags     `json:"quality"`
	Bars             int                     `json:"bars"`
	InsufficientData bool                    `json:"insufficient_data"`
	Reason           string                  `json:"reason,omitempty"`
	Snapshot         *indicators.Snapshot    `json:"snapshot,omitempty"`
	Patterns         patterns.Report         `json:"patterns"`
	OrderFlow        orderflow.Snapshot      `json:"order_flow"`
	Confluence       *gates.ConfluenceResult `json:"confluence,omitempty"`
	Sentiment        float64                 `json:"sentiment"`
	Narrative        narrative.Narrative     `json:"narrative"`
	FinalScore       float64                 `json:"final_score"`
	Signal           *signal.Signal          `json:"signal,omitempty"`
	Timestamp        time.Time               `json:"timestamp"`

	last market.Candle
}

// ExitEvent is a position closed during a scan
type ExitEvent struct {
	Result     *exits.ExitResult `json:"result"`
	Transition state.Transition  `json:"transition"`
}

// ThrottledAlert is a signal suppressed by an open alert episode
type ThrottledAlert struct {
	Symbol  string             `json:"symbol"`
	Type    string             `json:"type"`
	Episode state.AlertEpisode `json:"episode"`
}

// Totals counts per-symbol outcomes. Insufficient data and throttled
// duplicates are not errors.
type Totals struct {
	Attempted    int `json:"attempted"`
	Analyzed     int `json:"analyzed"`
	Insufficient int `json:"insufficient"`
	Signaled     int `json:"signaled"`
	Emitted      int `json:"emitted"`
	Throttled    int `json:"throttled"`
	Exits        int `json:"exits"`
	Errors       int `json:"errors"`
}

// ScanResult is the outcome of one batch
type ScanResult struct {
	ID        string           `json:"id"`
	Timeframe market.Timeframe `json:"timeframe"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Totals    Totals           `json:"totals"`
	Signals   []*signal.Signal `json:"signals"`
	Exits     []ExitEvent      `json:"exits"`
	Throttled []ThrottledAlert `json:"throttled,omitempty"`
	Errors    []SymbolError    `json:"errors"`
}
