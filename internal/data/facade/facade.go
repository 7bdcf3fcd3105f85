package facade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/cache"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/validate"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

var (
	// ErrInsufficientData is the parent of every "not enough candles" outcome.
	// It is a soft failure: callers report it rather than counting an error.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDataUnavailable means every provider came back empty or declined the symbol
	ErrDataUnavailable = fmt.Errorf("%w: no provider returned data", ErrInsufficientData)
	// ErrInsufficientHistory means data arrived but fewer than MinBars closed bars
	ErrInsufficientHistory = fmt.Errorf("%w: history shorter than minimum", ErrInsufficientData)

	// ErrProvidersFailed is a hard failure: at least one provider errored and none produced data
	ErrProvidersFailed = errors.New("all providers failed")
	// ErrProviderTimeout wraps a fetch cut short by the caller's deadline
	ErrProviderTimeout = errors.New("provider timeout")
)

// InsufficientDataError carries the detail behind ErrDataUnavailable and
// ErrInsufficientHistory
type InsufficientDataError struct {
	Symbol    string
	Timeframe market.Timeframe
	Kind      error
	Bars      int
	MinBars   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s %s: %v (%d/%d bars)", e.Symbol, e.Timeframe, e.Kind, e.Bars, e.MinBars)
}

func (e *InsufficientDataError) Unwrap() error { return e.Kind }

// CandleSource is what the scan engine consumes
type CandleSource interface {
	Fetch(ctx context.Context, symbol string, tf market.Timeframe) (*FetchResult, error)
}

// Attempt records one provider call made for a fetch
type Attempt struct {
	Provider string        `json:"provider"`
	Outcome  string        `json:"outcome"` // ok, empty, short, unsupported, error, rate_limited, circuit_open, budget_exhausted
	Bars     int           `json:"bars"`
	Latency  time.Duration `json:"latency"`
	Error    string        `json:"error,omitempty"`
}

const (
	OutcomeOK              = "ok"
	OutcomeEmpty           = "empty"
	OutcomeShort           = "short"
	OutcomeUnsupported     = "unsupported"
	OutcomeError           = "error"
	OutcomeRateLimited     = "rate_limited"
	OutcomeCircuitOpen     = "circuit_open"
	OutcomeBudgetExhausted = "budget_exhausted"
)

// FetchResult is a validated closed-bar series and its provenance
type FetchResult struct {
	Symbol    string              `json:"symbol"`
	Timeframe market.Timeframe    `json:"timeframe"`
	Class     market.AssetClass   `json:"class"`
	Provider  string              `json:"provider"`
	Candles   []market.Candle     `json:"candles"`
	Quality   market.QualityFlags `json:"quality"`
	FetchedAt time.Time           `json:"fetched_at"`
	FromCache bool                `json:"from_cache"`
	Attempts  []Attempt           `json:"attempts,omitempty"`
}

// Last returns the most recent closed candle
func (r *FetchResult) Last() market.Candle {
	if r == nil || len(r.Candles) == 0 {
		return market.Candle{}
	}
	return r.Candles[len(r.Candles)-1]
}

// Config holds the adapter thresholds
type Config struct {
	MinBars        int                      `yaml:"min_bars" default:"30" validate:"min=30,max=50"`
	FetchLimit     int                      `yaml:"fetch_limit" default:"300" validate:"min=50,max=1000"`
	ThrottleNotice time.Duration            `yaml:"throttle_notice" default:"1s" validate:"gt=0"` // limiter wait that counts as a rate-limit hit
	TTL            cache.TTLConfig          `yaml:"ttl"`
	Staleness      validate.StalenessConfig `yaml:"staleness"`
	Anomaly        validate.AnomalyConfig   `yaml:"anomaly"`
}

func DefaultConfig() Config {
	return Config{
		MinBars:        30,
		FetchLimit:     300,
		ThrottleNotice: time.Second,
		TTL:            cache.DefaultTTLConfig(),
		Staleness:      validate.DefaultStalenessConfig(),
		Anomaly:        validate.DefaultAnomalyConfig(),
	}
}

// Observer receives adapter telemetry. *metrics.Registry implements it.
type Observer interface {
	ProviderRequest(provider, outcome string, latency time.Duration)
	ProviderFallback(provider string)
	CacheLookup(hit bool)
}

type nopObserver struct{}

func (nopObserver) ProviderRequest(string, string, time.Duration) {}
func (nopObserver) ProviderFallback(string)                       {}
func (nopObserver) CacheLookup(bool)                              {}
