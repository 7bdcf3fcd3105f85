package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/facade"
)

var (
	// ErrMalformedSeries is never returned; a malformed series only sets
	// the quality flag and analysis continues
	ErrMalformedSeries = errors.New("malformed series")
	// ErrThrottledDuplicate marks a signal suppressed by its alert episode.
	// It is counted as throttled, not as an error.
	ErrThrottledDuplicate = errors.New("duplicate alert throttled")
	// ErrAnalysisPanic wraps a recovered panic from one symbol's analysis
	ErrAnalysisPanic = errors.New("analysis panicked")

	// Re-exported so callers need not import the data layer to classify
	ErrDataUnavailable     = facade.ErrDataUnavailable
	ErrInsufficientHistory = facade.ErrInsufficientHistory
	ErrProviderTimeout     = facade.ErrProviderTimeout
)

// SymbolError is one per-symbol failure in a scan
type SymbolError struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// Error kinds
const (
	KindTimeout         = "timeout"
	KindProvidersFailed = "providers_failed"
	KindPanic           = "panic"
	KindCancelled       = "cancelled"
	KindInternal        = "internal"
)

func classify(err error) string {
	switch {
	case errors.Is(err, ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, facade.ErrProvidersFailed):
		return KindProvidersFailed
	case errors.Is(err, ErrAnalysisPanic):
		return KindPanic
	default:
		return KindInternal
	}
}

func newSymbolError(symbol string, err error) SymbolError {
	return SymbolError{Symbol: symbol, Kind: classify(err), Error: err.Error()}
}

func panicError(symbol string, r interface{}) error {
	return fmt.Errorf("%s: %w: %v", symbol, ErrAnalysisPanic, r)
}
