// Package providers defines the contract every candle source implements.
// Concrete sources live in sub-packages; the facade composes them into a
// priority-ordered fallback chain.
package providers

import (
	"context"
	"errors"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// ErrUnsupported means the provider does not serve this symbol or timeframe.
// The facade treats it like an empty response.
var ErrUnsupported = errors.New("symbol or timeframe not supported by provider")

// Provider returns OHLCV candles for a symbol. An unknown symbol yields an
// empty slice and a nil error; transport and decoding failures are errors.
type Provider interface {
	Name() string
	Supports(class market.AssetClass) bool
	FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error)
}

// Trim keeps the most recent limit candles
func Trim(candles []market.Candle, limit int) []market.Candle {
	if limit > 0 && len(candles) > limit {
		return candles[len(candles)-limit:]
	}
	return candles
}
