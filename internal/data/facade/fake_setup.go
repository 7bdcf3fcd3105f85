package facade

import (
	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/cache"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers/fake"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// NewOfflineAdapter creates an adapter backed only by deterministic fake data,
// for offline development and demos
func NewOfflineAdapter(config Config, universe *market.SymbolUniverse, opts ...Option) *Adapter {
	gen := fake.NewAdapter("fake")
	gen.SetVolatility(0.012)

	// a couple of symbols with a persistent drift so offline scans show signals
	gen.SetTrendBias("BTC-USD", 0.002)
	gen.SetTrendBias("AAPL", 0.0015)
	gen.SetTrendBias("EURUSD=X", -0.0008)

	log.Info().Msg("Created offline data adapter with deterministic fake provider")

	base := []Option{
		WithUniverse(universe),
		WithCache(cache.NewTTLCache(1024)),
	}
	return New(config, []providers.Provider{gen}, append(base, opts...)...)
}
