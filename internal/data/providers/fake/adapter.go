package fake

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// Adapter generates deterministic candles for offline runs and tests. The
// same symbol and timeframe always produce the same series up to the bar
// that closed before now.
type Adapter struct {
	name       string
	volatility float64 // per-bar volatility (0.01 = 1%)
	now        func() time.Time

	mu        sync.RWMutex
	priceBase map[string]float64
	trendBias map[string]float64
	empty     map[string]bool
}

// NewAdapter creates a deterministic fake adapter
func NewAdapter(name string) *Adapter {
	return &Adapter{
		name:       name,
		volatility: 0.01,
		now:        time.Now,
		priceBase:  getDefaultPrices(),
		trendBias:  make(map[string]float64),
		empty:      make(map[string]bool),
	}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Supports(market.AssetClass) bool { return true }

// SetClock pins the generator to a fixed wall clock
func (a *Adapter) SetClock(now func() time.Time) { a.now = now }

// SetVolatility configures the per-bar volatility for price generation
func (a *Adapter) SetVolatility(volatility float64) { a.volatility = volatility }

// SetBasePrice sets the starting price for a symbol
func (a *Adapter) SetBasePrice(symbol string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.priceBase[strings.ToUpper(symbol)] = price
}

// SetTrendBias adds a per-bar drift to a symbol, e.g. 0.002 for +0.2% per bar
func (a *Adapter) SetTrendBias(symbol string, bias float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trendBias[strings.ToUpper(symbol)] = bias
}

// SetEmpty makes the adapter return no data for symbol
func (a *Adapter) SetEmpty(symbol string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.empty[strings.ToUpper(symbol)] = true
}

// FetchCandles generates deterministic historical candles
func (a *Adapter) FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strings.ToUpper(symbol)

	a.mu.RLock()
	empty := a.empty[key]
	base, ok := a.priceBase[key]
	bias := a.trendBias[key]
	a.mu.RUnlock()

	if empty {
		return nil, nil
	}
	if !ok {
		base = 100.0
	}
	if limit <= 0 {
		limit = 500
	}

	candles := a.generate(key, tf, limit, base, bias)
	log.Debug().Str("provider", a.name).Str("symbol", symbol).
		Int("count", len(candles)).Msg("Generated fake candles")
	return candles, nil
}

func (a *Adapter) generate(symbol string, tf market.Timeframe, limit int, base, bias float64) []market.Candle {
	interval := tf.Interval()
	end := a.now().UTC().Truncate(interval) // open time of the bar still forming
	start := end.Add(-time.Duration(limit) * interval)

	rng := rand.New(rand.NewSource(seedFor(symbol, tf)))
	out := make([]market.Candle, 0, limit)
	price := base
	for i := 0; i < limit; i++ {
		ts := start.Add(time.Duration(i) * interval)

		// slow sine gives alternating trend regimes, noise gives swings
		regime := math.Sin(float64(i)/25.0) * a.volatility * 0.3
		ret := bias + regime + rng.NormFloat64()*a.volatility

		open := price
		close := open * (1 + ret)
		wick := math.Abs(rng.NormFloat64()) * a.volatility * 0.5
		high := math.Max(open, close) * (1 + wick)
		low := math.Min(open, close) * (1 - wick*rng.Float64())

		// volume correlated with the size of the move
		move := math.Abs(close-open) / open
		volume := 1000 * (1 + move*50 + rng.Float64())

		out = append(out, market.Candle{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
		})
		price = close
	}
	return out
}

// seedFor derives a stable seed from symbol and timeframe
func seedFor(symbol string, tf market.Timeframe) int64 {
	hash := md5.Sum([]byte(symbol + "|" + string(tf)))
	return int64(binary.BigEndian.Uint64(hash[:8]))
}

func getDefaultPrices() map[string]float64 {
	return map[string]float64{
		"BTC-USD":  65000.0,
		"BTCUSDT":  65000.0,
		"ETH-USD":  3200.0,
		"ETHUSDT":  3200.0,
		"SOL-USD":  150.0,
		"AAPL":     190.0,
		"MSFT":     410.0,
		"SPY":      520.0,
		"EURUSD=X": 1.08,
		"GBPUSD=X": 1.27,
		"DX-Y.NYB": 104.0,
		"ES=F":     5200.0,
		"GC=F":     2300.0,
	}
}
