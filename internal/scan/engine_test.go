package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/facade"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/metrics"
	"github.com/csd2000/Trade-Flow-sub002/internal/sentiment"
	"github.com/csd2000/Trade-Flow-sub002/internal/state"
)

var t0 = time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

type stubSource struct {
	series map[string][]market.Candle
	errs   map[string]error
	block  map[string]bool
	panics map[string]bool
	delay  time.Duration

	mu          sync.Mutex
	calls       map[string]int
	inFlight    int32
	maxInFlight int32
}

func newStub() *stubSource {
	return &stubSource{
		series: map[string][]market.Candle{},
		errs:   map[string]error{},
		block:  map[string]bool{},
		panics: map[string]bool{},
		calls:  map[string]int{},
	}
}

func (s *stubSource) Fetch(ctx context.Context, symbol string, tf market.Timeframe) (*facade.FetchResult, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.maxInFlight)
		if n <= peak || atomic.CompareAndSwapInt32(&s.maxInFlight, peak, n) {
			break
		}
	}
	s.mu.Lock()
	s.calls[symbol]++
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panics[symbol] {
		panic("provider exploded")
	}
	if s.block[symbol] {
		<-ctx.Done()
		return nil, fmt.Errorf("%s: %w: %w", symbol, facade.ErrProviderTimeout, ctx.Err())
	}
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	candles, ok := s.series[symbol]
	if !ok {
		return nil, &facade.InsufficientDataError{Symbol: symbol, Timeframe: tf, Kind: facade.ErrDataUnavailable, MinBars: 30}
	}
	return &facade.FetchResult{
		Symbol:    symbol,
		Timeframe: tf,
		Class:     market.Classify(symbol),
		Provider:  "stub",
		Candles:   candles,
	}, nil
}

// flatThenJump is n-1 flat hourly bars around 100 followed by one bar that
// closes at 100+jump, which crosses the fast EMA over the slow one
func flatThenJump(n int, jump float64) []market.Candle {
	out := make([]market.Candle, n)
	start := t0.Add(-time.Duration(n+1) * time.Hour)
	for i := range out {
		out[i] = market.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 100.5, Low: 99.5, Close: 100,
			Volume: 1000,
		}
	}
	last := &out[n-1]
	last.Close = 100 + jump
	if jump > 0 {
		last.High, last.Low = last.Close+0.5, 99.5
	} else {
		last.High, last.Low = 100.5, last.Close-0.5
	}
	last.Volume = 3000
	return out
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestEngine(t *testing.T, src *stubSource, opts ...Option) (*Engine, *state.Store, *testClock) {
	t.Helper()
	clock := &testClock{now: t0}
	store := state.NewStore(state.DefaultConfig(), state.WithClock(clock.Now))
	cfg := DefaultConfig()
	cfg.Pacing = 0
	cfg.SymbolTimeout = 200 * time.Millisecond
	base := []Option{WithClock(clock.Now), WithSentiment(sentiment.Static(50), sentiment.DefaultConfig())}
	e, err := NewEngine(cfg, src, store, append(base, opts...)...)
	require.NoError(t, err)
	return e, store, clock
}

func TestNewEngineRequiresDeps(t *testing.T) {
	_, err := NewEngine(DefaultConfig(), nil, state.NewStore(state.DefaultConfig()))
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Profile = "momentum"
	_, err = NewEngine(cfg, newStub(), state.NewStore(state.DefaultConfig()))
	assert.Error(t, err)
}

func TestInsufficientDataIsNotAnError(t *testing.T) {
	src := newStub()
	src.series["AAPL"] = flatThenJump(10, 0)
	e, _, _ := newTestEngine(t, src)

	a, err := e.Analyze(context.Background(), "AAPL", market.TF1h)
	require.NoError(t, err)
	assert.True(t, a.InsufficientData)
	assert.Equal(t, 10, a.Bars)
	assert.Nil(t, a.Signal)

	// no provider has the symbol at all
	a, err = e.Analyze(context.Background(), "MSFT", market.TF1h)
	require.NoError(t, err)
	assert.True(t, a.InsufficientData)

	res := e.Scan(context.Background(), []string{"AAPL", "MSFT"}, market.TF1h)
	assert.Equal(t, 2, res.Totals.Attempted)
	assert.Equal(t, 2, res.Totals.Insufficient)
	assert.Zero(t, res.Totals.Errors)
	assert.Empty(t, res.Errors)
}

func TestPerSymbolFailuresAreCollected(t *testing.T) {
	src := newStub()
	src.series["AAPL"] = flatThenJump(250, 0)
	src.errs["BAD"] = fmt.Errorf("BAD 1h: %w", facade.ErrProvidersFailed)
	src.block["SLOW"] = true
	src.panics["BOOM"] = true
	e, _, _ := newTestEngine(t, src)

	res := e.Scan(context.Background(), []string{"SLOW", "AAPL", "BAD", "BOOM"}, market.TF1h)
	assert.Equal(t, 4, res.Totals.Attempted)
	assert.Equal(t, 1, res.Totals.Analyzed)
	assert.Equal(t, 3, res.Totals.Errors)
	require.Len(t, res.Errors, 3)

	kinds := map[string]string{}
	for _, se := range res.Errors {
		kinds[se.Symbol] = se.Kind
	}
	assert.Equal(t, map[string]string{"BAD": KindProvidersFailed, "BOOM": KindPanic, "SLOW": KindTimeout}, kinds)
	assert.Equal(t, "BAD", res.Errors[0].Symbol, "errors are sorted by symbol")

	_, err := e.Analyze(context.Background(), "BAD", market.TF1h)
	assert.ErrorIs(t, err, facade.ErrProvidersFailed)
}

func TestConcurrencyIsBounded(t *testing.T) {
	src := newStub()
	src.delay = 20 * time.Millisecond
	var symbols []string
	for i := 0; i < 12; i++ {
		sym := fmt.Sprintf("SYM%d", i)
		symbols = append(symbols, sym)
		src.series[sym] = flatThenJump(60, 0)
	}
	e, _, _ := newTestEngine(t, src)

	res := e.Scan(context.Background(), symbols, market.TF1h)
	assert.Equal(t, 12, res.Totals.Analyzed)
	assert.LessOrEqual(t, atomic.LoadInt32(&src.maxInFlight), int32(DefaultConfig().MaxInFlight))
}

func TestCancelledScanReportsRemainingSymbols(t *testing.T) {
	src := newStub()
	src.series["AAPL"] = flatThenJump(60, 0)
	e, _, _ := newTestEngine(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.Scan(ctx, []string{"AAPL", "MSFT"}, market.TF1h)
	assert.Equal(t, 2, res.Totals.Attempted)
	assert.Equal(t, 2, res.Totals.Errors)
	assert.Equal(t, KindCancelled, res.Errors[0].Kind)
}

func TestCrossEntryEmitsThenThrottles(t *testing.T) {
	src := newStub()
	src.series["AAPL"] = flatThenJump(250, 3)
	reg := metrics.NewRegistry()
	e, store, clock := newTestEngine(t, src, WithMetrics(reg))

	res := e.Scan(context.Background(), []string{"AAPL"}, market.TF1h)
	require.Empty(t, res.Errors)
	assert.Equal(t, 1, res.Totals.Signaled)
	assert.Equal(t, 1, res.Totals.Emitted)
	require.Len(t, res.Signals, 1)

	sig := res.Signals[0]
	assert.Equal(t, market.Bullish, sig.Direction)
	assert.True(t, sig.Stop.LessThan(sig.Entry))
	assert.True(t, sig.PrimaryTarget().Price.GreaterThan(sig.Entry))
	assert.NotEmpty(t, sig.Reasoning)

	pos := store.Position("AAPL")
	assert.Equal(t, state.Open, pos.Status)
	assert.Equal(t, 103.0, pos.EntryPrice)
	require.Len(t, e.ActiveEpisodes(), 1)

	// still open: the same bar does not re-enter, but the repeat alert is throttled
	clock.now = t0.Add(time.Minute)
	res = e.Scan(context.Background(), []string{"AAPL"}, market.TF1h)
	assert.Equal(t, 1, res.Totals.Signaled)
	assert.Zero(t, res.Totals.Emitted)
	assert.Equal(t, 1, res.Totals.Throttled)
	assert.Zero(t, res.Totals.Exits)
	assert.Empty(t, res.Signals)
	require.Len(t, res.Throttled, 1)
	assert.Equal(t, 1, res.Throttled[0].Episode.SuppressedCount)
	assert.Equal(t, 103.0, store.Position("AAPL").EntryPrice)

	// flat again inside the episode window: entry applies, alert is throttled
	store.Exit("AAPL", 103, clock.now, "manual")
	clock.now = t0.Add(2 * time.Minute)
	res = e.Scan(context.Background(), []string{"AAPL"}, market.TF1h)
	assert.Equal(t, 1, res.Totals.Throttled)
	assert.Zero(t, res.Totals.Errors)
	assert.Empty(t, res.Signals)
	require.Len(t, res.Throttled, 1)
	assert.Equal(t, 2, res.Throttled[0].Episode.SuppressedCount)
	assert.Equal(t, state.Open, store.Position("AAPL").Status)

	// after the window a new episode opens
	store.Exit("AAPL", 103, clock.now, "manual")
	clock.now = t0.Add(6 * time.Minute)
	res = e.Scan(context.Background(), []string{"AAPL"}, market.TF1h)
	assert.Equal(t, 1, res.Totals.Emitted)
}

func TestOpposingCrossExitsAndReverses(t *testing.T) {
	src := newStub()
	src.series["AAPL"] = flatThenJump(250, -3)
	e, store, _ := newTestEngine(t, src)
	store.Enter("AAPL", market.Bullish, 100, t0.Add(-5*time.Hour))

	res := e.Scan(context.Background(), []string{"AAPL"}, market.TF1h)
	require.Empty(t, res.Errors)
	require.Len(t, res.Exits, 1)
	assert.Equal(t, "opposing_cross", res.Exits[0].Result.ReasonString)
	assert.InDelta(t, -3.0, res.Exits[0].Result.UnrealizedPnL, 1e-9)
	assert.Equal(t, state.Flat, res.Exits[0].Transition.To)

	require.Len(t, res.Signals, 1)
	assert.Equal(t, market.Bearish, res.Signals[0].Direction)
	pos := store.Position("AAPL")
	assert.Equal(t, state.Open, pos.Status)
	assert.Equal(t, market.Bearish, pos.Direction)
}

func TestAnalyzeDoesNotTouchState(t *testing.T) {
	src := newStub()
	src.series["AAPL"] = flatThenJump(250, 3)
	e, store, _ := newTestEngine(t, src)

	a, err := e.Analyze(context.Background(), "AAPL", market.TF1h)
	require.NoError(t, err)
	require.NotNil(t, a.Signal)
	assert.Equal(t, "stub", a.Provider)
	assert.Equal(t, market.Equities, a.Class)
	assert.Equal(t, state.Flat, store.Position("AAPL").Status)
	assert.Empty(t, store.ActiveEpisodes())
}

func TestForexMacroFetchedOncePerScan(t *testing.T) {
	src := newStub()
	src.series["EURUSD=X"] = flatThenJump(250, 0)
	src.series["GBPUSD=X"] = flatThenJump(250, 0)
	src.series["DX-Y.NYB"] = flatThenJump(250, 0)
	e, _, _ := newTestEngine(t, src)

	res := e.Scan(context.Background(), []string{"EURUSD=X", "GBPUSD=X"}, market.TF1h)
	assert.Equal(t, 2, res.Totals.Analyzed)
	assert.Equal(t, 1, src.calls["DX-Y.NYB"])

	e.Scan(context.Background(), []string{"AAPL"}, market.TF1h)
	assert.Equal(t, 1, src.calls["DX-Y.NYB"], "no forex symbol, no index fetch")
}

func TestBlendedScore(t *testing.T) {
	e, _, _ := newTestEngine(t, newStub())

	assert.Equal(t, 70.0, e.blend(70, 70, 50, market.Bullish))
	assert.Equal(t, 80.0, e.blend(70, 70, 80, market.Bullish), "greed agrees with a long")
	assert.Equal(t, 60.0, e.blend(70, 70, 80, market.Bearish))
	assert.Equal(t, 100.0, e.blend(100, 100, 90, market.Bullish), "clamped")
	assert.Equal(t, 0.0, e.blend(0, 0, 90, market.Bearish))
}
