package facade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/cache"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/circuit"
)

var testNow = time.Date(2024, 6, 3, 12, 0, 30, 0, time.UTC)

// Mock provider for testing
type mockProvider struct {
	mock.Mock
	name    string
	classes []market.AssetClass
}

func newMockProvider(name string, classes ...market.AssetClass) *mockProvider {
	if len(classes) == 0 {
		classes = market.AllClasses
	}
	return &mockProvider{name: name, classes: classes}
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Supports(class market.AssetClass) bool {
	for _, c := range m.classes {
		if c == class {
			return true
		}
	}
	return false
}

func (m *mockProvider) FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	args := m.Called(ctx, symbol, tf, limit)
	candles, _ := args.Get(0).([]market.Candle)
	return candles, args.Error(1)
}

// hourly closed bars ending at the last full hour before testNow
func hourly(n int) []market.Candle {
	end := testNow.Truncate(time.Hour)
	out := make([]market.Candle, n)
	for i := range out {
		p := 100 + float64(i)*0.1
		out[i] = market.Candle{
			Timestamp: end.Add(-time.Duration(n-i) * time.Hour),
			Open:      p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 1000,
		}
	}
	return out
}

func build(opts []Option, chain ...*mockProvider) *Adapter {
	list := make([]providers.Provider, len(chain))
	for i, p := range chain {
		list[i] = p
	}
	return New(DefaultConfig(), list, append([]Option{WithClock(func() time.Time { return testNow })}, opts...)...)
}

func TestFetch_PrimaryEmptySecondaryWins(t *testing.T) {
	primary := newMockProvider("primary")
	secondary := newMockProvider("secondary")
	primary.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).Return(nil, nil).Once()
	secondary.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).Return(hourly(200), nil).Once()

	a := build(nil, primary, secondary)
	res, err := a.Fetch(context.Background(), "AAPL", market.TF1h)
	require.NoError(t, err)

	assert.Equal(t, "secondary", res.Provider)
	assert.Len(t, res.Candles, 200)
	assert.False(t, res.Quality.Degraded(), "flags must come from the producing provider only: %+v", res.Quality)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, OutcomeEmpty, res.Attempts[0].Outcome)
	assert.Equal(t, OutcomeOK, res.Attempts[1].Outcome)
	primary.AssertExpectations(t)
	secondary.AssertExpectations(t)
}

func TestFetch_RateLimitedPrimaryDoesNotFlagSecondary(t *testing.T) {
	primary := newMockProvider("primary")
	secondary := newMockProvider("secondary")
	primary.On("FetchCandles", mock.Anything, "BTC-USD", market.TF1h, 300).
		Return(nil, &httpclient.StatusError{StatusCode: 429}).Once()
	secondary.On("FetchCandles", mock.Anything, "BTC-USD", market.TF1h, 300).Return(hourly(120), nil).Once()

	res, err := build(nil, primary, secondary).Fetch(context.Background(), "BTC-USD", market.TF1h)
	require.NoError(t, err)
	assert.False(t, res.Quality.RateLimitHit)
	assert.Equal(t, OutcomeRateLimited, res.Attempts[0].Outcome)
}

func TestFetch_ZeroThrottleNoticeUsesDefault(t *testing.T) {
	p := newMockProvider("primary")
	p.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).Return(hourly(200), nil).Once()

	config := DefaultConfig()
	config.ThrottleNotice = 0
	a := New(config, []providers.Provider{p}, WithClock(func() time.Time { return testNow }))
	assert.Equal(t, time.Second, a.config.ThrottleNotice)

	res, err := a.Fetch(context.Background(), "AAPL", market.TF1h)
	require.NoError(t, err)
	assert.False(t, res.Quality.RateLimitHit, "an unthrottled fetch is not a rate-limit hit")
}

func TestFetch_AllEmptyIsDataUnavailable(t *testing.T) {
	p := newMockProvider("only")
	p.On("FetchCandles", mock.Anything, "ZZZ", market.TF1d, 300).Return(nil, nil)

	res, err := build(nil, p).Fetch(context.Background(), "ZZZ", market.TF1d)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, ErrInsufficientData)

	var detail *InsufficientDataError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, 30, detail.MinBars)
}

func TestFetch_ShortHistoryReturnsBestPartial(t *testing.T) {
	a1 := newMockProvider("a")
	a2 := newMockProvider("b")
	a1.On("FetchCandles", mock.Anything, "NEW", market.TF1h, 300).Return(hourly(10), nil)
	a2.On("FetchCandles", mock.Anything, "NEW", market.TF1h, 300).Return(hourly(20), nil)

	res, err := build(nil, a1, a2).Fetch(context.Background(), "NEW", market.TF1h)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
	require.NotNil(t, res)
	assert.Equal(t, "b", res.Provider)
	assert.Len(t, res.Candles, 20)
	assert.Equal(t, OutcomeShort, res.Attempts[0].Outcome)
}

func TestFetch_ErrorsOnlyIsHardFailure(t *testing.T) {
	p := newMockProvider("broken")
	p.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).Return(nil, errors.New("connection reset"))

	_, err := build(nil, p).Fetch(context.Background(), "AAPL", market.TF1h)
	assert.ErrorIs(t, err, ErrProvidersFailed)
	assert.False(t, errors.Is(err, ErrInsufficientData))
	assert.Contains(t, err.Error(), "broken: connection reset")
}

func TestFetch_SkipsProvidersForOtherClasses(t *testing.T) {
	cryptoOnly := newMockProvider("binance", market.Crypto)
	broad := newMockProvider("yahoo")
	broad.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).Return(hourly(60), nil)

	res, err := build(nil, cryptoOnly, broad).Fetch(context.Background(), "AAPL", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, "yahoo", res.Provider)
	cryptoOnly.AssertNotCalled(t, "FetchCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFetch_DropsFormingBarAndFlagsMalformed(t *testing.T) {
	series := hourly(60)
	forming := series[59]
	forming.Timestamp = testNow.Truncate(time.Hour)
	series = append(series, forming)
	series[10], series[11] = series[11], series[10]

	p := newMockProvider("p")
	p.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).Return(series, nil)

	res, err := build(nil, p).Fetch(context.Background(), "AAPL", market.TF1h)
	require.NoError(t, err)
	assert.Len(t, res.Candles, 60)
	assert.True(t, res.Quality.Malformed)
	assert.True(t, res.Last().Timestamp.Before(testNow.Truncate(time.Hour)))
}

func TestFetch_CacheServesRepeatCalls(t *testing.T) {
	p := newMockProvider("p")
	p.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).Return(hourly(60), nil).Once()

	mem := cache.NewTTLCache(16)
	defer mem.Close()
	a := build([]Option{WithCache(mem)}, p)

	first, err := a.Fetch(context.Background(), "AAPL", market.TF1h)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := a.Fetch(context.Background(), "AAPL", market.TF1h)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Len(t, second.Candles, 60)
	p.AssertNumberOfCalls(t, "FetchCandles", 1)
}

func TestFetch_OpenBreakerFallsThrough(t *testing.T) {
	flaky := newMockProvider("flaky")
	backup := newMockProvider("backup")
	flaky.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).Return(nil, errors.New("boom"))
	backup.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).Return(hourly(40), nil)

	cfg := circuit.DefaultConfig()
	cfg.FailureThreshold = 2
	a := build([]Option{WithBreakers(circuit.NewManager(cfg))}, flaky, backup)

	for i := 0; i < 2; i++ {
		_, err := a.Fetch(context.Background(), "AAPL", market.TF1h)
		require.NoError(t, err)
	}
	res, err := a.Fetch(context.Background(), "AAPL", market.TF1h)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCircuitOpen, res.Attempts[0].Outcome)
	flaky.AssertNumberOfCalls(t, "FetchCandles", 2)
}

func TestFetch_DeadlineIsProviderTimeout(t *testing.T) {
	slow := newMockProvider("slow")
	slow.On("FetchCandles", mock.Anything, "AAPL", market.TF1h, 300).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := build(nil, slow).Fetch(ctx, "AAPL", market.TF1h)
	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewOfflineAdapterServesEveryClass(t *testing.T) {
	a := NewOfflineAdapter(DefaultConfig(), nil)
	for _, sym := range []string{"BTC-USD", "AAPL", "EURUSD=X", "ES=F"} {
		res, err := a.Fetch(context.Background(), sym, market.TF1h)
		require.NoError(t, err, sym)
		assert.Equal(t, "fake", res.Provider)
		assert.GreaterOrEqual(t, len(res.Candles), 30)
	}
}
