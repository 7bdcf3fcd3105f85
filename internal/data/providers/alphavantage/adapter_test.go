package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/budget"
)

const dailyBody = `{
	"Meta Data": {"2. Symbol": "IBM"},
	"Time Series (Daily)": {
		"2024-01-03": {"1. open": "161.0", "2. high": "162.0", "3. low": "160.0", "4. close": "161.5", "5. volume": "3000"},
		"2024-01-02": {"1. open": "160.0", "2. high": "161.5", "3. low": "159.0", "4. close": "161.0", "5. volume": "2500"}
	}
}`

func newAdapter(t *testing.T, handler http.HandlerFunc, limit int64) *Adapter {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tracker := budget.NewTracker("alphavantage", budget.Config{Limit: limit, WarnThreshold: 0.5})
	return NewAdapter(srv.URL, "demo", httpclient.NewClientPool(httpclient.DefaultClientConfig()), tracker)
}

func TestFetchDailySortsAscending(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(dailyBody))
	}, 10)

	candles, err := a.FetchCandles(context.Background(), "IBM", market.TF1d, 0)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))
	assert.Equal(t, 161.5, candles[1].Close)
	assert.Equal(t, 2500.0, candles[0].Volume)
}

func TestFetchInBandThrottleIsRateLimited(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	}, 10)

	_, err := a.FetchCandles(context.Background(), "IBM", market.TF1h, 0)
	assert.True(t, errors.Is(err, httpclient.ErrRateLimited))
}

func TestFetchStopsWhenBudgetExhausted(t *testing.T) {
	calls := 0
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(dailyBody))
	}, 1)

	_, err := a.FetchCandles(context.Background(), "IBM", market.TF1d, 0)
	require.NoError(t, err, "a budget warning must not block the request")

	_, err = a.FetchCandles(context.Background(), "IBM", market.TF1d, 0)
	assert.ErrorIs(t, err, budget.ErrBudgetExhausted)
	assert.Equal(t, 1, calls)
}

func TestFetchForexIntraday(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "FX_INTRADAY", q.Get("function"))
		assert.Equal(t, "EUR", q.Get("from_symbol"))
		assert.Equal(t, "USD", q.Get("to_symbol"))
		_, _ = w.Write([]byte(`{"Time Series FX (15min)": {
			"2024-01-02 10:00:00": {"1. open": "1.0950", "2. high": "1.0960", "3. low": "1.0940", "4. close": "1.0955"}
		}}`))
	}, 0)

	candles, err := a.FetchCandles(context.Background(), "EURUSD=X", market.TF15m, 0)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 10, candles[0].Timestamp.Hour())
	assert.Zero(t, candles[0].Volume)
}

func TestUnknownSymbolAndUnsupportedClass(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Error Message": "Invalid API call."}`))
	}, 0)

	candles, err := a.FetchCandles(context.Background(), "NOPE", market.TF1d, 0)
	assert.NoError(t, err)
	assert.Empty(t, candles)

	assert.False(t, a.Supports(market.Crypto))
	_, err = a.FetchCandles(context.Background(), "EURUSDX=X", market.TF1d, 0)
	assert.ErrorIs(t, err, providers.ErrUnsupported)
}
