package fake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

func TestFetchCandlesIsDeterministic(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	a := NewAdapter("fake")
	a.SetClock(func() time.Time { return now })
	b := NewAdapter("fake")
	b.SetClock(func() time.Time { return now })

	first, err := a.FetchCandles(context.Background(), "BTC-USD", market.TF1h, 200)
	require.NoError(t, err)
	second, err := b.FetchCandles(context.Background(), "BTC-USD", market.TF1h, 200)
	require.NoError(t, err)

	require.Len(t, first, 200)
	assert.Equal(t, first, second)

	last := first[len(first)-1]
	assert.True(t, last.Timestamp.Add(time.Hour).Equal(now.Truncate(time.Hour)), "last bar must be closed")
	for i, c := range first {
		assert.GreaterOrEqual(t, c.High, c.Low, "bar %d", i)
		assert.GreaterOrEqual(t, c.High, c.Close, "bar %d", i)
		assert.LessOrEqual(t, c.Low, c.Open, "bar %d", i)
	}
}

func TestSeriesDiffersBySymbol(t *testing.T) {
	a := NewAdapter("fake")
	x, _ := a.FetchCandles(context.Background(), "AAPL", market.TF1d, 50)
	y, _ := a.FetchCandles(context.Background(), "MSFT", market.TF1d, 50)
	assert.NotEqual(t, x[10].Close/x[0].Close, y[10].Close/y[0].Close)
}

func TestSetEmptyAndTrend(t *testing.T) {
	a := NewAdapter("fake")
	a.SetEmpty("GONE")
	candles, err := a.FetchCandles(context.Background(), "GONE", market.TF1h, 100)
	assert.NoError(t, err)
	assert.Empty(t, candles)

	a.SetVolatility(0.001)
	a.SetTrendBias("UP", 0.01)
	up, _ := a.FetchCandles(context.Background(), "UP", market.TF1h, 100)
	assert.Greater(t, up[99].Close, up[0].Close*1.5)
}

func TestFetchCandlesHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAdapter("fake").FetchCandles(ctx, "AAPL", market.TF1h, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
