package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		symbol string
		want   AssetClass
	}{
		{"BTC-USD", Crypto},
		{"ethusdt", Crypto},
		{"EURUSD=X", Forex},
		{"ES=F", Futures},
		{"AAPL", Equities},
		{"  spy ", Equities},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.symbol))
		})
	}
}

func TestSymbolUniverseOverridesClassify(t *testing.T) {
	u := NewSymbolUniverse(map[AssetClass][]string{
		Futures:  {"GC=F", "BTC-USD"},
		Equities: {"aapl", "MSFT"},
	})

	assert.Equal(t, Futures, u.ClassOf("btc-usd"), "explicit membership wins over symbol shape")
	assert.Equal(t, Equities, u.ClassOf("AAPL"))
	assert.Equal(t, Forex, u.ClassOf("GBPUSD=X"), "unknown symbols fall back to Classify")
	assert.Equal(t, []string{"AAPL", "MSFT", "BTC-USD", "GC=F"}, u.All())

	var nilU *SymbolUniverse
	assert.Equal(t, Crypto, nilU.ClassOf("SOL-USD"))
	assert.Nil(t, nilU.All())
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("60m")
	require.NoError(t, err)
	assert.Equal(t, TF1h, tf)
	assert.Equal(t, time.Hour, tf.Interval())
	assert.True(t, tf.IsIntraday())

	tf, err = ParseTimeframe("daily")
	require.NoError(t, err)
	assert.False(t, tf.IsIntraday())

	_, err = ParseTimeframe("3w")
	assert.Error(t, err)
}

func TestClosedOnlyDropsFormingBar(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	candles := []Candle{
		{Timestamp: base, Close: 1},
		{Timestamp: base.Add(time.Hour), Close: 2},
	}

	now := base.Add(90 * time.Minute)
	closed := ClosedOnly(candles, TF1h, now)
	require.Len(t, closed, 1)
	assert.Equal(t, 1.0, closed[0].Close)

	now = base.Add(2 * time.Hour)
	assert.Len(t, ClosedOnly(candles, TF1h, now), 2)
}

func TestAggregateFoldsIntoBuckets(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var hourly []Candle
	for i := 0; i < 8; i++ {
		p := float64(100 + i)
		hourly = append(hourly, Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 10,
		})
	}

	out := Aggregate(hourly, 4*time.Hour)
	require.Len(t, out, 2)
	assert.Equal(t, 100.0, out[0].Open)
	assert.Equal(t, 104.0, out[0].High)
	assert.Equal(t, 99.0, out[0].Low)
	assert.Equal(t, 103.5, out[0].Close)
	assert.Equal(t, 40.0, out[0].Volume)
	assert.Equal(t, base.Add(4*time.Hour), out[1].Timestamp)
}

func TestCandleGeometry(t *testing.T) {
	c := Candle{Open: 10, High: 14, Low: 7, Close: 12}
	assert.True(t, c.IsBullish())
	assert.Equal(t, 2.0, c.Body())
	assert.Equal(t, 7.0, c.Range())
	assert.Equal(t, 2.0, c.UpperWick())
	assert.Equal(t, 3.0, c.LowerWick())
	assert.Equal(t, Bearish, Bullish.Opposite())
	assert.Equal(t, -1.0, Bearish.Sign())
}
