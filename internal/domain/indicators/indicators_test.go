package indicators

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

func randomWalk(n int, seed int64) []market.Candle {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	out := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		open := price
		price *= 1 + rng.NormFloat64()*0.01
		hi := math.Max(open, price) * (1 + rng.Float64()*0.005)
		lo := math.Min(open, price) * (1 - rng.Float64()*0.005)
		out[i] = market.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      open, High: hi, Low: lo, Close: price,
			Volume: 1000 + rng.Float64()*500,
		}
	}
	return out
}

func flatCandles(n int, price float64) []market.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: price, High: price, Low: price, Close: price, Volume: 100}
	}
	return out
}

func assertBounded(t *testing.T, name string, values []float64) {
	t.Helper()
	for i, v := range values {
		require.False(t, math.IsNaN(v), "%s[%d] is NaN", name, i)
		require.GreaterOrEqual(t, v, 0.0, "%s[%d]", name, i)
		require.LessOrEqual(t, v, 100.0, "%s[%d]", name, i)
	}
}

func TestOscillatorsStayBounded(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 1337} {
		candles := randomWalk(300, seed)
		closes := market.Closes(candles)

		assertBounded(t, "rsi", RSISeries(closes, 14))
		assertBounded(t, "rsi7", RSISeries(closes, 7))

		stoch := Stochastic(candles, StochParams{K: 14, SmoothK: 3, D: 3})
		assertBounded(t, "stoch.k", stoch.K)
		assertBounded(t, "stoch.d", stoch.D)

		adx := ADX(candles, 14)
		assertBounded(t, "adx", adx.ADX)
		assertBounded(t, "+di", adx.PlusDI)
		assertBounded(t, "-di", adx.MinusDI)
	}
}

func TestShortInputDegradesToNeutral(t *testing.T) {
	short := randomWalk(5, 3)

	rsi := CalculateRSI(market.Closes(short), 14)
	assert.Equal(t, 50.0, rsi.Value)
	assert.False(t, rsi.IsValid)

	atr := CalculateATR(short, 14)
	assert.Equal(t, 0.0, atr.Value)
	assert.False(t, atr.IsValid)

	assert.Equal(t, ADXValue{}, ADX(short, 14).Latest())

	snap := Compute(nil, SwingProfile())
	assert.Equal(t, 50.0, snap.RSI.Value)
	assert.Equal(t, 1.0, snap.RelativeVolume)

	assert.NotPanics(t, func() { Compute(short, ScalpingProfile()) })
}

func TestEMAOfConstantSeriesIsConstant(t *testing.T) {
	values := make([]float64, 250)
	for i := range values {
		values[i] = 42.5
	}
	for _, period := range []int{2, 9, 21, 200} {
		for i, v := range EMA(values, period) {
			assert.InDelta(t, 42.5, v, 1e-9, "period %d bar %d", period, i)
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	ema := EMA(values, 3)
	assert.InDelta(t, 2.0, ema[2], 1e-12, "seed is SMA of first 3")
	assert.InDelta(t, 3.0, ema[3], 1e-12, "(4-2)*0.5+2")
	assert.InDelta(t, 4.0, ema[4], 1e-12)
}

func TestSMAAndWMA(t *testing.T) {
	values := []float64{2, 4, 6, 8}
	assert.Equal(t, []float64{2, 3, 4, 6}, SMA(values, 3))

	wma := WMA(values, 3)
	assert.InDelta(t, (4*1+6*2+8*3)/6.0, wma[3], 1e-12)
}

func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
	}
	assert.Equal(t, 100.0, CalculateRSI(up, 14).Value)

	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	assert.Equal(t, 50.0, CalculateRSI(flat, 14).Value, "no movement reads neutral")
}

func TestWilderATRConstantRange(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, 40)
	for i := range candles {
		candles[i] = market.Candle{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: 100, High: 101, Low: 99, Close: 100}
	}
	atr := CalculateATR(candles, 14)
	require.True(t, atr.IsValid)
	assert.InDelta(t, 2.0, atr.Value, 1e-9)
	assert.False(t, atr.Trending)
}

func TestMACDCrossDetection(t *testing.T) {
	v := MACDValue{PrevMACD: -0.1, PrevSignal: 0, MACD: 0.2, Signal: 0.1}
	assert.True(t, v.BullishCross())
	assert.False(t, v.BearishCross())
	assert.True(t, v.ZeroCrossUp())

	v = MACDValue{PrevMACD: 0.3, PrevSignal: 0.2, MACD: 0.1, Signal: 0.15}
	assert.True(t, v.BearishCross())
	assert.False(t, v.ZeroCrossDown())

	series := MACD(market.Closes(randomWalk(120, 9)), MACDParams{Fast: 12, Slow: 26, Signal: 9})
	require.Len(t, series.Histogram, 120)
	for i := range series.Histogram {
		assert.InDelta(t, series.MACD[i]-series.Signal[i], series.Histogram[i], 1e-12)
	}
}

func TestBollingerFlatSeries(t *testing.T) {
	closes := market.Closes(flatCandles(30, 50))
	bb := Bollinger(closes, 20, 2.5)
	assert.Equal(t, 50.0, bb.Upper)
	assert.Equal(t, 50.0, bb.Lower)
	assert.Equal(t, 0.5, bb.PercentB)
	assert.Equal(t, 0.0, bb.Width)
}

func TestStochasticFlatReadsFifty(t *testing.T) {
	stoch := Stochastic(flatCandles(30, 10), StochParams{K: 14, SmoothK: 3, D: 3}).Latest()
	assert.Equal(t, 50.0, stoch.K)
	assert.Equal(t, 50.0, stoch.D)
}

func TestHullAndZeroLagTrackTrendCloser(t *testing.T) {
	values := make([]float64, 120)
	for i := range values {
		values[i] = float64(i)
	}
	lastVal := values[len(values)-1]

	hullLag := math.Abs(lastVal - last(HMA(values, 16)))
	wmaLag := math.Abs(lastVal - last(WMA(values, 16)))
	assert.Less(t, hullLag, wmaLag)

	zlLag := math.Abs(lastVal - last(ZLEMA(values, 21)))
	emaLag := math.Abs(lastVal - last(EMA(values, 21)))
	assert.Less(t, zlLag, emaLag)
}

func TestOBVAndRelativeVolume(t *testing.T) {
	candles := []market.Candle{
		{Close: 10, Volume: 100},
		{Close: 11, Volume: 50},
		{Close: 10.5, Volume: 20},
		{Close: 10.5, Volume: 999},
	}
	assert.Equal(t, []float64{0, 50, 30, 30}, OBV(candles))

	assert.InDelta(t, 3.0, RelativeVolume([]float64{10, 10, 10, 30}, 3, 3), 1e-12)
	assert.Equal(t, 1.0, RelativeVolume([]float64{0, 0, 5}, 2, 2))
	assert.Equal(t, 1.0, RelativeVolume(nil, 0, 20))
}

func TestClassicPivots(t *testing.T) {
	p := ClassicPivots(market.Candle{High: 110, Low: 90, Close: 100})
	assert.Equal(t, PivotLevels{P: 100, R1: 110, R2: 120, R3: 130, S1: 90, S2: 80, S3: 70}, p)
}

func TestProfiles(t *testing.T) {
	for _, name := range ProfileNames() {
		p, err := ProfileByName(name)
		require.NoError(t, err)
		assert.NoError(t, p.Validate(), name)
		assert.Equal(t, 200, p.EMATrend)
	}

	scalp := ScalpingProfile()
	assert.Equal(t, MACDParams{Fast: 8, Slow: 21, Signal: 5}, scalp.MACD)
	assert.Equal(t, 2.5, ReversalProfile().BollingerK)

	_, err := ProfileByName("momentum")
	assert.Error(t, err)

	bad := SwingProfile()
	bad.EMAFast = 60
	assert.Error(t, bad.Validate())
}

func TestComputeSnapshotOnTrend(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, 260)
	for i := range candles {
		x := float64(i)
		p := 100 + x*0.5 + 0.002*x*x
		candles[i] = market.Candle{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: p - 0.2, High: p + 0.4, Low: p - 0.4, Close: p, Volume: 1000}
	}

	snap := Compute(candles, SwingProfile())
	assert.Equal(t, 260, snap.Bars)
	assert.Greater(t, snap.Price, snap.EMATrend)
	assert.Greater(t, snap.EMAFast, snap.EMASlow)
	assert.Equal(t, market.Bullish, snap.MomentumBias())
	assert.Greater(t, snap.ADX.PlusDI, snap.ADX.MinusDI)
	assert.Greater(t, snap.RSI.Value, 70.0)
	assert.Len(t, snap.Series.RSI, 260)
	assert.InDelta(t, 1.0, snap.RelativeVolume, 1e-12)
}
