package validate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func bars(n int, step time.Duration) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		p := 100 + float64(i)*0.3
		out[i] = market.Candle{
			Timestamp: t0.Add(time.Duration(i) * step),
			Open:      p,
			High:      p + 0.5,
			Low:       p - 0.5,
			Close:     p + 0.1,
			Volume:    1000,
		}
	}
	return out
}

func TestCleanSortsAndDropsDuplicates(t *testing.T) {
	in := bars(5, time.Hour)
	in[1], in[3] = in[3], in[1]
	in = append(in, in[0]) // exact duplicate timestamp

	v := NewValidator(DefaultAnomalyConfig())
	out, report := v.Clean(in)

	require.Len(t, out, 5)
	for i := 1; i < len(out); i++ {
		assert.True(t, out[i].Timestamp.After(out[i-1].Timestamp))
	}
	assert.True(t, report.Reordered)
	assert.Equal(t, 1, report.Duplicates)
	assert.True(t, report.Malformed())
}

func TestCleanLeavesInputUntouched(t *testing.T) {
	in := bars(4, time.Hour)
	in[0], in[2] = in[2], in[0]
	first := in[0].Timestamp

	NewValidator(DefaultAnomalyConfig()).Clean(in)
	assert.Equal(t, first, in[0].Timestamp)
}

func TestCleanDropsNonFiniteAndRepairsInvertedBars(t *testing.T) {
	in := bars(4, time.Hour)
	in[1].Close = math.NaN()
	in[2].High, in[2].Low = in[2].Low, in[2].High

	out, report := NewValidator(DefaultAnomalyConfig()).Clean(in)
	require.Len(t, out, 3)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 1, report.Inverted)
	for _, c := range out {
		assert.GreaterOrEqual(t, c.High, c.Low)
	}
}

func TestCleanHealthySeriesIsNotMalformed(t *testing.T) {
	out, report := NewValidator(DefaultAnomalyConfig()).Clean(bars(50, time.Hour))
	assert.Len(t, out, 50)
	assert.False(t, report.Malformed())
	assert.Empty(t, report.Spikes)
}

func TestAnomalySpikeDetected(t *testing.T) {
	in := bars(40, time.Hour)
	in[35].Close = in[34].Close * 3
	in[35].High = in[35].Close

	spikes := NewAnomalyChecker(DefaultAnomalyConfig()).Spikes(in)
	assert.Contains(t, spikes, 35)
}

func TestFlagsLatencyThresholds(t *testing.T) {
	sc := NewStalenessChecker(DefaultStalenessConfig())
	series := bars(10, time.Hour)
	now := series[9].Timestamp.Add(time.Hour)

	fast := sc.Flags(series, market.TF1h, 200*time.Millisecond, now)
	assert.False(t, fast.IsDelayed)
	assert.False(t, fast.RateLimitHit)

	slow := sc.Flags(series, market.TF1h, 6*time.Second, now)
	assert.True(t, slow.IsDelayed)
	assert.False(t, slow.RateLimitHit)

	throttled := sc.Flags(series, market.TF1h, 11*time.Second, now)
	assert.True(t, throttled.IsDelayed)
	assert.True(t, throttled.RateLimitHit)
}

func TestFlagsStaleness(t *testing.T) {
	sc := NewStalenessChecker(DefaultStalenessConfig())
	series := bars(10, time.Hour)
	expectedClose := series[9].Timestamp.Add(time.Hour)

	assert.False(t, sc.Flags(series, market.TF1h, 0, expectedClose.Add(30*time.Second)).IsStale)
	assert.True(t, sc.Flags(series, market.TF1h, 0, expectedClose.Add(2*time.Minute)).IsStale)
}

func TestFlagsGaps(t *testing.T) {
	sc := NewStalenessChecker(DefaultStalenessConfig())
	series := bars(10, time.Hour)
	now := series[9].Timestamp.Add(time.Hour)
	assert.False(t, sc.Flags(series, market.TF1h, 0, now).HasGaps)

	for i := 5; i < len(series); i++ {
		series[i].Timestamp = series[i].Timestamp.Add(5 * time.Hour)
	}
	now = series[9].Timestamp.Add(time.Hour)
	assert.True(t, sc.Flags(series, market.TF1h, 0, now).HasGaps)
}
