package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)
	m := <-ch
	require.NotNil(t, m)

	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	case out.Histogram != nil:
		return float64(out.Histogram.GetSampleCount())
	}
	return 0
}

func TestObserverMethods(t *testing.T) {
	m := NewRegistry()

	m.ProviderRequest("binance", "ok", 120*time.Millisecond)
	m.ProviderRequest("binance", "ok", 80*time.Millisecond)
	m.ProviderRequest("kraken", "error", time.Second)
	m.ProviderFallback("kraken")

	assert.Equal(t, 2.0, value(t, m.ProviderRequests.WithLabelValues("binance", "ok")))
	assert.Equal(t, 1.0, value(t, m.ProviderRequests.WithLabelValues("kraken", "error")))
	assert.Equal(t, 1.0, value(t, m.ProviderFallbacks.WithLabelValues("kraken")))
	assert.Equal(t, 2.0, value(t, m.ProviderLatency.WithLabelValues("binance").(prometheus.Histogram)))
}

func TestCacheHitRatio(t *testing.T) {
	m := NewRegistry()
	m.CacheLookup(true)
	m.CacheLookup(true)
	m.CacheLookup(true)
	m.CacheLookup(false)

	assert.Equal(t, 3.0, value(t, m.CacheHits))
	assert.Equal(t, 1.0, value(t, m.CacheMisses))
	assert.InDelta(t, 0.75, value(t, m.CacheHitRatio), 1e-9)
}

func TestScanLifecycle(t *testing.T) {
	m := NewRegistry()
	m.ScanStarted()
	assert.Equal(t, 1.0, value(t, m.ActiveScans))

	m.RecordOutcome(OutcomeAnalyzed)
	m.RecordOutcome(OutcomeAnalyzed)
	m.RecordOutcome(OutcomeThrottled)
	m.RecordSignal("confirmed", "bullish")
	m.RecordExit("opposing_cross")
	m.SetOpenPositions(3)
	m.StartStepTimer("fetch").Stop("ok")
	m.ScanFinished(2 * time.Second)

	assert.Equal(t, 0.0, value(t, m.ActiveScans))
	assert.Equal(t, 1.0, value(t, m.TotalScans))
	assert.Equal(t, 2.0, value(t, m.SymbolOutcomes.WithLabelValues(OutcomeAnalyzed)))
	assert.Equal(t, 1.0, value(t, m.SymbolOutcomes.WithLabelValues(OutcomeThrottled)))
	assert.Equal(t, 1.0, value(t, m.Signals.WithLabelValues("confirmed", "bullish")))
	assert.Equal(t, 1.0, value(t, m.Exits.WithLabelValues("opposing_cross")))
	assert.Equal(t, 3.0, value(t, m.OpenPositions))
	assert.Equal(t, 1.0, value(t, m.ScanDuration))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.TotalScans.Inc()
	assert.Equal(t, 0.0, value(t, b.TotalScans))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewRegistry()
	m.ScanStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "confluence_scans_total 1")
	assert.Contains(t, string(body), "confluence_active_scans 1")
}
