package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Registry holds the engine's Prometheus metrics on its own registry so
// tests and multiple engines never collide on the global one
type Registry struct {
	reg *prometheus.Registry

	// Step duration metrics
	StepDuration *prometheus.HistogramVec

	// Scan metrics
	TotalScans     prometheus.Counter
	ActiveScans    prometheus.Gauge
	ScanDuration   prometheus.Histogram
	SymbolOutcomes *prometheus.CounterVec
	Signals        *prometheus.CounterVec
	Exits          *prometheus.CounterVec
	OpenPositions  prometheus.Gauge

	// Data layer metrics
	ProviderRequests  *prometheus.CounterVec
	ProviderLatency   *prometheus.HistogramVec
	ProviderFallbacks *prometheus.CounterVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	CacheHitRatio     prometheus.Gauge
}

// Outcome labels for SymbolOutcomes
const (
	OutcomeAnalyzed     = "analyzed"
	OutcomeInsufficient = "insufficient"
	OutcomeSignaled     = "signaled"
	OutcomeEmitted      = "emitted"
	OutcomeThrottled    = "throttled"
	OutcomeError        = "error"
)

func NewRegistry() *Registry {
	m := &Registry{
		reg: prometheus.NewRegistry(),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confluence_step_duration_seconds",
				Help:    "Duration of each per-symbol analysis step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"step", "result"},
		),

		TotalScans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_scans_total",
			Help: "Total number of scans initiated",
		}),
		ActiveScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_active_scans",
			Help: "Number of currently running scans",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "confluence_scan_duration_seconds",
			Help:    "Wall time of a full scan",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SymbolOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_symbol_outcomes_total",
			Help: "Per-symbol scan outcomes",
		}, []string{"outcome"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_signals_total",
			Help: "Signals assembled by tier and direction",
		}, []string{"tier", "direction"}),
		Exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_exits_total",
			Help: "Position exits by reason",
		}, []string{"reason"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_open_positions",
			Help: "Positions currently OPEN",
		}),

		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_provider_requests_total",
			Help: "Market data provider calls by outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "confluence_provider_latency_seconds",
			Help:    "Market data provider call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		ProviderFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_provider_fallbacks_total",
			Help: "Times a provider failed and the next one was tried",
		}, []string{"provider"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_cache_hits_total",
			Help: "Candle cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_cache_misses_total",
			Help: "Candle cache misses",
		}),
		CacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_cache_hit_ratio",
			Help: "Current cache hit ratio (0.0 to 1.0)",
		}),
	}

	m.reg.MustRegister(
		m.StepDuration,
		m.TotalScans,
		m.ActiveScans,
		m.ScanDuration,
		m.SymbolOutcomes,
		m.Signals,
		m.Exits,
		m.OpenPositions,
		m.ProviderRequests,
		m.ProviderLatency,
		m.ProviderFallbacks,
		m.CacheHits,
		m.CacheMisses,
		m.CacheHitRatio,
		collectors.NewGoCollector(),
	)
	return m
}

// Gatherer exposes the underlying registry
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

// Handler serves the registry in the Prometheus text format
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// StepTimer tracks execution time for one analysis step
type StepTimer struct {
	metrics *Registry
	step    string
	start   time.Time
}

func (m *Registry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: m, step: step, start: time.Now()}
}

// Stop records the step under result
func (st *StepTimer) Stop(result string) {
	duration := time.Since(st.start)
	st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())

	log.Debug().
		Str("step", st.step).
		Str("result", result).
		Dur("duration", duration).
		Msg("Analysis step completed")
}

func (m *Registry) ScanStarted() {
	m.TotalScans.Inc()
	m.ActiveScans.Inc()
}

func (m *Registry) ScanFinished(d time.Duration) {
	m.ActiveScans.Dec()
	m.ScanDuration.Observe(d.Seconds())
}

func (m *Registry) RecordOutcome(outcome string) {
	m.SymbolOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Registry) RecordSignal(tier, direction string) {
	m.Signals.WithLabelValues(tier, direction).Inc()
}

func (m *Registry) RecordExit(reason string) {
	m.Exits.WithLabelValues(reason).Inc()
}

func (m *Registry) SetOpenPositions(n int) {
	m.OpenPositions.Set(float64(n))
}

// ProviderRequest implements facade.Observer
func (m *Registry) ProviderRequest(provider, outcome string, latency time.Duration) {
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// ProviderFallback implements facade.Observer
func (m *Registry) ProviderFallback(provider string) {
	m.ProviderFallbacks.WithLabelValues(provider).Inc()
	log.Debug().Str("provider", provider).Msg("Provider fallback recorded")
}

// CacheLookup implements facade.Observer
func (m *Registry) CacheLookup(hit bool) {
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
	m.updateCacheHitRatio()
}

func (m *Registry) updateCacheHitRatio() {
	hits, misses := counterValue(m.CacheHits), counterValue(m.CacheMisses)
	if total := hits + misses; total > 0 {
		m.CacheHitRatio.Set(hits / total)
	}
}

func counterValue(c prometheus.Counter) float64 {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}
