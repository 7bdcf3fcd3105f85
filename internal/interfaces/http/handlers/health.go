package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/circuit"
)

// ProviderSource reports the candle provider chain and its breakers.
// *facade.Adapter implements it.
type ProviderSource interface {
	Providers() []string
	Breakers() map[string]circuit.Stats
}

// PoolSource exposes the outbound HTTP pool counters
type PoolSource interface {
	Stats() httpclient.Stats
}

// HealthHandler provides system health status endpoint
type HealthHandler struct {
	providers ProviderSource
	pool      PoolSource
	engine    Engine
	startTime time.Time
	version   string
	now       func() time.Time
}

// NewHealthHandler creates a new health handler; providers may be nil
func NewHealthHandler(providers ProviderSource, engine Engine, version string) *HealthHandler {
	return &HealthHandler{
		providers: providers,
		engine:    engine,
		startTime: time.Now(),
		version:   version,
		now:       time.Now,
	}
}

// WithPool adds the outbound pool to the report
func (h *HealthHandler) WithPool(p PoolSource) *HealthHandler {
	h.pool = p
	return h
}

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Version   string    `json:"version"`

	System        SystemInfo             `json:"system"`
	Providers     []ProviderStatus       `json:"providers"`
	HTTP          *httpclient.Stats      `json:"http,omitempty"`
	OpenPositions int                    `json:"open_positions"`
	Episodes      int                    `json:"active_episodes"`
	Checks        map[string]CheckResult `json:"checks"`
}

// SystemInfo provides system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_bytes"`
	MemSys        uint64 `json:"mem_sys_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// ProviderStatus is one provider in chain order with its breaker state
type ProviderStatus struct {
	Name    string        `json:"name"`
	Breaker circuit.Stats `json:"breaker"`
}

// CheckResult represents individual health check results
type CheckResult struct {
	Status  string `json:"status"` // pass, warn, fail
	Message string `json:"message"`
}

// ServeHTTP implements the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := h.gatherHealthInfo()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if response.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// gatherHealthInfo collects all health information
func (h *HealthHandler) gatherHealthInfo() HealthResponse {
	now := h.now()
	response := HealthResponse{
		Timestamp: now.UTC(),
		Uptime:    now.Sub(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		System:    systemInfo(),
		Providers: []ProviderStatus{},
		Checks:    make(map[string]CheckResult),
	}
	if h.engine != nil {
		response.OpenPositions = len(h.engine.OpenPositions())
		response.Episodes = len(h.engine.ActiveEpisodes())
	}
	if h.providers != nil {
		stats := h.providers.Breakers()
		for _, name := range h.providers.Providers() {
			st, ok := stats[name]
			if !ok {
				// breakers are created on first use
				st = circuit.Stats{Name: name, State: "closed"}
			}
			response.Providers = append(response.Providers, ProviderStatus{Name: name, Breaker: st})
		}
		response.Checks["providers"] = providerCheck(response.Providers)
	}
	if h.pool != nil {
		st := h.pool.Stats()
		response.HTTP = &st
		response.Checks["http_pool"] = poolCheck(st)
	}
	response.Checks["goroutines"] = goroutineCheck(response.System.NumGoroutines)

	response.Status = overallStatus(response.Checks)
	return response
}

func systemInfo() SystemInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemAlloc:      memStats.Alloc,
		MemSys:        memStats.Sys,
		NumGC:         memStats.NumGC,
	}
}

// providerCheck fails when every breaker is open and warns when any is
func providerCheck(providers []ProviderStatus) CheckResult {
	if len(providers) == 0 {
		return CheckResult{Status: "fail", Message: "No providers configured"}
	}
	open := 0
	for _, p := range providers {
		if p.Breaker.State == "open" {
			open++
		}
	}
	switch {
	case open == len(providers):
		return CheckResult{Status: "fail", Message: "All provider breakers open"}
	case open > 0:
		return CheckResult{Status: "warn", Message: fmt.Sprintf("%d/%d provider breakers open", open, len(providers))}
	}
	return CheckResult{Status: "pass", Message: fmt.Sprintf("%d providers available", len(providers))}
}

// poolCheck warns once half of a meaningful sample of requests has failed
func poolCheck(st httpclient.Stats) CheckResult {
	if st.Requests >= 10 && st.Failures*2 >= st.Requests {
		return CheckResult{Status: "warn", Message: fmt.Sprintf("%d of %d outbound requests failed", st.Failures, st.Requests)}
	}
	return CheckResult{Status: "pass", Message: fmt.Sprintf("%d outbound requests, %d in flight", st.Requests, st.InFlight)}
}

func goroutineCheck(n int) CheckResult {
	if n > 1000 {
		return CheckResult{Status: "warn", Message: fmt.Sprintf("High goroutine count: %d", n)}
	}
	return CheckResult{Status: "pass", Message: fmt.Sprintf("Goroutine count normal: %d", n)}
}

func overallStatus(checks map[string]CheckResult) string {
	status := StatusHealthy
	for _, c := range checks {
		switch c.Status {
		case "fail":
			return StatusUnhealthy
		case "warn":
			status = StatusDegraded
		}
	}
	return status
}
