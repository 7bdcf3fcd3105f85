package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned when a provider's breaker rejects the call
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Config controls when a provider breaker trips and how it recovers
type Config struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`  // consecutive failures to open
	ErrorRatePct     float64       `yaml:"error_rate_pct"`     // failure rate to open once MinRequests seen
	MinRequests      uint32        `yaml:"min_requests"`       // requests before the rate rule applies
	HalfOpenRequests uint32        `yaml:"half_open_requests"` // probes allowed while half-open
	Interval         time.Duration `yaml:"interval"`           // closed-state count reset period
	Timeout          time.Duration `yaml:"timeout"`            // open duration before half-open
}

// DefaultConfig returns breaker settings suited to public market-data APIs
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ErrorRatePct:     50,
		MinRequests:      10,
		HalfOpenRequests: 1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
	}
}

// Stats is a point-in-time view of one breaker
type Stats struct {
	Name                string  `json:"name"`
	State               string  `json:"state"`
	Requests            uint32  `json:"requests"`
	TotalFailures       uint32  `json:"total_failures"`
	ConsecutiveFailures uint32  `json:"consecutive_failures"`
	ErrorRate           float64 `json:"error_rate"`
}

// Manager lazily creates one gobreaker per provider name
type Manager struct {
	mu       sync.RWMutex
	config   Config
	breakers map[string]*gobreaker.CircuitBreaker
	onChange func(name string, from, to gobreaker.State)
}

// NewManager creates a breaker manager sharing one config across providers
func NewManager(config Config) *Manager {
	return &Manager{
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// OnStateChange registers a hook called on every breaker transition. Must be
// set before the first Call.
func (m *Manager) OnStateChange(fn func(name string, from, to gobreaker.State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *Manager) breaker(name string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	cfg := m.config
	hook := m.onChange
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.FailureThreshold > 0 && counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if cfg.MinRequests > 0 && counts.Requests >= cfg.MinRequests {
				rate := float64(counts.TotalFailures) / float64(counts.Requests) * 100
				return rate >= cfg.ErrorRatePct
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up is not the provider's fault
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
			if hook != nil {
				hook(name, from, to)
			}
		},
	})
	m.breakers[name] = cb
	return cb
}

// Call runs fn through the named breaker. Rejections are reported as
// ErrCircuitOpen so callers can fall through to the next provider.
func (m *Manager) Call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	_, err := m.breaker(name).Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", name, ErrCircuitOpen)
	}
	return err
}

// State returns the breaker state for name, "closed" if never used
func (m *Manager) State(name string) string {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

// Stats returns a snapshot of every breaker created so far
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stats, len(m.breakers))
	for name, cb := range m.breakers {
		counts := cb.Counts()
		var rate float64
		if counts.Requests > 0 {
			rate = float64(counts.TotalFailures) / float64(counts.Requests) * 100
		}
		out[name] = Stats{
			Name:                name,
			State:               cb.State().String(),
			Requests:            counts.Requests,
			TotalFailures:       counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
			ErrorRate:           rate,
		}
	}
	return out
}
