package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter provides per-provider token buckets. Providers without an explicit
// limit share the default rate.
type Limiter struct {
	mu        sync.RWMutex
	limiters  map[string]*rate.Limiter
	overrides map[string]Limit
	fallback  Limit
}

// Limit is a token-bucket rate and burst
type Limit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// NewLimiter creates a limiter whose unknown keys get rps/burst
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters:  make(map[string]*rate.Limiter),
		overrides: make(map[string]Limit),
		fallback:  Limit{RPS: rps, Burst: burst},
	}
}

// Configure sets the rate for one key, replacing any bucket already built
func (l *Limiter) Configure(key string, limit Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.overrides[key] = limit
	delete(l.limiters, key)
}

// getLimiter returns or creates the bucket for key
func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	lim, ok := l.overrides[key]
	if !ok {
		lim = l.fallback
	}
	r := rate.Limit(lim.RPS)
	if lim.RPS <= 0 {
		r = rate.Inf
	}
	burst := lim.Burst
	if burst < 1 {
		burst = 1
	}
	limiter = rate.NewLimiter(r, burst)
	l.limiters[key] = limiter
	return limiter
}

// Allow returns true if a request for key may go now
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.getLimiter(key).Wait(ctx)
}

// Stats returns statistics for every bucket created so far
func (l *Limiter) Stats() map[string]LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]LimiterStats, len(l.limiters))
	now := time.Now()
	for key, limiter := range l.limiters {
		reservation := limiter.ReserveN(now, 1)
		delay := reservation.DelayFrom(now)
		reservation.CancelAt(now) // only peeking

		stats[key] = LimiterStats{
			Key:             key,
			RPS:             float64(limiter.Limit()),
			Burst:           limiter.Burst(),
			TokensAvailable: limiter.TokensAt(now),
			Delay:           delay,
		}
	}
	return stats
}

// LimiterStats describes one bucket
type LimiterStats struct {
	Key             string        `json:"key"`
	RPS             float64       `json:"rps"`
	Burst           int           `json:"burst"`
	TokensAvailable float64       `json:"tokens_available"`
	Delay           time.Duration `json:"delay"`
}

// IsThrottled returns true if the next request would have to wait
func (s *LimiterStats) IsThrottled() bool {
	return s.Delay > 0
}

// Pacer spaces successive calls at least interval apart. The scan loop uses
// it to keep a small gap between symbols.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer; a non-positive interval disables pacing
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next slot or until ctx is done
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
