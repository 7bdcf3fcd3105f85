package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrBudgetExhausted is returned when the daily quota is used up
	ErrBudgetExhausted = errors.New("daily budget exhausted")
	// ErrBudgetWarning is returned when usage crosses the warning threshold
	ErrBudgetWarning = errors.New("budget warning threshold exceeded")
)

// BudgetExhaustedError provides detailed information about budget exhaustion
type BudgetExhaustedError struct {
	Provider string
	Used     int64
	Limit    int64
	ETA      time.Time
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted for %s: %d/%d requests used, resets at %s",
		e.Provider, e.Used, e.Limit, e.ETA.Format("15:04 UTC"))
}

func (e *BudgetExhaustedError) Unwrap() error { return ErrBudgetExhausted }

// BudgetWarningError is informational; the request may still proceed
type BudgetWarningError struct {
	Provider  string
	Used      int64
	Limit     int64
	Threshold float64
}

func (e *BudgetWarningError) Error() string {
	utilization := float64(e.Used) / float64(e.Limit) * 100
	return fmt.Sprintf("budget warning for %s: %.1f%% used (%d/%d), threshold %.1f%%",
		e.Provider, utilization, e.Used, e.Limit, e.Threshold*100)
}

func (e *BudgetWarningError) Unwrap() error { return ErrBudgetWarning }

// Config is the daily quota of a quota-limited provider
type Config struct {
	Limit         int64   `yaml:"daily_limit"`
	ResetHour     int     `yaml:"reset_hour"`     // UTC hour the quota resets
	WarnThreshold float64 `yaml:"warn_threshold"` // fraction of limit, 0..1
}

// Tracker counts requests against a daily quota for one provider
type Tracker struct {
	mu        sync.Mutex
	provider  string
	config    Config
	used      int64
	lastReset time.Time
	now       func() time.Time
}

// NewTracker creates a tracker for provider
func NewTracker(provider string, config Config) *Tracker {
	return newTracker(provider, config, func() time.Time { return time.Now().UTC() })
}

func newTracker(provider string, config Config, now func() time.Time) *Tracker {
	if config.ResetHour < 0 || config.ResetHour > 23 {
		config.ResetHour = 0
	}
	if config.WarnThreshold <= 0 || config.WarnThreshold > 1 {
		config.WarnThreshold = 0.8
	}
	return &Tracker{
		provider:  provider,
		config:    config,
		lastReset: lastResetTime(now(), config.ResetHour),
		now:       now,
	}
}

// lastResetTime returns the most recent reset boundary at or before now
func lastResetTime(now time.Time, resetHour int) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, time.UTC)
	if now.Hour() >= resetHour {
		return today
	}
	return today.AddDate(0, 0, -1)
}

// rollover resets the counter once a day boundary has passed. Caller holds mu.
func (t *Tracker) rollover() {
	now := t.now()
	if !now.Before(t.lastReset.Add(24 * time.Hour)) {
		t.used = 0
		t.lastReset = lastResetTime(now, t.config.ResetHour)
	}
}

// Consume records one request. It returns *BudgetExhaustedError without
// counting when the quota is spent, or *BudgetWarningError after counting
// once usage reaches the warning threshold.
func (t *Tracker) Consume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	if t.config.Limit <= 0 {
		return nil
	}
	if t.used >= t.config.Limit {
		return &BudgetExhaustedError{
			Provider: t.provider,
			Used:     t.used,
			Limit:    t.config.Limit,
			ETA:      t.lastReset.Add(24 * time.Hour),
		}
	}
	t.used++
	if float64(t.used)/float64(t.config.Limit) >= t.config.WarnThreshold {
		return &BudgetWarningError{
			Provider:  t.provider,
			Used:      t.used,
			Limit:     t.config.Limit,
			Threshold: t.config.WarnThreshold,
		}
	}
	return nil
}

// Stats represents budget tracker statistics
type Stats struct {
	Provider    string    `json:"provider"`
	Limit       int64     `json:"limit"`
	Used        int64     `json:"used"`
	Remaining   int64     `json:"remaining"`
	NextReset   time.Time `json:"next_reset"`
	IsWarning   bool      `json:"is_warning"`
	IsExhausted bool      `json:"is_exhausted"`
}

// Stats returns current usage
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	s := Stats{
		Provider:  t.provider,
		Limit:     t.config.Limit,
		Used:      t.used,
		Remaining: t.config.Limit - t.used,
		NextReset: t.lastReset.Add(24 * time.Hour),
	}
	if t.config.Limit > 0 {
		s.IsWarning = float64(t.used)/float64(t.config.Limit) >= t.config.WarnThreshold
		s.IsExhausted = t.used >= t.config.Limit
	}
	return s
}
