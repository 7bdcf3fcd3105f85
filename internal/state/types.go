package state

import (
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// Status is the position track state
type Status string

const (
	Flat Status = "FLAT"
	Open Status = "OPEN"
)

// Position is the per-symbol position record. Entry fields are only
// meaningful while Open.
type Position struct {
	Symbol     string           `json:"symbol"`
	Status     Status           `json:"status"`
	Direction  market.Direction `json:"direction,omitempty"`
	EntryPrice float64          `json:"entry_price,omitempty"`
	EntryTime  time.Time        `json:"entry_time,omitempty"`
	ExitPrice  float64          `json:"exit_price,omitempty"`
	ExitTime   time.Time        `json:"exit_time,omitempty"`
	ExitReason string           `json:"exit_reason,omitempty"`
}

// Transition reports what an Enter or Exit did. Applied is false for the
// no-op cases: entering while OPEN, exiting while FLAT.
type Transition struct {
	Symbol   string   `json:"symbol"`
	From     Status   `json:"from"`
	To       Status   `json:"to"`
	Applied  bool     `json:"applied"`
	Position Position `json:"position"`
}

// EpisodeKey identifies an alert stream
type EpisodeKey struct {
	Symbol string
	Type   string
}

// AlertEpisode groups same-key alerts inside one throttle window
type AlertEpisode struct {
	Symbol          string      `json:"symbol"`
	Type            string      `json:"type"`
	WindowStart     time.Time   `json:"window_start"`
	LastSeen        time.Time   `json:"last_seen"`
	Suppressed      []time.Time `json:"suppressed"`       // most recent MaxSuppressed
	SuppressedCount int         `json:"suppressed_count"` // all-time for the episode
}

func (e *AlertEpisode) clone() AlertEpisode {
	c := *e
	c.Suppressed = append([]time.Time(nil), e.Suppressed...)
	return c
}

// AlertDecision is the outcome of recording one alert
type AlertDecision struct {
	Emit    bool         `json:"emit"`
	Episode AlertEpisode `json:"episode"`
}
