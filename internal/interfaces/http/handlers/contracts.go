package handlers

import (
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/scan"
	"github.com/csd2000/Trade-Flow-sub002/internal/state"
)

// ErrorResponse is the body of every non-2xx JSON reply
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type PositionsResponse struct {
	Timestamp time.Time        `json:"timestamp"`
	Count     int              `json:"count"`
	Positions []state.Position `json:"positions"`
}

type EpisodesResponse struct {
	Timestamp time.Time            `json:"timestamp"`
	Count     int                  `json:"count"`
	Episodes  []state.AlertEpisode `json:"episodes"`
}

// AnalyzeResponse wraps one on-demand analysis. It never changes position
// or alert state.
type AnalyzeResponse struct {
	RequestID string         `json:"request_id"`
	Duration  string         `json:"duration"`
	Analysis  *scan.Analysis `json:"analysis"`
}
