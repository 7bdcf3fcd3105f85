package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/scan"
	"github.com/csd2000/Trade-Flow-sub002/internal/state"
)

// Engine is the read-only view of the scan engine the monitor serves
type Engine interface {
	Analyze(ctx context.Context, symbol string, tf market.Timeframe) (*scan.Analysis, error)
	OpenPositions() []state.Position
	ActiveEpisodes() []state.AlertEpisode
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	engine Engine
	now    func() time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(engine Engine) *Handlers {
	return &Handlers{engine: engine, now: time.Now}
}

type ctxKey struct{}

// WithRequestID stores the request ID for handlers and logs
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request ID, or "unknown" outside the middleware
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return "unknown"
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: h.now().UTC(),
	})
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// Positions handles GET /positions
func (h *Handlers) Positions(w http.ResponseWriter, r *http.Request) {
	positions := h.engine.OpenPositions()
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	if positions == nil {
		positions = []state.Position{}
	}
	h.writeJSON(w, http.StatusOK, PositionsResponse{
		Timestamp: h.now().UTC(),
		Count:     len(positions),
		Positions: positions,
	})
}

// Episodes handles GET /episodes
func (h *Handlers) Episodes(w http.ResponseWriter, r *http.Request) {
	episodes := h.engine.ActiveEpisodes()
	sort.Slice(episodes, func(i, j int) bool {
		if episodes[i].Symbol != episodes[j].Symbol {
			return episodes[i].Symbol < episodes[j].Symbol
		}
		return episodes[i].Type < episodes[j].Type
	})
	if episodes == nil {
		episodes = []state.AlertEpisode{}
	}
	h.writeJSON(w, http.StatusOK, EpisodesResponse{
		Timestamp: h.now().UTC(),
		Count:     len(episodes),
		Episodes:  episodes,
	})
}
