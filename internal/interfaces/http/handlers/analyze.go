package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/facade"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// symbols as the providers spell them: AAPL, BTC-USD, EURUSD=X, ES=F
var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-/]{0,19}(=[XF])?$`)

// Analyze handles GET /analyze/{symbol}?timeframe=1h
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["symbol"]))
	if !symbolPattern.MatchString(symbol) {
		h.writeError(w, r, http.StatusBadRequest, "invalid_symbol",
			fmt.Sprintf("Symbol %q is not a ticker (e.g. AAPL, BTC-USD, EURUSD=X)", symbol))
		return
	}

	tfParam := r.URL.Query().Get("timeframe")
	if tfParam == "" {
		tfParam = string(market.TF1h)
	}
	tf, err := market.ParseTimeframe(tfParam)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_timeframe", err.Error())
		return
	}

	start := h.now()
	analysis, err := h.engine.Analyze(r.Context(), symbol, tf)
	if err != nil {
		status, code := http.StatusBadGateway, "analysis_failed"
		if errors.Is(err, facade.ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded) {
			status, code = http.StatusGatewayTimeout, "provider_timeout"
		}
		log.Warn().Err(err).Str("symbol", symbol).Str("request_id", RequestID(r.Context())).Msg("On-demand analysis failed")
		h.writeError(w, r, status, code, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, AnalyzeResponse{
		RequestID: RequestID(r.Context()),
		Duration:  h.now().Sub(start).String(),
		Analysis:  analysis,
	})
}
