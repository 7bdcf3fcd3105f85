package narrative

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/patterns"
)

// Input is what a generator sees about one symbol
type Input struct {
	Symbol     string
	Timeframe  market.Timeframe
	Direction  market.Direction
	Confidence float64 // technical confidence, 0..100
	Sentiment  float64 // fear & greed, 0..100
	Snapshot   *indicators.Snapshot
	Patterns   patterns.Report
}

// Narrative is a probability estimate with a short explanation
type Narrative struct {
	Probability float64 `json:"probability"` // 0..100
	Summary     string  `json:"summary"`
	Source      string  `json:"source"`
}

// Generator estimates the probability that the setup plays out
type Generator interface {
	Probability(ctx context.Context, in Input) (Narrative, error)
}

// RuleBased scores a setup from the indicator snapshot alone. It is
// deterministic and never returns an error or an empty summary.
type RuleBased struct{}

func (RuleBased) Probability(_ context.Context, in Input) (Narrative, error) {
	p := clamp(in.Confidence, 0, 100)
	var notes []string

	sign := in.Direction.Sign()
	if s := in.Snapshot; s != nil && sign != 0 {
		if s.ADX.ADX >= 25 {
			p += 5
			notes = append(notes, fmt.Sprintf("ADX %.0f trending", s.ADX.ADX))
		} else if s.ADX.ADX > 0 && s.ADX.ADX < 15 {
			p -= 5
			notes = append(notes, fmt.Sprintf("ADX %.0f ranging", s.ADX.ADX))
		}
		if s.MACD.Histogram*sign > 0 {
			p += 5
			notes = append(notes, "MACD histogram aligned")
		} else if s.MACD.Histogram*sign < 0 {
			p -= 5
			notes = append(notes, "MACD histogram against")
		}
		// stretched oscillator in the trade direction
		if rsi := s.RSI.Value; sign > 0 && rsi >= 75 || sign < 0 && rsi <= 25 {
			p -= 10
			notes = append(notes, fmt.Sprintf("RSI %.0f stretched", rsi))
		}
		if s.RelativeVolume >= 1.5 {
			p += 5
			notes = append(notes, fmt.Sprintf("RVOL %.1f", s.RelativeVolume))
		}
	}
	if dir, strength := in.Patterns.Dominant(); dir != market.Neutral && sign != 0 {
		if dir == in.Direction {
			p += math.Min(10, 5*strength)
			notes = append(notes, "pattern evidence agrees")
		} else {
			p -= math.Min(10, 5*strength)
			notes = append(notes, "pattern evidence disagrees")
		}
	}

	p = clamp(p, 0, 100)
	summary := fmt.Sprintf("%s %s setup, estimated %.0f%%", in.Symbol, in.Direction, p)
	if len(notes) > 0 {
		summary += ": " + strings.Join(notes, ", ")
	}
	return Narrative{Probability: p, Summary: summary, Source: "rule_based"}, nil
}

// WithFallback uses primary and drops to fallback on any error, so callers
// always receive a narrative
func WithFallback(primary, fallback Generator) Generator {
	if primary == nil {
		return fallback
	}
	return &fallbackGenerator{primary: primary, fallback: fallback}
}

type fallbackGenerator struct {
	primary  Generator
	fallback Generator
}

func (g *fallbackGenerator) Probability(ctx context.Context, in Input) (Narrative, error) {
	n, err := g.primary.Probability(ctx, in)
	if err == nil && n.Summary != "" {
		return n, nil
	}
	log.Debug().Err(err).Str("symbol", in.Symbol).Msg("Narrative generator failed, using rule-based fallback")
	return g.fallback.Probability(ctx, in)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
