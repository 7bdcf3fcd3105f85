package scan

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/facade"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/patterns"
	"github.com/csd2000/Trade-Flow-sub002/internal/gates"
	"github.com/csd2000/Trade-Flow-sub002/internal/narrative"
	"github.com/csd2000/Trade-Flow-sub002/internal/sentiment"
	"github.com/csd2000/Trade-Flow-sub002/internal/signal"
)

// Analyze reads one symbol without touching position or alert state.
// Insufficient data is a result, not an error.
func (e *Engine) Analyze(ctx context.Context, symbol string, tf market.Timeframe) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.SymbolTimeout)
	defer cancel()

	b := batch{sent: e.sentiment.Score(ctx), profiles: e.evaluator.Router().Resolve()}
	if market.Classify(symbol) == market.Forex {
		b.macro = e.macroContext(ctx, tf)
	}
	return e.analyze(ctx, symbol, tf, b)
}

// batch is the context shared by every symbol of one scan
type batch struct {
	macro    *gates.MacroContext
	sent     float64
	profiles gates.ProfileSet
}

func (e *Engine) analyze(ctx context.Context, symbol string, tf market.Timeframe, b batch) (*Analysis, error) {
	a := &Analysis{Symbol: symbol, Timeframe: tf, Class: market.Classify(symbol), Sentiment: b.sent, Timestamp: e.now()}

	timer := e.metrics.StartStepTimer("fetch")
	fetched, err := e.source.Fetch(ctx, symbol, tf)
	if fetched != nil {
		a.Provider, a.Quality, a.Bars = fetched.Provider, fetched.Quality, len(fetched.Candles)
		if fetched.Class != "" {
			a.Class = fetched.Class
		}
	}
	switch {
	case errors.Is(err, facade.ErrInsufficientData):
		timer.Stop("insufficient")
		a.InsufficientData, a.Reason = true, err.Error()
		log.Debug().Str("symbol", symbol).Str("timeframe", string(tf)).Err(err).Msg("Insufficient data")
		return a, nil
	case err != nil:
		timer.Stop("error")
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, tf, err)
	}
	timer.Stop("ok")

	candles := fetched.Candles
	if len(candles) < e.config.MinBars {
		a.InsufficientData = true
		a.Reason = fmt.Sprintf("%d closed bars, need %d", len(candles), e.config.MinBars)
		return a, nil
	}
	if a.Quality.Malformed {
		log.Warn().Str("symbol", symbol).Str("provider", a.Provider).Err(ErrMalformedSeries).Msg("Analyzing flagged series")
	}

	timer = e.metrics.StartStepTimer("indicators")
	snap := indicators.Compute(candles, e.profile)
	a.Snapshot, a.last = snap, candles[len(candles)-1]
	timer.Stop("ok")

	timer = e.metrics.StartStepTimer("patterns")
	a.Patterns = patterns.DetectAll(candles, snap.Series.RSI, e.patternCfg)
	a.OrderFlow = e.flow.Estimate(candles, a.Patterns.SweepIndices())
	timer.Stop("ok")

	timer = e.metrics.StartStepTimer("gates")
	res := e.evaluator.Evaluate(gates.Inputs{
		Symbol:    symbol,
		Class:     a.Class,
		Timestamp: a.last.Timestamp,
		Snapshot:  snap,
		Patterns:  a.Patterns,
		OrderFlow: a.OrderFlow,
		Macro:     b.macro,
		Profiles:  b.profiles,
	}, a.Quality)
	a.Confluence = res
	timer.Stop(string(res.Tier))

	dir, trigger := e.entryTrigger(res, snap)
	scoreDir := dir
	if scoreDir == market.Neutral {
		scoreDir = res.TradeDirection()
	}

	nar, err := e.narrative.Probability(ctx, narrative.Input{
		Symbol:     symbol,
		Timeframe:  tf,
		Direction:  scoreDir,
		Confidence: res.Confidence,
		Sentiment:  b.sent,
		Snapshot:   snap,
		Patterns:   a.Patterns,
	})
	if err != nil {
		// the fallback chain ends in the rule-based generator, which never fails
		log.Warn().Err(err).Str("symbol", symbol).Msg("Narrative unavailable")
	}
	a.Narrative = nar
	a.FinalScore = e.blend(res.Confidence, nar.Probability, b.sent, scoreDir)

	log.Debug().
		Str("symbol", symbol).
		Str("timeframe", string(tf)).
		Str("provider", a.Provider).
		Str("tier", string(res.Tier)).
		Float64("confidence", res.Confidence).
		Float64("final_score", a.FinalScore).
		Msg(res.Summary())

	if dir == market.Neutral {
		return a, nil
	}
	sig, err := e.assembler.Assemble(signal.Input{
		Symbol:     symbol,
		Timeframe:  tf,
		Class:      a.Class,
		Trigger:    trigger,
		Direction:  dir,
		Result:     res,
		Snapshot:   snap,
		Patterns:   a.Patterns,
		Quality:    a.Quality,
		Provider:   a.Provider,
		FinalScore: a.FinalScore,
		Notes: []string{
			sentiment.Describe(b.sent, e.sentCfg),
			fmt.Sprintf("narrative (%s): %s", nar.Source, nar.Summary),
		},
		Timestamp: a.last.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", symbol, err)
	}
	a.Signal = sig
	return a, nil
}

// entryTrigger decides whether the bar qualifies as an entry: a confirmed
// confluence result, or the secondary cross rule (fast/slow EMA cross with
// the MACD histogram and the trend EMA on the same side)
func (e *Engine) entryTrigger(res *gates.ConfluenceResult, snap *indicators.Snapshot) (market.Direction, signal.Trigger) {
	if res.Tier == gates.TierConfirmed {
		if dir := res.TradeDirection(); dir != market.Neutral {
			return dir, signal.TriggerConfirmed
		}
	}
	if !e.config.CrossEntries {
		return market.Neutral, ""
	}
	switch {
	case snap.EMACrossUp() && snap.MACD.Histogram > 0 && snap.Price > snap.EMATrend:
		return market.Bullish, signal.TriggerCross
	case snap.EMACrossDown() && snap.MACD.Histogram < 0 && snap.Price < snap.EMATrend:
		return market.Bearish, signal.TriggerCross
	}
	return market.Neutral, ""
}

// blend combines technical confidence, the narrative probability and the
// sentiment adjustment into a 0..100 score
func (e *Engine) blend(confidence, ai, sent float64, dir market.Direction) float64 {
	w := e.config.Scoring
	score := w.TechWeight*confidence + w.AIWeight*ai + w.SentimentWeight*sentiment.Adjustment(sent, dir, e.sentCfg)
	return math.Round(math.Max(0, math.Min(100, score))*10) / 10
}

// macroForBatch fetches the currency index once when the batch holds any
// forex symbol
func (e *Engine) macroForBatch(ctx context.Context, symbols []string, tf market.Timeframe) *gates.MacroContext {
	for _, s := range symbols {
		if market.Classify(s) == market.Forex {
			ctx, cancel := context.WithTimeout(ctx, e.config.SymbolTimeout)
			defer cancel()
			return e.macroContext(ctx, tf)
		}
	}
	return nil
}

// macroContext reads the currency index trend. A failed fetch leaves the
// macro gate failing rather than failing the symbol.
func (e *Engine) macroContext(ctx context.Context, tf market.Timeframe) *gates.MacroContext {
	ref := e.config.CurrencyIndex
	fetched, err := e.source.Fetch(ctx, ref, tf)
	if err != nil || fetched == nil || len(fetched.Candles) < e.config.MinBars {
		log.Warn().Err(err).Str("symbol", ref).Str("timeframe", string(tf)).Msg("Currency index unavailable, macro gate will fail")
		return nil
	}
	return gates.NewMacroContext(ref, indicators.Compute(fetched.Candles, e.profile))
}
