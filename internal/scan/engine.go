package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/facade"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/orderflow"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/patterns"
	"github.com/csd2000/Trade-Flow-sub002/internal/exits"
	"github.com/csd2000/Trade-Flow-sub002/internal/gates"
	"github.com/csd2000/Trade-Flow-sub002/internal/metrics"
	"github.com/csd2000/Trade-Flow-sub002/internal/narrative"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/ratelimit"
	"github.com/csd2000/Trade-Flow-sub002/internal/sentiment"
	"github.com/csd2000/Trade-Flow-sub002/internal/signal"
	"github.com/csd2000/Trade-Flow-sub002/internal/state"
)

// Progress receives per-symbol scan progress
type Progress interface {
	Start(scanID string, total int)
	Advance(symbol, outcome string)
	Finish(totals Totals)
}

type nopProgress struct{}

func (nopProgress) Start(string, int)      {}
func (nopProgress) Advance(string, string) {}
func (nopProgress) Finish(Totals)          {}

// Engine runs the per-symbol pipeline: fetch, indicators, patterns, order
// flow, gates, exits, entries and alert throttling
type Engine struct {
	config     Config
	source     facade.CandleSource
	store      *state.Store
	profile    indicators.Profile
	patternCfg patterns.Config
	flow       *orderflow.Estimator
	evaluator  *gates.Evaluator
	exits      *exits.ExitEvaluator
	assembler  *signal.Assembler
	sentiment  sentiment.Provider
	sentCfg    sentiment.Config
	narrative  narrative.Generator
	metrics    *metrics.Registry
	progress   Progress
	pacer      *ratelimit.Pacer
	now        func() time.Time
}

type Option func(*Engine)

func WithEvaluator(e *gates.Evaluator) Option     { return func(en *Engine) { en.evaluator = e } }
func WithExitConfig(c *exits.ExitConfig) Option   { return func(en *Engine) { en.exits = exits.NewExitEvaluator(c) } }
func WithAssembler(a *signal.Assembler) Option    { return func(en *Engine) { en.assembler = a } }
func WithPatternConfig(c patterns.Config) Option  { return func(en *Engine) { en.patternCfg = c } }
func WithNarrative(g narrative.Generator) Option  { return func(en *Engine) { en.narrative = g } }
func WithMetrics(m *metrics.Registry) Option      { return func(en *Engine) { en.metrics = m } }
func WithProgress(p Progress) Option              { return func(en *Engine) { en.progress = p } }
func WithClock(now func() time.Time) Option       { return func(en *Engine) { en.now = now } }
func WithOrderFlow(e *orderflow.Estimator) Option { return func(en *Engine) { en.flow = e } }
func WithProfile(p indicators.Profile) Option     { return func(en *Engine) { en.profile = p } }

// WithSentiment sets the fear & greed source and the bands used to turn
// it into a score adjustment
func WithSentiment(p sentiment.Provider, cfg sentiment.Config) Option {
	return func(en *Engine) { en.sentiment, en.sentCfg = p, cfg }
}

// NewEngine wires an engine. The store is required and shared with
// whatever serves the read-only position and episode queries.
func NewEngine(config Config, source facade.CandleSource, store *state.Store, opts ...Option) (*Engine, error) {
	if source == nil || store == nil {
		return nil, errors.New("scan engine needs a candle source and a state store")
	}
	def := DefaultConfig()
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = def.MaxInFlight
	}
	if config.SymbolTimeout <= 0 {
		config.SymbolTimeout = def.SymbolTimeout
	}
	if config.MinBars <= 0 {
		config.MinBars = def.MinBars
	}
	if config.CurrencyIndex == "" {
		config.CurrencyIndex = def.CurrencyIndex
	}
	if config.Profile == "" {
		config.Profile = def.Profile
	}
	profile, err := indicators.ProfileByName(config.Profile)
	if err != nil {
		return nil, fmt.Errorf("scan engine: %w", err)
	}

	e := &Engine{
		config:     config,
		source:     source,
		store:      store,
		profile:    profile,
		patternCfg: patterns.DefaultConfig(),
		flow:       orderflow.NewEstimator(nil),
		evaluator:  gates.NewEvaluator(gates.NewGateRouterWithDefaults(), gates.DefaultGuardConfig()),
		exits:      exits.NewExitEvaluator(nil),
		assembler:  signal.NewAssembler(signal.DefaultConfig()),
		sentiment:  sentiment.Static(sentiment.Neutral),
		sentCfg:    sentiment.DefaultConfig(),
		narrative:  narrative.RuleBased{},
		progress:   nopProgress{},
		pacer:      ratelimit.NewPacer(config.Pacing),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewRegistry()
	}
	e.narrative = narrative.WithFallback(e.narrative, narrative.RuleBased{})
	return e, nil
}

// Store exposes the shared state for read-only queries
func (e *Engine) Store() *state.Store { return e.store }

// OpenPositions is a snapshot of OPEN positions
func (e *Engine) OpenPositions() []state.Position { return e.store.OpenPositions() }

// ActiveEpisodes is a snapshot of alert episodes inside their window
func (e *Engine) ActiveEpisodes() []state.AlertEpisode { return e.store.ActiveEpisodes() }

// Scan analyzes symbols with bounded concurrency. Per-symbol failures are
// collected, never returned; only the caller cancelling ctx stops the
// batch early.
func (e *Engine) Scan(ctx context.Context, symbols []string, tf market.Timeframe) *ScanResult {
	started := e.now()
	res := &ScanResult{ID: uuid.NewString(), Timeframe: tf, StartedAt: started}
	logger := log.With().Str("scan_id", res.ID).Str("timeframe", string(tf)).Logger()

	e.metrics.ScanStarted()
	if n := e.store.GC(); n > 0 {
		logger.Debug().Int("episodes", n).Msg("Collected expired alert episodes")
	}
	e.progress.Start(res.ID, len(symbols))
	logger.Info().Int("symbols", len(symbols)).Msg("Scan started")

	b := batch{
		sent:     e.sentiment.Score(ctx),
		macro:    e.macroForBatch(ctx, symbols, tf),
		profiles: e.evaluator.Router().Resolve(),
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.config.MaxInFlight)
	)
	record := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	for i, symbol := range symbols {
		if err := e.pacer.Wait(ctx); err != nil {
			// caller cancelled; the rest of the batch is reported, not run
			for _, rest := range symbols[i:] {
				record(func() {
					res.Totals.Attempted++
					res.Totals.Errors++
					res.Errors = append(res.Errors, newSymbolError(rest, err))
				})
				e.metrics.RecordOutcome(metrics.OutcomeError)
			}
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := e.process(ctx, symbol, tf, b)
			record(func() { e.tally(res, symbol, out, err) })
		}(symbol)
	}
	wg.Wait()

	sort.SliceStable(res.Signals, func(i, j int) bool {
		if res.Signals[i].FinalScore != res.Signals[j].FinalScore {
			return res.Signals[i].FinalScore > res.Signals[j].FinalScore
		}
		return res.Signals[i].Symbol < res.Signals[j].Symbol
	})
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Symbol < res.Errors[j].Symbol })

	res.Duration = e.now().Sub(started)
	e.metrics.SetOpenPositions(len(e.store.OpenPositions()))
	e.metrics.ScanFinished(res.Duration)
	e.progress.Finish(res.Totals)

	logger.Info().
		Int("attempted", res.Totals.Attempted).
		Int("analyzed", res.Totals.Analyzed).
		Int("insufficient", res.Totals.Insufficient).
		Int("signaled", res.Totals.Signaled).
		Int("emitted", res.Totals.Emitted).
		Int("throttled", res.Totals.Throttled).
		Int("exits", res.Totals.Exits).
		Int("errors", res.Totals.Errors).
		Dur("duration", res.Duration).
		Msg("Scan completed")
	return res
}

// outcome is what process hands back to the tally
type outcome struct {
	analysis  *Analysis
	exit      *ExitEvent
	emitted   bool
	throttled *ThrottledAlert
}

func (e *Engine) tally(res *ScanResult, symbol string, out outcome, err error) {
	res.Totals.Attempted++
	if out.exit != nil {
		res.Totals.Exits++
		res.Exits = append(res.Exits, *out.exit)
	}

	label := metrics.OutcomeAnalyzed
	switch {
	case errors.Is(err, ErrThrottledDuplicate):
		res.Totals.Analyzed++
		res.Totals.Signaled++
		res.Totals.Throttled++
		if out.throttled != nil {
			res.Throttled = append(res.Throttled, *out.throttled)
		}
		label = metrics.OutcomeThrottled
	case err != nil:
		res.Totals.Errors++
		res.Errors = append(res.Errors, newSymbolError(symbol, err))
		label = metrics.OutcomeError
		log.Warn().Err(err).Str("symbol", symbol).Msg("Symbol analysis failed")
	case out.analysis == nil:
	case out.analysis.InsufficientData:
		res.Totals.Insufficient++
		label = metrics.OutcomeInsufficient
	default:
		res.Totals.Analyzed++
		if out.analysis.Signal != nil {
			res.Totals.Signaled++
			label = metrics.OutcomeSignaled
		}
		if out.emitted {
			res.Totals.Emitted++
			res.Signals = append(res.Signals, out.analysis.Signal)
			label = metrics.OutcomeEmitted
		}
	}
	e.metrics.RecordOutcome(label)
	e.progress.Advance(symbol, label)
}

// process analyzes one symbol under its own timeout and applies the
// position and alert transitions. Panics become per-symbol errors.
func (e *Engine) process(ctx context.Context, symbol string, tf market.Timeframe, b batch) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("symbol", symbol).Interface("panic", r).Msg("Recovered from analysis panic")
			out, err = outcome{}, panicError(symbol, r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.config.SymbolTimeout)
	defer cancel()

	a, err := e.analyze(ctx, symbol, tf, b)
	if err != nil {
		return outcome{}, err
	}
	out.analysis = a
	if a.InsufficientData {
		return out, nil
	}

	now := e.now()
	err = e.store.Apply(symbol, func(tx *state.Tx) error {
		if pos := tx.Position(); pos.Status == state.Open {
			ex, err := e.exits.EvaluateExit(ctx, exits.ExitInputs{
				Symbol:      symbol,
				Direction:   pos.Direction,
				EntryPrice:  pos.EntryPrice,
				EntryTime:   pos.EntryTime,
				CurrentTime: now,
				Candle:      a.last,
				Snapshot:    a.Snapshot,
			})
			if err != nil {
				return fmt.Errorf("%s: exit evaluation: %w", symbol, err)
			}
			if ex.ShouldExit {
				tr := tx.Exit(a.Snapshot.Price, now, ex.ReasonString)
				out.exit = &ExitEvent{Result: ex, Transition: tr}
				e.metrics.RecordExit(ex.ReasonString)
				log.Info().Str("symbol", symbol).Str("reason", ex.ReasonString).
					Float64("pnl_pct", ex.UnrealizedPnL).Msg("Position exited")
			}
		}

		sig := a.Signal
		if sig == nil {
			return nil
		}
		e.metrics.RecordSignal(string(sig.Tier), string(sig.Direction))
		// position and alert episode are separate tracks: a held position
		// does not stop the duplicate signal from being counted against its episode
		if tr := tx.Enter(sig.Direction, a.Snapshot.Price, now); !tr.Applied {
			log.Debug().Str("symbol", symbol).Str("direction", string(tr.Position.Direction)).
				Msg("Entry ignored, position already open")
		}
		decision := tx.Alert(sig.Type, now)
		if !decision.Emit {
			out.throttled = &ThrottledAlert{Symbol: symbol, Type: sig.Type, Episode: decision.Episode}
			return fmt.Errorf("%s %s: %w", symbol, sig.Type, ErrThrottledDuplicate)
		}
		out.emitted = true
		return nil
	})
	return out, err
}
