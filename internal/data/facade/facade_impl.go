package facade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/cache"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/validate"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/budget"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/circuit"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/ratelimit"
)

// Adapter walks a priority-ordered provider chain. The first provider that
// returns at least MinBars closed bars wins; empty responses and provider
// errors fall through to the next provider without retry.
type Adapter struct {
	config    Config
	chain     []providers.Provider
	breakers  *circuit.Manager
	limiter   *ratelimit.Limiter
	cache     cache.Store
	validator *validate.Validator
	staleness *validate.StalenessChecker
	universe  *market.SymbolUniverse
	observer  Observer
	now       func() time.Time
}

type Option func(*Adapter)

func WithBreakers(m *circuit.Manager) Option { return func(a *Adapter) { a.breakers = m } }

func WithLimiter(l *ratelimit.Limiter) Option { return func(a *Adapter) { a.limiter = l } }

// WithCache enables result caching; nil disables it
func WithCache(s cache.Store) Option { return func(a *Adapter) { a.cache = s } }

func WithUniverse(u *market.SymbolUniverse) Option { return func(a *Adapter) { a.universe = u } }

func WithObserver(o Observer) Option {
	return func(a *Adapter) {
		if o != nil {
			a.observer = o
		}
	}
}

func WithClock(now func() time.Time) Option { return func(a *Adapter) { a.now = now } }

// New creates an adapter over chain, in priority order
func New(config Config, chain []providers.Provider, opts ...Option) *Adapter {
	def := DefaultConfig()
	if config.MinBars <= 0 {
		config.MinBars = def.MinBars
	}
	if config.FetchLimit < config.MinBars {
		config.FetchLimit = def.FetchLimit
	}
	if config.ThrottleNotice <= 0 {
		config.ThrottleNotice = def.ThrottleNotice
	}
	if config.TTL.Intraday <= 0 && config.TTL.Daily <= 0 {
		config.TTL = def.TTL
	}

	a := &Adapter{
		config:    config,
		chain:     chain,
		breakers:  circuit.NewManager(circuit.DefaultConfig()),
		limiter:   ratelimit.NewLimiter(0, 0),
		validator: validate.NewValidator(config.Anomaly),
		staleness: validate.NewStalenessChecker(config.Staleness),
		observer:  nopObserver{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Providers lists the chain names in priority order
func (a *Adapter) Providers() []string {
	names := make([]string, len(a.chain))
	for i, p := range a.chain {
		names[i] = p.Name()
	}
	return names
}

// Breakers exposes breaker state for health reporting
func (a *Adapter) Breakers() map[string]circuit.Stats {
	return a.breakers.Stats()
}

// Fetch returns the latest closed-bar series for symbol. Insufficient data
// comes back as *InsufficientDataError; when history is merely short the
// best partial result is returned alongside it.
func (a *Adapter) Fetch(ctx context.Context, symbol string, tf market.Timeframe) (*FetchResult, error) {
	key := cache.CandleKey(symbol, tf)
	if a.cache != nil {
		var cached FetchResult
		if err := a.cache.Get(ctx, key, &cached); err == nil {
			a.observer.CacheLookup(true)
			cached.FromCache = true
			return &cached, nil
		}
		a.observer.CacheLookup(false)
	}

	class := a.universe.ClassOf(symbol)
	var (
		attempts []Attempt
		failures []error
		best     *FetchResult
	)

	for _, p := range a.chain {
		if !p.Supports(class) {
			continue
		}
		if len(attempts) > 0 {
			a.observer.ProviderFallback(attempts[len(attempts)-1].Provider)
		}

		res, attempt, err := a.fetchFrom(ctx, p, symbol, tf)
		attempts = append(attempts, attempt)
		a.observer.ProviderRequest(attempt.Provider, attempt.Outcome, attempt.Latency)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s via %s: %w: %w", symbol, tf, p.Name(), ErrProviderTimeout, ctxErr)
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", p.Name(), err))
			log.Debug().Str("provider", p.Name()).Str("symbol", symbol).Str("timeframe", string(tf)).
				Str("outcome", attempt.Outcome).Err(err).Msg("Provider failed, falling through")
			continue
		}
		if res == nil {
			continue
		}

		res.Symbol, res.Timeframe, res.Class = symbol, tf, class
		if len(res.Candles) >= a.config.MinBars {
			res.Attempts = attempts
			if a.cache != nil {
				if err := a.cache.Set(ctx, key, res, a.config.TTL.For(tf)); err != nil {
					log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache candles")
				}
			}
			if res.Quality.Degraded() {
				log.Debug().Str("symbol", symbol).Str("provider", res.Provider).
					Interface("quality", res.Quality).Msg("Degraded data quality")
			}
			return res, nil
		}
		if best == nil || len(res.Candles) > len(best.Candles) {
			best = res
		}
	}

	if best != nil {
		best.Attempts = attempts
		return best, &InsufficientDataError{
			Symbol: symbol, Timeframe: tf, Kind: ErrInsufficientHistory,
			Bars: len(best.Candles), MinBars: a.config.MinBars,
		}
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("%s %s: %w: %w", symbol, tf, ErrProvidersFailed, errors.Join(failures...))
	}
	return nil, &InsufficientDataError{
		Symbol: symbol, Timeframe: tf, Kind: ErrDataUnavailable, MinBars: a.config.MinBars,
	}
}

// fetchFrom makes one guarded provider call. A nil result with a nil error
// means the provider had nothing usable; quality flags are computed only
// for the series this provider produced.
func (a *Adapter) fetchFrom(ctx context.Context, p providers.Provider, symbol string, tf market.Timeframe) (*FetchResult, Attempt, error) {
	attempt := Attempt{Provider: p.Name()}

	waitStart := time.Now()
	if err := a.limiter.Wait(ctx, p.Name()); err != nil {
		attempt.Outcome = OutcomeRateLimited
		attempt.Error = err.Error()
		return nil, attempt, err
	}
	throttled := time.Since(waitStart) >= a.config.ThrottleNotice

	var candles []market.Candle
	var callErr error
	start := time.Now()
	err := a.breakers.Call(ctx, p.Name(), func(ctx context.Context) error {
		candles, callErr = p.FetchCandles(ctx, symbol, tf, a.config.FetchLimit)
		if errors.Is(callErr, providers.ErrUnsupported) || errors.Is(callErr, budget.ErrBudgetExhausted) {
			return nil // not a provider health problem
		}
		return callErr
	})
	attempt.Latency = time.Since(start)
	if err == nil {
		err = callErr
	}

	switch {
	case errors.Is(err, providers.ErrUnsupported):
		attempt.Outcome = OutcomeUnsupported
		return nil, attempt, nil
	case errors.Is(err, budget.ErrBudgetExhausted):
		attempt.Outcome = OutcomeBudgetExhausted
		attempt.Error = err.Error()
		return nil, attempt, nil
	case errors.Is(err, circuit.ErrCircuitOpen):
		attempt.Outcome = OutcomeCircuitOpen
		attempt.Error = err.Error()
		return nil, attempt, nil
	case errors.Is(err, httpclient.ErrRateLimited):
		attempt.Outcome = OutcomeRateLimited
		attempt.Error = err.Error()
		return nil, attempt, err
	case err != nil:
		attempt.Outcome = OutcomeError
		attempt.Error = err.Error()
		return nil, attempt, err
	}

	now := a.now()
	cleaned, report := a.validator.Clean(candles)
	closed := market.ClosedOnly(cleaned, tf, now)
	attempt.Bars = len(closed)
	if len(closed) == 0 {
		attempt.Outcome = OutcomeEmpty
		return nil, attempt, nil
	}

	quality := a.staleness.Flags(closed, tf, attempt.Latency, now)
	quality.RateLimitHit = quality.RateLimitHit || throttled
	quality.Malformed = report.Malformed()

	attempt.Outcome = OutcomeOK
	if len(closed) < a.config.MinBars {
		attempt.Outcome = OutcomeShort
	}
	return &FetchResult{
		Provider:  p.Name(),
		Candles:   closed,
		Quality:   quality,
		FetchedAt: now,
	}, attempt, nil
}
