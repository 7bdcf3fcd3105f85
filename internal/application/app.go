// Package application wires the configured components into a runnable
// engine: provider chain, cache tiers, breakers, gates, sentiment and the
// narrative generator.
package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/csd2000/Trade-Flow-sub002/internal/config"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/cache"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/facade"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers/alphavantage"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers/binance"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers/fake"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers/kraken"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers/yahoo"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/orderflow"
	"github.com/csd2000/Trade-Flow-sub002/internal/gates"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
	monitor "github.com/csd2000/Trade-Flow-sub002/internal/interfaces/http"
	"github.com/csd2000/Trade-Flow-sub002/internal/metrics"
	"github.com/csd2000/Trade-Flow-sub002/internal/narrative"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/budget"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/circuit"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/ratelimit"
	"github.com/csd2000/Trade-Flow-sub002/internal/scan"
	"github.com/csd2000/Trade-Flow-sub002/internal/sentiment"
	"github.com/csd2000/Trade-Flow-sub002/internal/signal"
	"github.com/csd2000/Trade-Flow-sub002/internal/state"
)

// Options select the run mode
type Options struct {
	// Offline swaps the provider chain for the deterministic generator and
	// skips every outbound call, sentiment included
	Offline  bool
	Progress scan.Progress
	Version  string
}

// App owns the wired components. Close releases the cache tiers.
type App struct {
	Config  *config.Config
	Metrics *metrics.Registry
	Adapter *facade.Adapter
	Store   *state.Store
	Engine  *scan.Engine

	version string
	pool    *httpclient.ClientPool
	caches  []cache.Store
}

// New builds the application from cfg
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	reg := metrics.NewRegistry()
	pool := httpclient.NewClientPool(cfg.HTTP)
	app := &App{Config: cfg, Metrics: reg, version: opts.Version, pool: pool}

	adapter, err := app.buildAdapter(ctx, pool, opts.Offline)
	if err != nil {
		return nil, err
	}
	app.Adapter = adapter

	router := gates.NewGateRouterWithDefaults()
	if cfg.Gates.TableFile != "" {
		if router, err = gates.NewGateRouter(cfg.Gates.TableFile); err != nil {
			app.Close()
			return nil, fmt.Errorf("gate table: %w", err)
		}
	}

	var sent sentiment.Provider = sentiment.Static(sentiment.Neutral)
	if cfg.Sentiment.Enabled && !opts.Offline {
		sent = sentiment.NewFearGreed(cfg.Sentiment, pool)
	}
	var gen narrative.Generator = narrative.RuleBased{}
	if cfg.Narrative.Enabled && !opts.Offline {
		gen = narrative.NewHTTPGenerator(cfg.Narrative.HTTP, pool)
	}

	app.Store = state.NewStore(cfg.State)
	engineOpts := []scan.Option{
		scan.WithEvaluator(gates.NewEvaluator(router, &cfg.Gates.Guards)),
		scan.WithExitConfig(&cfg.Exits),
		scan.WithAssembler(signal.NewAssembler(cfg.Signal)),
		scan.WithPatternConfig(cfg.Patterns),
		scan.WithOrderFlow(orderflow.NewEstimator(&cfg.OrderFlow)),
		scan.WithNarrative(gen),
		scan.WithSentiment(sent, cfg.Sentiment),
		scan.WithMetrics(reg),
	}
	if opts.Progress != nil {
		engineOpts = append(engineOpts, scan.WithProgress(opts.Progress))
	}
	engine, err := scan.NewEngine(cfg.Scan, adapter, app.Store, engineOpts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Engine = engine

	log.Info().
		Strs("providers", adapter.Providers()).
		Bool("offline", opts.Offline).
		Str("profile", cfg.Scan.Profile).
		Int("max_in_flight", cfg.Scan.MaxInFlight).
		Msg("Engine ready")
	return app, nil
}

func (a *App) buildAdapter(ctx context.Context, pool *httpclient.ClientPool, offline bool) (*facade.Adapter, error) {
	cfg := a.Config
	universe := cfg.SymbolUniverse()

	store, err := a.buildCache(ctx)
	if err != nil {
		return nil, err
	}
	if offline {
		return facade.NewOfflineAdapter(cfg.Data, universe,
			facade.WithCache(store),
			facade.WithObserver(a.Metrics),
		), nil
	}

	breakers := circuit.NewManager(cfg.Circuit)
	breakers.OnStateChange(func(name string, from, to gobreaker.State) {
		ev := log.Warn()
		if to == gobreaker.StateClosed {
			ev = log.Info()
		}
		ev.Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("Provider breaker changed state")
	})

	limiter := ratelimit.NewLimiter(5, 5)
	chain, err := buildChain(cfg.EnabledProviders(), pool, limiter)
	if err != nil {
		return nil, err
	}
	return facade.New(cfg.Data, chain,
		facade.WithBreakers(breakers),
		facade.WithLimiter(limiter),
		facade.WithCache(store),
		facade.WithUniverse(universe),
		facade.WithObserver(a.Metrics),
	), nil
}

// buildChain turns the enabled provider entries into the fallback chain,
// in configured order
func buildChain(entries []config.ProviderConfig, pool *httpclient.ClientPool, limiter *ratelimit.Limiter) ([]providers.Provider, error) {
	var chain []providers.Provider
	for _, p := range entries {
		limiter.Configure(p.Name, ratelimit.Limit{RPS: p.RPS, Burst: p.Burst})

		switch p.Name {
		case config.ProviderBinance:
			chain = append(chain, binance.NewAdapter(p.BaseURL, pool))
		case config.ProviderKraken:
			chain = append(chain, kraken.NewAdapter(p.BaseURL, pool))
		case config.ProviderYahoo:
			chain = append(chain, yahoo.NewAdapter(p.BaseURL, pool))
		case config.ProviderAlphaVantage:
			if p.APIKey == "" {
				log.Warn().Str("provider", p.Name).Str("env", p.APIKeyEnv).Msg("No API key, provider skipped")
				continue
			}
			tracker := budget.NewTracker(p.Name, budget.Config{
				Limit:         p.DailyBudget,
				ResetHour:     p.ResetHour,
				WarnThreshold: p.WarnAt,
			})
			chain = append(chain, alphavantage.NewAdapter(p.BaseURL, p.APIKey, pool, tracker))
		case config.ProviderFake:
			chain = append(chain, fake.NewAdapter(p.Name))
		default:
			return nil, fmt.Errorf("unknown provider %q", p.Name)
		}
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable providers configured")
	}
	return chain, nil
}

// buildCache returns the memory tier, layered over Redis when an address
// is configured. An unreachable Redis degrades to memory only.
func (a *App) buildCache(ctx context.Context) (cache.Store, error) {
	cfg := a.Config.Cache
	mem := cache.NewTTLCache(cfg.MemoryEntries)
	if cfg.Redis.Addr == "" {
		a.caches = append(a.caches, mem)
		return mem, nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, using memory cache only")
		a.caches = append(a.caches, mem)
		return mem, nil
	}
	layered := cache.NewLayeredCache(mem, rc)
	a.caches = append(a.caches, layered)
	return layered, nil
}

// Monitor builds the read-only HTTP monitor over this app
func (a *App) Monitor() (*monitor.Server, error) {
	return monitor.NewServer(a.Config.Monitor, monitor.Dependencies{
		Engine:    a.Engine,
		Providers: a.Adapter,
		Pool:      a.pool,
		Metrics:   a.Metrics.Handler(),
		Version:   a.version,
	})
}

// Close releases the cache tiers
func (a *App) Close() {
	for _, c := range a.caches {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("cache", c.Name()).Msg("Cache close failed")
		}
	}
	a.caches = nil
}
