// Package config loads the engine settings from YAML. Every section falls
// back to the owning package's defaults, so a partial file is valid.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/cache"
	"github.com/csd2000/Trade-Flow-sub002/internal/data/facade"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/orderflow"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/patterns"
	"github.com/csd2000/Trade-Flow-sub002/internal/exits"
	"github.com/csd2000/Trade-Flow-sub002/internal/gates"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
	monitor "github.com/csd2000/Trade-Flow-sub002/internal/interfaces/http"
	"github.com/csd2000/Trade-Flow-sub002/internal/narrative"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/circuit"
	"github.com/csd2000/Trade-Flow-sub002/internal/scan"
	"github.com/csd2000/Trade-Flow-sub002/internal/sentiment"
	"github.com/csd2000/Trade-Flow-sub002/internal/signal"
	"github.com/csd2000/Trade-Flow-sub002/internal/state"
)

// DefaultPath is where the CLI looks when --config is not given
const DefaultPath = "config/engine.yaml"

// Config is the complete engine configuration
type Config struct {
	Log       LogConfig                      `yaml:"log"`
	Scan      scan.Config                    `yaml:"scan"`
	Data      facade.Config                  `yaml:"data"`
	Providers []ProviderConfig               `yaml:"providers" validate:"dive"`
	HTTP      httpclient.ClientConfig        `yaml:"http"`
	Circuit   circuit.Config                 `yaml:"circuit"`
	Cache     CacheConfig                    `yaml:"cache"`
	Gates     GatesConfig                    `yaml:"gates"`
	Patterns  patterns.Config                `yaml:"patterns"`
	OrderFlow orderflow.Config               `yaml:"order_flow"`
	Exits     exits.ExitConfig               `yaml:"exits"`
	State     state.Config                   `yaml:"state"`
	Signal    signal.Config                  `yaml:"signal"`
	Sentiment sentiment.Config               `yaml:"sentiment"`
	Narrative NarrativeConfig                `yaml:"narrative"`
	Monitor   monitor.ServerConfig           `yaml:"monitor"`
	Universe  map[market.AssetClass][]string `yaml:"universe"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"auto" validate:"oneof=auto console json"`
}

// CacheConfig sizes the in-process tier; Redis is added as L2 when an
// address is set
type CacheConfig struct {
	MemoryEntries int               `yaml:"memory_entries" default:"2048" validate:"min=0"`
	Redis         cache.RedisConfig `yaml:"redis"`
}

// GatesConfig points at the per-class gate table and carries the guards.
// An empty TableFile uses the built-in table.
type GatesConfig struct {
	TableFile string            `yaml:"table_file"`
	Guards    gates.GuardConfig `yaml:"guards"`
}

// NarrativeConfig enables the HTTP generator; the rule-based one is always
// the fallback
type NarrativeConfig struct {
	Enabled   bool                 `yaml:"enabled"`
	APIKeyEnv string               `yaml:"api_key_env" default:"NARRATIVE_API_KEY"`
	HTTP      narrative.HTTPConfig `yaml:"http"`
}

// Default returns the built-in configuration
func Default() *Config {
	c := &Config{
		Scan:      scan.DefaultConfig(),
		Data:      facade.DefaultConfig(),
		Providers: DefaultProviders(),
		HTTP:      httpclient.DefaultClientConfig(),
		Circuit:   circuit.DefaultConfig(),
		Gates:     GatesConfig{Guards: *gates.DefaultGuardConfig()},
		Patterns:  patterns.DefaultConfig(),
		OrderFlow: *orderflow.DefaultConfig(),
		Exits:     *exits.DefaultExitConfig(),
		State:     state.DefaultConfig(),
		Signal:    signal.DefaultConfig(),
		Sentiment: sentiment.DefaultConfig(),
		Monitor:   monitor.DefaultServerConfig(),
	}
	// tag defaults fill whatever the package constructors leave zero
	if err := defaults.Set(c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return c
}

// Load reads path over the defaults. A missing file at the default path is
// not an error; an explicitly named one is.
func Load(path string, explicit bool) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		c.applyEnv()
		return c, c.Validate()
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	// a providers list in the file replaces the default chain wholesale
	for i := range c.Providers {
		if err := defaults.Set(&c.Providers[i]); err != nil {
			return nil, fmt.Errorf("provider defaults: %w", err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// applyEnv resolves secrets that never live in the YAML file
func (c *Config) applyEnv() {
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
		}
	}
	if c.Narrative.HTTP.APIKey == "" && c.Narrative.APIKeyEnv != "" {
		c.Narrative.HTTP.APIKey = os.Getenv(c.Narrative.APIKeyEnv)
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" && c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = addr
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the declarative tag checks, then the cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	w := c.Scan.Scoring
	if sum := w.TechWeight + w.AIWeight; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("scoring tech_weight + ai_weight must be 1, got %.3f", sum)
	}
	if c.Scan.MinBars > c.Data.FetchLimit {
		return fmt.Errorf("scan min_bars (%d) exceeds data fetch_limit (%d)", c.Scan.MinBars, c.Data.FetchLimit)
	}
	if c.Data.MinBars != c.Scan.MinBars {
		return fmt.Errorf("data min_bars (%d) and scan min_bars (%d) must match", c.Data.MinBars, c.Scan.MinBars)
	}
	if c.Signal.PrimaryTarget >= len(c.Signal.TargetMultiples) {
		return fmt.Errorf("signal primary_target %d out of range for %d targets", c.Signal.PrimaryTarget, len(c.Signal.TargetMultiples))
	}
	if c.Narrative.Enabled && c.Narrative.HTTP.Endpoint == "" {
		return fmt.Errorf("narrative enabled without an endpoint")
	}
	for class := range c.Universe {
		if _, err := market.ParseAssetClass(string(class)); err != nil {
			return fmt.Errorf("universe: %w", err)
		}
	}
	return validateProviders(c.Providers)
}

// SymbolUniverse builds the explicit symbol classification; symbols outside
// it are classified by shape
func (c *Config) SymbolUniverse() *market.SymbolUniverse {
	return market.NewSymbolUniverse(c.Universe)
}

// Dump renders the effective configuration. API keys are masked.
func (c *Config) Dump() ([]byte, error) {
	out := *c
	out.Providers = append([]ProviderConfig(nil), c.Providers...)
	for i := range out.Providers {
		out.Providers[i].APIKey = mask(out.Providers[i].APIKey)
	}
	out.Narrative.HTTP.APIKey = mask(out.Narrative.HTTP.APIKey)
	out.Cache.Redis.Password = mask(out.Cache.Redis.Password)
	return yaml.Marshal(&out)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
