package config

import (
	"fmt"
)

// Known provider names, in the default priority order
const (
	ProviderBinance      = "binance"
	ProviderKraken       = "kraken"
	ProviderYahoo        = "yahoo"
	ProviderAlphaVantage = "alphavantage"
	ProviderFake         = "fake"
)

// ProviderConfig represents configuration for a single candle provider.
// List order is fallback priority.
type ProviderConfig struct {
	Name    string `yaml:"name" validate:"required,oneof=binance kraken yahoo alphavantage fake"`
	Enabled bool   `yaml:"enabled"`

	// empty uses the provider's public endpoint
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// APIKeyEnv is read when APIKey is empty
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`

	RPS   float64 `yaml:"rps" default:"5" validate:"gt=0"`
	Burst int     `yaml:"burst" default:"5" validate:"min=1"`

	// Daily quota in requests per UTC day, 0 for none
	DailyBudget int64   `yaml:"daily_budget" validate:"gte=0"`
	ResetHour   int     `yaml:"reset_hour" validate:"gte=0,lte=23"`
	WarnAt      float64 `yaml:"warn_threshold" default:"0.8" validate:"gt=0,lte=1"`
}

// DefaultProviders is the public-API chain: crypto venues first, then the
// broad equity/forex/futures source, then the keyed fallback
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: ProviderBinance, Enabled: true, RPS: 10, Burst: 20, WarnAt: 0.8},
		{Name: ProviderKraken, Enabled: true, RPS: 1, Burst: 3, WarnAt: 0.8},
		{Name: ProviderYahoo, Enabled: true, RPS: 2, Burst: 4, WarnAt: 0.8},
		{Name: ProviderAlphaVantage, Enabled: true, APIKeyEnv: "ALPHAVANTAGE_API_KEY", RPS: 0.2, Burst: 1, DailyBudget: 500, WarnAt: 0.8},
	}
}

// EnabledProviders returns the enabled providers in priority order
func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// validateProviders ensures the chain is usable and consistent
func validateProviders(chain []ProviderConfig) error {
	seen := make(map[string]bool, len(chain))
	enabled := 0
	for _, p := range chain {
		if seen[p.Name] {
			return fmt.Errorf("provider %s listed twice", p.Name)
		}
		seen[p.Name] = true
		if !p.Enabled {
			continue
		}
		enabled++

		if float64(p.Burst) < p.RPS {
			return fmt.Errorf("provider %s: burst (%d) must be >= rps (%.2f)", p.Name, p.Burst, p.RPS)
		}
		if p.Name == ProviderAlphaVantage && p.DailyBudget <= 0 {
			return fmt.Errorf("provider %s: daily_budget must be positive, got %d", p.Name, p.DailyBudget)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no enabled providers")
	}
	return nil
}
