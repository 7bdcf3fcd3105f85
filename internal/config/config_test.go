package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 4, c.Scan.MaxInFlight)
	assert.Equal(t, 30, c.Scan.MinBars)
	assert.Equal(t, 2048, c.Cache.MemoryEntries)
	assert.Equal(t, "confluence", c.Cache.Redis.Prefix)
	assert.Equal(t, 5*time.Minute, c.State.EpisodeWindow)
	assert.Equal(t, "gpt-4o-mini", c.Narrative.HTTP.Model)
	assert.Equal(t, 8080, c.Monitor.Port)
	assert.Len(t, c.EnabledProviders(), 4)

	c.Data.ThrottleNotice = 0
	assert.Error(t, c.Validate(), "a zero throttle notice flags every fetch")
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	c, err := Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, Default().Scan, c.Scan)

	_, err = Load(missing, true)
	assert.Error(t, err)
}

func TestLoadOverlaysFile(t *testing.T) {
	t.Setenv("TEST_AV_KEY", "secret")
	path := writeConfig(t, `
log:
  level: debug
scan:
  max_in_flight: 8
  symbol_timeout: 5s
  cross_entries: false
sentiment:
  enabled: false
providers:
  - name: yahoo
    enabled: true
  - name: alphavantage
    enabled: true
    api_key_env: TEST_AV_KEY
    daily_budget: 25
universe:
  crypto: [BTC-USD, ETH-USD]
`)
	c, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 8, c.Scan.MaxInFlight)
	assert.Equal(t, 5*time.Second, c.Scan.SymbolTimeout)
	assert.False(t, c.Scan.CrossEntries, "explicit false survives defaults")
	assert.False(t, c.Sentiment.Enabled)
	assert.Equal(t, 0.7, c.Scan.Scoring.TechWeight, "untouched keys keep defaults")

	require.Len(t, c.Providers, 2)
	assert.Equal(t, 5.0, c.Providers[0].RPS, "tag default for a file-supplied provider")
	assert.Equal(t, "secret", c.Providers[1].APIKey)
	assert.Equal(t, market.Crypto, c.SymbolUniverse().ClassOf("ETH-USD"))
}

func TestValidationFailures(t *testing.T) {
	cases := map[string]string{
		"min bars below floor": "scan:\n  min_bars: 20\ndata:\n  min_bars: 20\n",
		"min bars mismatch":    "scan:\n  min_bars: 40\n",
		"weights":              "scan:\n  scoring:\n    tech_weight: 0.9\n    ai_weight: 0.3\n",
		"unknown provider":     "providers:\n  - name: polygon\n    enabled: true\n",
		"duplicate provider":   "providers:\n  - name: yahoo\n    enabled: true\n  - name: yahoo\n    enabled: false\n",
		"nothing enabled":      "providers:\n  - name: yahoo\n    enabled: false\n",
		"burst below rps":      "providers:\n  - name: yahoo\n    enabled: true\n    rps: 10\n    burst: 2\n",
		"bad log level":        "log:\n  level: chatty\n",
		"bad profile":          "scan:\n  profile: momentum\n",
		"bad universe class":   "universe:\n  bonds: [TLT]\n",
		"narrative endpoint":   "narrative:\n  enabled: true\n",
		"primary target":       "signal:\n  target_multiples: [1]\n  primary_target: 1\n",
		"sentiment bands":      "sentiment:\n  fear_band: 80\n  greed_band: 60\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), true)
			assert.Error(t, err)
		})
	}
}

func TestDumpMasksSecrets(t *testing.T) {
	c := Default()
	c.Providers[3].APIKey = "av-key"
	c.Narrative.HTTP.APIKey = "sk-123"

	out, err := c.Dump()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "av-key")
	assert.NotContains(t, string(out), "sk-123")
	assert.Equal(t, "av-key", c.Providers[3].APIKey, "dump does not modify the config")

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, c.Scan.SymbolTimeout, back.Scan.SymbolTimeout)
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	path := writeConfig(t, "scan:\n  max_in_flight: 6\n")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--config", path,
		"--min-bars", "40",
		"--symbol-timeout", "3s",
		"--no-sentiment",
	}))

	c, err := LoadWithFlags(fs)
	require.NoError(t, err)
	assert.Equal(t, 6, c.Scan.MaxInFlight, "file value kept when flag not set")
	assert.Equal(t, 40, c.Scan.MinBars)
	assert.Equal(t, 40, c.Data.MinBars, "min bars kept in step")
	assert.Equal(t, 3*time.Second, c.Scan.SymbolTimeout)
	assert.False(t, c.Sentiment.Enabled)

	fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--max-in-flight", "0"}))
	_, err = LoadWithFlags(fs)
	assert.Error(t, err)
}
