package gates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

func TestShippedTableMatchesDefaults(t *testing.T) {
	router, err := NewGateRouter("config/gates.yaml")
	require.NoError(t, err)

	def := DefaultTableConfig()
	assert.Equal(t, def.Thresholds, router.Thresholds())
	for _, class := range market.AllClasses {
		assert.Equal(t, def.Profiles[class].Gates, router.Config().Profiles[class].Gates, class)
	}
}

func TestLoadTableRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"unknown gate":    "profiles:\n  crypto:\n    gates: [moon_phase]\n",
		"tier order":      "thresholds:\n  high_probability_pct: 95\n",
		"empty profile":   "profiles:\n  forex:\n    gates: []\n",
		"negative weight": "profiles:\n  futures:\n    gates: [trend_filter]\n    weights:\n      trend_filter: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gates.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadTableConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestSelectFallsBackToEquities(t *testing.T) {
	cfg := DefaultTableConfig()
	delete(cfg.Profiles, market.Futures)
	router, err := NewGateRouterFromConfig(cfg)
	require.NoError(t, err)

	got := router.Select(market.Futures)
	assert.Contains(t, got.Gates, GateMarketBreadth)
}

func TestLoadTableMergesPartialProfiles(t *testing.T) {
	body := "profiles:\n  crypto:\n    weights:\n      orderflow_sentiment: 2\n  forex:\n    gates: [trend_filter, currency_index_trend]\n"
	path := filepath.Join(t.TempDir(), "gates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadTableConfig(path)
	require.NoError(t, err)
	def := DefaultTableConfig()

	crypto := cfg.Profiles[market.Crypto]
	assert.Equal(t, def.Profiles[market.Crypto].Gates, crypto.Gates, "weights-only profile keeps its gates")
	assert.Equal(t, 2.0, crypto.Weight(GateOrderFlowSentiment))
	for id, w := range def.Profiles[market.Crypto].Weights {
		if id != GateOrderFlowSentiment {
			assert.Equal(t, w, crypto.Weights[id], id)
		}
	}

	assert.Equal(t, []GateID{GateTrendFilter, GateCurrencyIndexTrend}, cfg.Profiles[market.Forex].Gates)
	assert.Equal(t, def.Profiles[market.Equities], cfg.Profiles[market.Equities])
}
