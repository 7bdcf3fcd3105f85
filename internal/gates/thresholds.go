package gates

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// GateID names one boolean precondition in the confluence table
type GateID string

const (
	GateTrendFilter         GateID = "trend_filter"
	GateMomentumCross       GateID = "momentum_cross"
	GateTrendStrength       GateID = "trend_strength"
	GateVolumeParticipation GateID = "volume_participation"
	GateOscillatorZone      GateID = "oscillator_zone"

	// asset-class macro gates
	GateCurrencyIndexTrend GateID = "currency_index_trend"
	GateOrderFlowSentiment GateID = "orderflow_sentiment"
	GateADXTrendConfirm    GateID = "adx_trend_confirm"
	GateMarketBreadth      GateID = "market_breadth"

	// institutional set
	GateLiquiditySweep GateID = "liquidity_sweep"
	GateFairValueGap   GateID = "fair_value_gap"
	GateOrderBlock     GateID = "order_block"
)

// InstitutionalGates is appended to every profile when enabled
var InstitutionalGates = []GateID{GateLiquiditySweep, GateFairValueGap, GateOrderBlock}

// GateProfile is the ordered gate list and weight map for one asset class
type GateProfile struct {
	Gates   []GateID           `yaml:"gates"`
	Weights map[GateID]float64 `yaml:"weights"`
}

// Weight returns the configured weight, 1.0 when unset
func (p GateProfile) Weight(id GateID) float64 {
	if w, ok := p.Weights[id]; ok && w > 0 {
		return w
	}
	return 1.0
}

// Thresholds are the numeric cut-offs the gates compare against
type Thresholds struct {
	ADXMin             float64 `yaml:"adx_min"`              // 25
	RVOLMin            float64 `yaml:"rvol_min"`             // 1.2x
	RSIBullFloor       float64 `yaml:"rsi_bull_floor"`       // 40
	RSIBearCeiling     float64 `yaml:"rsi_bear_ceiling"`     // 60
	RSIOverbought      float64 `yaml:"rsi_overbought"`       // 70
	RSIOversold        float64 `yaml:"rsi_oversold"`         // 30
	StochOverbought    float64 `yaml:"stoch_overbought"`     // 80
	StochOversold      float64 `yaml:"stoch_oversold"`       // 20
	SweepMinRejection  float64 `yaml:"sweep_min_rejection"`  // wick/body 1.5
	OrderFlowCVDPct    float64 `yaml:"orderflow_cvd_pct"`    // 5% normalized CVD change, mirrored for sell
	ConfirmedPct       float64 `yaml:"confirmed_pct"`        // 90
	HighProbabilityPct float64 `yaml:"high_probability_pct"` // 70
	WatchPct           float64 `yaml:"watch_pct"`            // 50
	BonusPoints        float64 `yaml:"bonus_points"`         // per aligned pattern combo
	MaxBonus           float64 `yaml:"max_bonus"`
}

// TableConfig is the full asset-class gate table
type TableConfig struct {
	Institutional bool                              `yaml:"institutional"`
	Thresholds    Thresholds                        `yaml:"thresholds"`
	Profiles      map[market.AssetClass]GateProfile `yaml:"profiles"`
}

func baseGates(macro GateID) []GateID {
	return []GateID{GateTrendFilter, GateMomentumCross, GateTrendStrength, GateVolumeParticipation, GateOscillatorZone, macro}
}

// DefaultTableConfig returns the production gate table
func DefaultTableConfig() *TableConfig {
	return &TableConfig{
		Institutional: true,
		Thresholds: Thresholds{
			ADXMin:             25,
			RVOLMin:            1.2,
			RSIBullFloor:       40,
			RSIBearCeiling:     60,
			RSIOverbought:      70,
			RSIOversold:        30,
			StochOverbought:    80,
			StochOversold:      20,
			SweepMinRejection:  1.5,
			OrderFlowCVDPct:    5,
			ConfirmedPct:       90,
			HighProbabilityPct: 70,
			WatchPct:           50,
			BonusPoints:        1,
			MaxBonus:           2,
		},
		Profiles: map[market.AssetClass]GateProfile{
			market.Equities: {
				Gates:   baseGates(GateMarketBreadth),
				Weights: map[GateID]float64{GateTrendFilter: 1.5, GateVolumeParticipation: 1.2},
			},
			market.Crypto: {
				Gates:   baseGates(GateOrderFlowSentiment),
				Weights: map[GateID]float64{GateMomentumCross: 1.5, GateLiquiditySweep: 1.3},
			},
			market.Forex: {
				Gates:   baseGates(GateCurrencyIndexTrend),
				Weights: map[GateID]float64{GateCurrencyIndexTrend: 1.5, GateVolumeParticipation: 0.5},
			},
			market.Futures: {
				Gates:   baseGates(GateADXTrendConfirm),
				Weights: map[GateID]float64{GateTrendStrength: 1.3, GateADXTrendConfirm: 1.3},
			},
		},
	}
}

// GateRouter resolves the gate profile for an asset class
type GateRouter struct {
	config *TableConfig
}

// NewGateRouter loads the table from configPath, overlaying it on the defaults
func NewGateRouter(configPath string) (*GateRouter, error) {
	if configPath == "" {
		configPath = "config/gates.yaml"
	}
	config, err := LoadTableConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load gate table: %w", err)
	}
	return &GateRouter{config: config}, nil
}

// NewGateRouterWithDefaults creates a router with the built-in table
func NewGateRouterWithDefaults() *GateRouter {
	return &GateRouter{config: DefaultTableConfig()}
}

// NewGateRouterFromConfig wraps an already-loaded table
func NewGateRouterFromConfig(config *TableConfig) (*GateRouter, error) {
	if config == nil {
		return NewGateRouterWithDefaults(), nil
	}
	if err := validateTableConfig(config); err != nil {
		return nil, fmt.Errorf("invalid gate table: %w", err)
	}
	return &GateRouter{config: config}, nil
}

// Select returns the ordered gate profile for class, with the
// institutional set appended when enabled. Unknown classes get the
// equities profile.
func (r *GateRouter) Select(class market.AssetClass) GateProfile {
	p, ok := r.config.Profiles[class]
	if !ok {
		p = r.config.Profiles[market.Equities]
	}
	gates := append([]GateID(nil), p.Gates...)
	if r.config.Institutional {
		for _, g := range InstitutionalGates {
			if !containsGate(gates, g) {
				gates = append(gates, g)
			}
		}
	}
	return GateProfile{Gates: gates, Weights: p.Weights}
}

// ProfileSet is the gate table resolved for every asset class
type ProfileSet map[market.AssetClass]GateProfile

// Resolve selects the profile of every known class
func (r *GateRouter) Resolve() ProfileSet {
	set := make(ProfileSet, len(market.AllClasses))
	for _, class := range market.AllClasses {
		set[class] = r.Select(class)
	}
	return set
}

// For returns the resolved profile for class, falling back to r.Select
// for classes the set does not hold
func (s ProfileSet) For(class market.AssetClass, r *GateRouter) GateProfile {
	if p, ok := s[class]; ok {
		return p
	}
	return r.Select(class)
}

func (r *GateRouter) Thresholds() Thresholds { return r.config.Thresholds }

// Config exposes the table for dumping
func (r *GateRouter) Config() *TableConfig { return r.config }

// DescribeProfile returns a one-line description of the gates for class
func (r *GateRouter) DescribeProfile(class market.AssetClass) string {
	p := r.Select(class)
	parts := make([]string, len(p.Gates))
	for i, g := range p.Gates {
		parts[i] = fmt.Sprintf("%s(%.1f)", g, p.Weight(g))
	}
	return fmt.Sprintf("%s: %s", class, strings.Join(parts, ", "))
}

// LoadTableConfig reads a YAML gate table. Keys absent from the file keep
// their default values; a profile that sets only weights keeps its default
// gate list and the weights merge per gate.
func LoadTableConfig(configPath string) (*TableConfig, error) {
	var data []byte
	var err error

	if filepath.IsAbs(configPath) {
		data, err = os.ReadFile(configPath)
	} else {
		data, err = os.ReadFile(configPath)
		if err != nil {
			// running from a package directory under go test
			data, err = os.ReadFile(filepath.Join("../..", configPath))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultTableConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	var overlay struct {
		Profiles map[market.AssetClass]profileOverlay `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse YAML profiles: %w", err)
	}
	config.Profiles = mergeProfiles(DefaultTableConfig().Profiles, overlay.Profiles)
	if err := validateTableConfig(config); err != nil {
		return nil, fmt.Errorf("invalid gate table: %w", err)
	}
	return config, nil
}

// profileOverlay tells an absent gate list apart from an empty one
type profileOverlay struct {
	Gates   *[]GateID          `yaml:"gates"`
	Weights map[GateID]float64 `yaml:"weights"`
}

func mergeProfiles(base map[market.AssetClass]GateProfile, overlay map[market.AssetClass]profileOverlay) map[market.AssetClass]GateProfile {
	for class, o := range overlay {
		p := base[class]
		if o.Gates != nil {
			p.Gates = *o.Gates
		}
		if len(o.Weights) > 0 {
			weights := make(map[GateID]float64, len(p.Weights)+len(o.Weights))
			for id, w := range p.Weights {
				weights[id] = w
			}
			for id, w := range o.Weights {
				weights[id] = w
			}
			p.Weights = weights
		}
		base[class] = p
	}
	return base
}

var knownGates = map[GateID]bool{
	GateTrendFilter: true, GateMomentumCross: true, GateTrendStrength: true,
	GateVolumeParticipation: true, GateOscillatorZone: true,
	GateCurrencyIndexTrend: true, GateOrderFlowSentiment: true, GateADXTrendConfirm: true,
	GateMarketBreadth: true, GateLiquiditySweep: true, GateFairValueGap: true, GateOrderBlock: true,
}

// validateTableConfig ensures every profile names known gates and the tier
// cut-offs are ordered
func validateTableConfig(config *TableConfig) error {
	th := config.Thresholds
	if th.ConfirmedPct <= 0 || th.ConfirmedPct > 100 {
		return fmt.Errorf("confirmed_pct %.1f out of range (0,100]", th.ConfirmedPct)
	}
	if th.HighProbabilityPct >= th.ConfirmedPct {
		return fmt.Errorf("high_probability_pct %.1f must be below confirmed_pct %.1f", th.HighProbabilityPct, th.ConfirmedPct)
	}
	if th.WatchPct >= th.HighProbabilityPct {
		return fmt.Errorf("watch_pct %.1f must be below high_probability_pct %.1f", th.WatchPct, th.HighProbabilityPct)
	}
	if th.BonusPoints < 0 || th.MaxBonus < 0 {
		return fmt.Errorf("bonus points must not be negative")
	}
	if th.RSIOversold >= th.RSIBullFloor || th.RSIBearCeiling >= th.RSIOverbought {
		return fmt.Errorf("RSI bands must satisfy oversold < bull_floor and bear_ceiling < overbought")
	}
	if _, ok := config.Profiles[market.Equities]; !ok {
		return fmt.Errorf("profile for %s is required as the fallback", market.Equities)
	}

	classes := make([]string, 0, len(config.Profiles))
	for c := range config.Profiles {
		classes = append(classes, string(c))
	}
	sort.Strings(classes)
	for _, c := range classes {
		p := config.Profiles[market.AssetClass(c)]
		if len(p.Gates) == 0 {
			return fmt.Errorf("profile %s has no gates", c)
		}
		for _, g := range p.Gates {
			if !knownGates[g] {
				return fmt.Errorf("profile %s: unknown gate %q", c, g)
			}
		}
		for g, w := range p.Weights {
			if w < 0 {
				return fmt.Errorf("profile %s: negative weight for %s", c, g)
			}
		}
	}
	return nil
}

func containsGate(gates []GateID, id GateID) bool {
	for _, g := range gates {
		if g == id {
			return true
		}
	}
	return false
}
