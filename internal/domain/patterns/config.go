package patterns

// Config holds the thresholds for every detector
type Config struct {
	SwingSpan  int              `yaml:"swing_span"`  // fractal half-width
	RecentBars int              `yaml:"recent_bars"` // window used by Dominant and the gates
	Divergence DivergenceConfig `yaml:"divergence"`
	Sweep      SweepConfig      `yaml:"sweep"`
	FVG        FVGConfig        `yaml:"fvg"`
	OrderBlock OrderBlockConfig `yaml:"order_block"`
	Trap       TrapConfig       `yaml:"trap"`
}

// DivergenceConfig configures swing-based divergence classification
type DivergenceConfig struct {
	Lookback       int     `yaml:"lookback"`         // bars searched for swings
	MinSeparation  int     `yaml:"min_separation"`   // bars between compared swings
	MildMovePct    float64 `yaml:"mild_move_pct"`    // max price move for hidden divergence
	HiddenLowBand  float64 `yaml:"hidden_low_band"`  // oscillator extreme for hidden bullish
	HiddenHighBand float64 `yaml:"hidden_high_band"` // oscillator extreme for hidden bearish
	PriceNormPct   float64 `yaml:"price_norm_pct"`   // price move that saturates magnitude
	OscNorm        float64 `yaml:"osc_norm"`         // oscillator move that saturates magnitude
}

// SweepConfig configures liquidity level discovery and sweep detection
type SweepConfig struct {
	Lookback          int     `yaml:"lookback"`
	EqualTolerancePct float64 `yaml:"equal_tolerance_pct"`
	MinPiercePct      float64 `yaml:"min_pierce_pct"`
	ScanBars          int     `yaml:"scan_bars"` // trailing bars checked for a sweep
	VolumeSpike       float64 `yaml:"volume_spike"`
	VolumeLookback    int     `yaml:"volume_lookback"`
	RejectionNorm     float64 `yaml:"rejection_norm"` // wick/body ratio at which quality saturates
}

// FVGConfig configures fair value gap detection
type FVGConfig struct {
	Lookback  int     `yaml:"lookback"`
	MinGapPct float64 `yaml:"min_gap_pct"`
}

// OrderBlockConfig configures order block detection
type OrderBlockConfig struct {
	Lookback       int     `yaml:"lookback"`
	VolumeMultiple float64 `yaml:"volume_multiple"`
	VolumeLookback int     `yaml:"volume_lookback"`
	MinBodyRatio   float64 `yaml:"min_body_ratio"` // expansion bar body / range
}

// TrapConfig configures breakout trap detection
type TrapConfig struct {
	Lookback int `yaml:"lookback"`
	Window   int `yaml:"window"` // bars allowed for the failure
}

// DefaultConfig returns the production detector thresholds
func DefaultConfig() Config {
	return Config{
		SwingSpan:  2,
		RecentBars: 10,
		Divergence: DivergenceConfig{
			Lookback:       60,
			MinSeparation:  3,
			MildMovePct:    3.0,
			HiddenLowBand:  40,
			HiddenHighBand: 60,
			PriceNormPct:   3.0,
			OscNorm:        15,
		},
		Sweep: SweepConfig{
			Lookback:          50,
			EqualTolerancePct: 0.1,
			MinPiercePct:      0.05,
			ScanBars:          3,
			VolumeSpike:       1.5,
			VolumeLookback:    20,
			RejectionNorm:     3.0,
		},
		FVG: FVGConfig{
			Lookback:  50,
			MinGapPct: 0.1,
		},
		OrderBlock: OrderBlockConfig{
			Lookback:       50,
			VolumeMultiple: 1.5,
			VolumeLookback: 20,
			MinBodyRatio:   0.5,
		},
		Trap: TrapConfig{
			Lookback: 50,
			Window:   3,
		},
	}
}
