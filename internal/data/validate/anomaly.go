package validate

import (
	"math"
	"sort"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// AnomalyConfig tunes MAD-based spike detection on bar returns
type AnomalyConfig struct {
	MADThreshold  float64 `yaml:"mad_threshold"`   // robust z-score above which a return is a spike
	WindowSize    int     `yaml:"window_size"`     // trailing returns compared against
	MinDataPoints int     `yaml:"min_data_points"` // window must hold at least this many returns
}

// DefaultAnomalyConfig returns conservative thresholds; only extreme prints are flagged
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		MADThreshold:  10.0,
		WindowSize:    30,
		MinDataPoints: 10,
	}
}

// AnomalyChecker finds bars whose close-to-close return is an outlier
// against the trailing window
type AnomalyChecker struct {
	config AnomalyConfig
}

func NewAnomalyChecker(config AnomalyConfig) *AnomalyChecker {
	if config.WindowSize <= 0 {
		config.WindowSize = 30
	}
	if config.MinDataPoints <= 0 {
		config.MinDataPoints = 10
	}
	if config.MADThreshold <= 0 {
		config.MADThreshold = 10
	}
	return &AnomalyChecker{config: config}
}

// Spikes returns indices of bars with an anomalous return. Input must be
// chronologically ordered.
func (ac *AnomalyChecker) Spikes(candles []market.Candle) []int {
	if len(candles) < ac.config.MinDataPoints+2 {
		return nil
	}

	returns := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		if prev := candles[i-1].Close; prev > 0 {
			returns[i] = candles[i].Close/prev - 1
		}
	}

	var out []int
	for i := 1; i < len(returns); i++ {
		start := i - ac.config.WindowSize
		if start < 1 {
			start = 1
		}
		window := returns[start:i]
		if len(window) < ac.config.MinDataPoints {
			continue
		}
		if math.Abs(madScore(window, returns[i])) > ac.config.MADThreshold {
			out = append(out, i)
		}
	}
	return out
}

// madScore is the robust z-score of value against window
func madScore(window []float64, value float64) float64 {
	if len(window) == 0 {
		return 0
	}
	m := median(window)
	deviations := make([]float64, len(window))
	for i, v := range window {
		deviations[i] = math.Abs(v - m)
	}
	mad := median(deviations)
	if mad == 0 {
		return 0
	}
	return (value - m) / mad
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
