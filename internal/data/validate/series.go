package validate

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// SeriesReport summarises what Clean had to repair
type SeriesReport struct {
	Input      int   `json:"input"`
	Output     int   `json:"output"`
	Reordered  bool  `json:"reordered"`
	Duplicates int   `json:"duplicates"`
	Invalid    int   `json:"invalid"` // non-finite or non-positive prices, dropped
	Inverted   int   `json:"inverted"` // high below low or body outside range, repaired
	Spikes     []int `json:"spikes,omitempty"`
}

// Malformed is true when anything had to be repaired or dropped. Spikes
// alone do not make a series malformed.
func (r SeriesReport) Malformed() bool {
	return r.Reordered || r.Duplicates > 0 || r.Invalid > 0 || r.Inverted > 0
}

// Validator turns a raw provider series into an ordered, de-duplicated one
type Validator struct {
	anomalies *AnomalyChecker
}

func NewValidator(anomaly AnomalyConfig) *Validator {
	return &Validator{anomalies: NewAnomalyChecker(anomaly)}
}

// Clean returns a copy of candles sorted by timestamp with exact duplicate
// timestamps dropped (first occurrence wins) and unusable bars removed. The
// input is never modified.
func (v *Validator) Clean(candles []market.Candle) ([]market.Candle, SeriesReport) {
	report := SeriesReport{Input: len(candles)}
	if len(candles) == 0 {
		return nil, report
	}

	out := make([]market.Candle, 0, len(candles))
	for _, c := range candles {
		if !finitePositive(c.Open, c.High, c.Low, c.Close) || math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) {
			report.Invalid++
			continue
		}
		if c.Volume < 0 {
			c.Volume = 0
			report.Inverted++
		}
		hi := math.Max(math.Max(c.High, c.Low), math.Max(c.Open, c.Close))
		lo := math.Min(math.Min(c.High, c.Low), math.Min(c.Open, c.Close))
		if hi != c.High || lo != c.Low {
			c.High, c.Low = hi, lo
			report.Inverted++
		}
		out = append(out, c)
	}

	if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) }) {
		report.Reordered = true
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	}

	deduped := out[:0]
	for i, c := range out {
		if i > 0 && c.Timestamp.Equal(deduped[len(deduped)-1].Timestamp) {
			report.Duplicates++
			continue
		}
		deduped = append(deduped, c)
	}

	report.Output = len(deduped)
	report.Spikes = v.anomalies.Spikes(deduped)
	if report.Malformed() || len(report.Spikes) > 0 {
		log.Debug().
			Int("input", report.Input).
			Int("output", report.Output).
			Bool("reordered", report.Reordered).
			Int("duplicates", report.Duplicates).
			Int("invalid", report.Invalid).
			Int("inverted", report.Inverted).
			Ints("spikes", report.Spikes).
			Msg("Series repaired during validation")
	}
	return deduped, report
}

func finitePositive(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return true
}
