package indicators

// MACDParams are the fast/slow/signal EMA periods.
type MACDParams struct {
	Fast   int `yaml:"fast" json:"fast"`
	Slow   int `yaml:"slow" json:"slow"`
	Signal int `yaml:"signal" json:"signal"`
}

// MACDSeries holds the full MACD, signal and histogram lines.
type MACDSeries struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACDValue is the MACD state at the latest bar plus the previous bar so
// callers can detect crosses.
type MACDValue struct {
	MACD          float64 `json:"macd"`
	Signal        float64 `json:"signal"`
	Histogram     float64 `json:"histogram"`
	PrevMACD      float64 `json:"prev_macd"`
	PrevSignal    float64 `json:"prev_signal"`
	PrevHistogram float64 `json:"prev_histogram"`
}

// MACD computes EMA(fast) − EMA(slow), its signal EMA and the histogram.
func MACD(closes []float64, p MACDParams) MACDSeries {
	fast := EMA(closes, p.Fast)
	slow := EMA(closes, p.Slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	signal := EMA(line, p.Signal)
	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - signal[i]
	}
	return MACDSeries{MACD: line, Signal: signal, Histogram: hist}
}

// Latest collapses the series into its last two bars.
func (s MACDSeries) Latest() MACDValue {
	return MACDValue{
		MACD:          last(s.MACD),
		Signal:        last(s.Signal),
		Histogram:     last(s.Histogram),
		PrevMACD:      prev(s.MACD),
		PrevSignal:    prev(s.Signal),
		PrevHistogram: prev(s.Histogram),
	}
}

// BullishCross is true when MACD crossed above its signal on the last bar.
func (v MACDValue) BullishCross() bool {
	return v.PrevMACD <= v.PrevSignal && v.MACD > v.Signal
}

// BearishCross is true when MACD crossed below its signal on the last bar.
func (v MACDValue) BearishCross() bool {
	return v.PrevMACD >= v.PrevSignal && v.MACD < v.Signal
}

func (v MACDValue) ZeroCrossUp() bool {
	return v.PrevMACD <= 0 && v.MACD > 0
}

func (v MACDValue) ZeroCrossDown() bool {
	return v.PrevMACD >= 0 && v.MACD < 0
}
