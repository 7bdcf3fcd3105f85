package indicators

import "math"

// SMA returns the simple moving average for every bar. Until a full window
// is available the mean of the bars seen so far is used, so the output has
// the same length as the input and never contains NaN.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 1 {
		copy(out, values)
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		window := i + 1
		if window > period {
			window = period
		}
		out[i] = sum / float64(window)
	}
	return out
}

// EMA is the exponential moving average seeded with the SMA of the first
// period values.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 1 {
		copy(out, values)
		return out
	}
	k := 2.0 / float64(period+1)
	sum := 0.0
	for i, v := range values {
		if i < period {
			sum += v
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (v-out[i-1])*k + out[i-1]
	}
	return out
}

// WMA is the linearly weighted moving average, newest bar weighted highest.
func WMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 1 {
		copy(out, values)
		return out
	}
	for i := range values {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		num, den := 0.0, 0.0
		for j := start; j <= i; j++ {
			w := float64(j - start + 1)
			num += values[j] * w
			den += w
		}
		out[i] = num / den
	}
	return out
}

// HMA is the Hull moving average: WMA(2·WMA(n/2) − WMA(n), √n).
func HMA(values []float64, period int) []float64 {
	if period <= 1 {
		return WMA(values, 1)
	}
	half := period / 2
	if half < 1 {
		half = 1
	}
	sq := int(math.Round(math.Sqrt(float64(period))))
	if sq < 1 {
		sq = 1
	}
	fast := WMA(values, half)
	slow := WMA(values, period)
	raw := make([]float64, len(values))
	for i := range values {
		raw[i] = 2*fast[i] - slow[i]
	}
	return WMA(raw, sq)
}

// ZLEMA removes lag by feeding the EMA with price plus its momentum over
// (period-1)/2 bars.
func ZLEMA(values []float64, period int) []float64 {
	lag := (period - 1) / 2
	adj := make([]float64, len(values))
	for i, v := range values {
		if lag > 0 && i >= lag {
			adj[i] = v + (v - values[i-lag])
		} else {
			adj[i] = v
		}
	}
	return EMA(adj, period)
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func prev(values []float64) float64 {
	if len(values) < 2 {
		return last(values)
	}
	return values[len(values)-2]
}
