package patterns

// Swing is a fractal pivot in a series
type Swing struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
	High  bool    `json:"high"`
}

// FindSwings returns fractal pivots: a high must exceed the span bars to its
// left and be at least as high as the span bars to its right (mirrored for
// lows). The last span bars can never be pivots, so nothing here depends on
// bars that have not printed yet.
func FindSwings(values []float64, span int, high bool) []Swing {
	if span < 1 {
		span = 1
	}
	var out []Swing
	for i := span; i < len(values)-span; i++ {
		if isPivot(values, i, span, high) {
			out = append(out, Swing{Index: i, Price: values[i], High: high})
		}
	}
	return out
}

func isPivot(values []float64, i, span int, high bool) bool {
	v := values[i]
	for j := 1; j <= span; j++ {
		left, right := values[i-j], values[i+j]
		if high {
			if v <= left || v < right {
				return false
			}
		} else {
			if v >= left || v > right {
				return false
			}
		}
	}
	return true
}

// lastPair returns the most recent swing and the latest earlier swing at
// least minSep bars before it.
func lastPair(swings []Swing, minSep int) (Swing, Swing, bool) {
	if len(swings) < 2 {
		return Swing{}, Swing{}, false
	}
	b := swings[len(swings)-1]
	for i := len(swings) - 2; i >= 0; i-- {
		if b.Index-swings[i].Index >= minSep {
			return swings[i], b, true
		}
	}
	return Swing{}, Swing{}, false
}

func swingsFrom(swings []Swing, start int) []Swing {
	for i, s := range swings {
		if s.Index >= start {
			return swings[i:]
		}
	}
	return nil
}
