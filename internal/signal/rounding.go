package signal

import (
	"math"

	"github.com/shopspring/decimal"
)

// TickPlaces picks a display precision from price magnitude
func TickPlaces(price float64) int32 {
	p := math.Abs(price)
	switch {
	case p >= 1000:
		return 2
	case p >= 10:
		return 3
	case p >= 1:
		return 5
	default:
		return 8
	}
}

// RoundPrice rounds price to the tick precision of ref, so every level in
// one plan shares the entry's precision
func RoundPrice(price, ref float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Round(TickPlaces(ref))
}
