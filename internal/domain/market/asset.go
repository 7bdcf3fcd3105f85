package market

import (
	"fmt"
	"sort"
	"strings"
)

// AssetClass selects the gate profile and the provider chain for a symbol.
type AssetClass string

const (
	Equities AssetClass = "equities"
	Crypto   AssetClass = "crypto"
	Forex    AssetClass = "forex"
	Futures  AssetClass = "futures"
)

// AllClasses lists the supported asset classes in a stable order.
var AllClasses = []AssetClass{Equities, Crypto, Forex, Futures}

// ParseAssetClass validates a class name from configuration.
func ParseAssetClass(s string) (AssetClass, error) {
	c := AssetClass(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllClasses {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown asset class %q", s)
}

// Classify infers the asset class from the symbol shape used by the
// providers: BTC-USD / BTCUSDT are crypto, EURUSD=X is forex, ES=F is a
// future and anything else is treated as an equity ticker.
func Classify(symbol string) AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, "=X"):
		return Forex
	case strings.HasSuffix(s, "=F"):
		return Futures
	case strings.HasSuffix(s, "-USD"), strings.HasSuffix(s, "USDT"), strings.HasSuffix(s, "/USDT"):
		return Crypto
	default:
		return Equities
	}
}

// Direction of a pattern, gate evaluation or position.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Opposite flips bullish and bearish; neutral stays neutral.
func (d Direction) Opposite() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return Neutral
	}
}

// Sign is +1 for bullish, -1 for bearish and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case Bullish:
		return 1
	case Bearish:
		return -1
	default:
		return 0
	}
}

// SymbolUniverse maps asset classes to the symbols scanned for each.
// Membership here overrides Classify.
type SymbolUniverse struct {
	classes map[AssetClass][]string
	index   map[string]AssetClass
}

// NewSymbolUniverse builds a universe from a class → symbols mapping.
func NewSymbolUniverse(m map[AssetClass][]string) *SymbolUniverse {
	u := &SymbolUniverse{
		classes: make(map[AssetClass][]string, len(m)),
		index:   make(map[string]AssetClass),
	}
	for class, symbols := range m {
		for _, sym := range symbols {
			sym = strings.ToUpper(strings.TrimSpace(sym))
			if sym == "" {
				continue
			}
			if _, dup := u.index[sym]; dup {
				continue
			}
			u.index[sym] = class
			u.classes[class] = append(u.classes[class], sym)
		}
	}
	return u
}

// ClassOf returns the configured class for symbol, falling back to Classify.
func (u *SymbolUniverse) ClassOf(symbol string) AssetClass {
	if u != nil {
		if c, ok := u.index[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
			return c
		}
	}
	return Classify(symbol)
}

// Symbols returns the symbols registered for a class.
func (u *SymbolUniverse) Symbols(class AssetClass) []string {
	if u == nil {
		return nil
	}
	out := make([]string, len(u.classes[class]))
	copy(out, u.classes[class])
	return out
}

// All returns every symbol, grouped by class in AllClasses order.
func (u *SymbolUniverse) All() []string {
	if u == nil {
		return nil
	}
	var out []string
	for _, class := range AllClasses {
		syms := u.Symbols(class)
		sort.Strings(syms)
		out = append(out, syms...)
	}
	return out
}
