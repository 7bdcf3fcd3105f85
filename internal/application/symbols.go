package application

import (
	"fmt"
	"strings"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// DefaultWatchlist is scanned when neither symbols nor a configured
// universe are given
var DefaultWatchlist = map[market.AssetClass][]string{
	market.Equities: {"AAPL", "MSFT", "NVDA", "SPY"},
	market.Crypto:   {"BTC-USD", "ETH-USD", "SOL-USD"},
	market.Forex:    {"EURUSD=X", "GBPUSD=X", "USDJPY=X"},
	market.Futures:  {"ES=F", "GC=F"},
}

// ResolveSymbols picks the batch: explicit symbols win, then the
// configured universe (optionally one class), then the default watchlist.
// Symbols are upper-cased and de-duplicated, order kept.
func ResolveSymbols(explicit []string, class string, universe map[market.AssetClass][]string) ([]string, error) {
	var raw []string
	switch {
	case len(explicit) > 0:
		for _, s := range explicit {
			raw = append(raw, strings.Split(s, ",")...)
		}
	default:
		source := universe
		if len(source) == 0 {
			source = DefaultWatchlist
		}
		if class != "" {
			c, err := market.ParseAssetClass(class)
			if err != nil {
				return nil, err
			}
			raw = source[c]
		} else {
			for _, c := range market.AllClasses {
				raw = append(raw, source[c]...)
			}
		}
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols to scan")
	}
	return out, nil
}
