package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
)

const DefaultBaseURL = "https://api.kraken.com"

// Adapter fetches OHLC bars from Kraken's public REST API. Kraken returns
// at most 720 bars per call and has no limit parameter.
type Adapter struct {
	baseURL string
	pool    *httpclient.ClientPool
}

func NewAdapter(baseURL string, pool *httpclient.ClientPool) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{baseURL: strings.TrimRight(baseURL, "/"), pool: pool}
}

func (a *Adapter) Name() string { return "kraken" }

func (a *Adapter) Supports(class market.AssetClass) bool {
	return class == market.Crypto
}

type ohlcResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

func (a *Adapter) FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	minutes, ok := intervals[tf]
	if !ok {
		return nil, providers.ErrUnsupported
	}

	q := url.Values{}
	q.Set("pair", NormalizeSymbol(symbol))
	q.Set("interval", strconv.Itoa(minutes))
	endpoint := a.baseURL + "/0/public/OHLC?" + q.Encode()

	var resp ohlcResponse
	if err := a.pool.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("kraken ohlc %s: %w", symbol, err)
	}
	if len(resp.Error) > 0 {
		for _, e := range resp.Error {
			if strings.Contains(e, "Unknown asset pair") {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("kraken ohlc %s: %s", symbol, strings.Join(resp.Error, "; "))
	}

	var candles []market.Candle
	for key, raw := range resp.Result {
		if key == "last" {
			continue
		}
		var rows [][]interface{}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("kraken ohlc %s: decode rows: %w", symbol, err)
		}
		for _, row := range rows {
			if c, ok := parseRow(row); ok {
				candles = append(candles, c)
			}
		}
		break // one pair per request
	}
	return providers.Trim(candles, limit), nil
}

var intervals = map[market.Timeframe]int{
	market.TF1m:  1,
	market.TF5m:  5,
	market.TF15m: 15,
	market.TF30m: 30,
	market.TF1h:  60,
	market.TF4h:  240,
	market.TF1d:  1440,
}

// NormalizeSymbol converts symbol to Kraken format (BTC-USD -> XBTUSD)
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	symbol = strings.NewReplacer("/", "", "-", "").Replace(symbol)
	if strings.HasSuffix(symbol, "USDT") {
		symbol = strings.TrimSuffix(symbol, "T") // USDT quotes map onto USD books
	}
	if strings.HasPrefix(symbol, "BTC") {
		return strings.Replace(symbol, "BTC", "XBT", 1)
	}
	return symbol
}

// parseRow reads [time, open, high, low, close, vwap, volume, count]
func parseRow(row []interface{}) (market.Candle, bool) {
	if len(row) < 7 {
		return market.Candle{}, false
	}
	ts, ok := row[0].(float64)
	if !ok {
		return market.Candle{}, false
	}
	c := market.Candle{
		Timestamp: time.Unix(int64(ts), 0).UTC(),
		Open:      parseStringFloat(row[1]),
		High:      parseStringFloat(row[2]),
		Low:       parseStringFloat(row[3]),
		Close:     parseStringFloat(row[4]),
		Volume:    parseStringFloat(row[6]),
	}
	return c, c.Close > 0
}

func parseStringFloat(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	case float64:
		return val
	}
	return 0.0
}
