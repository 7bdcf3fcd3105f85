package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
)

const DefaultBaseURL = "https://api.binance.com"

// maxLimit is the largest page /api/v3/klines returns
const maxLimit = 1000

// Adapter fetches spot klines from the Binance REST API
type Adapter struct {
	baseURL string
	pool    *httpclient.ClientPool
}

// NewAdapter creates a new Binance adapter. An empty baseURL uses the public endpoint.
func NewAdapter(baseURL string, pool *httpclient.ClientPool) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{baseURL: strings.TrimRight(baseURL, "/"), pool: pool}
}

func (a *Adapter) Name() string { return "binance" }

func (a *Adapter) Supports(class market.AssetClass) bool {
	return class == market.Crypto
}

// FetchCandles fetches historical kline data
func (a *Adapter) FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	interval, ok := intervals[tf]
	if !ok {
		return nil, providers.ErrUnsupported
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	q := url.Values{}
	q.Set("symbol", NormalizeSymbol(symbol))
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := a.baseURL + "/api/v3/klines?" + q.Encode()

	var raw [][]interface{}
	if err := a.pool.GetJSON(ctx, endpoint, &raw); err != nil {
		var statusErr *httpclient.StatusError
		// -1121 invalid symbol comes back as 400
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest {
			log.Debug().Str("provider", a.Name()).Str("symbol", symbol).Msg("Symbol not listed")
			return nil, nil
		}
		return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
	}

	candles := make([]market.Candle, 0, len(raw))
	for _, row := range raw {
		c, err := parseKline(row)
		if err != nil {
			continue // Skip invalid klines
		}
		candles = append(candles, c)
	}
	return candles, nil
}

var intervals = map[market.Timeframe]string{
	market.TF1m:  "1m",
	market.TF5m:  "5m",
	market.TF15m: "15m",
	market.TF30m: "30m",
	market.TF1h:  "1h",
	market.TF4h:  "4h",
	market.TF1d:  "1d",
}

// NormalizeSymbol converts symbols to Binance format (BTC-USD -> BTCUSDT)
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	symbol = strings.NewReplacer("-", "", "/", "").Replace(symbol)

	if strings.HasSuffix(symbol, "USD") {
		return symbol + "T"
	}
	return symbol
}

// parseKline reads [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(row []interface{}) (market.Candle, error) {
	if len(row) < 6 {
		return market.Candle{}, fmt.Errorf("short kline row: %d fields", len(row))
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return market.Candle{}, fmt.Errorf("kline open time %v", row[0])
	}

	var vals [5]float64
	for i := range vals {
		s, ok := row[i+1].(string)
		if !ok {
			return market.Candle{}, fmt.Errorf("kline field %d not a string", i+1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Candle{}, err
		}
		vals[i] = f
	}

	return market.Candle{
		Timestamp: time.UnixMilli(int64(openTime)).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}
