package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
	"github.com/csd2000/Trade-Flow-sub002/internal/net/budget"
)

const DefaultBaseURL = "https://www.alphavantage.co"

// Adapter is the quota-limited provider. Every request is charged against
// a daily budget before it goes out.
type Adapter struct {
	baseURL string
	apiKey  string
	pool    *httpclient.ClientPool
	budget  *budget.Tracker
	eastern *time.Location
}

func NewAdapter(baseURL, apiKey string, pool *httpclient.ClientPool, tracker *budget.Tracker) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &Adapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		pool:    pool,
		budget:  tracker,
		eastern: loc,
	}
}

func (a *Adapter) Name() string { return "alphavantage" }

func (a *Adapter) Supports(class market.AssetClass) bool {
	return class == market.Equities || class == market.Forex
}

var intradayIntervals = map[market.Timeframe]string{
	market.TF1m:  "1min",
	market.TF5m:  "5min",
	market.TF15m: "15min",
	market.TF30m: "30min",
	market.TF1h:  "60min",
	market.TF4h:  "60min",
}

func (a *Adapter) FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	class := market.Classify(symbol)
	q, seriesKey, err := a.query(symbol, class, tf)
	if err != nil {
		return nil, err
	}

	if a.budget != nil {
		if err := a.budget.Consume(); err != nil {
			var warn *budget.BudgetWarningError
			if !errors.As(err, &warn) {
				return nil, err
			}
			log.Warn().Str("provider", a.Name()).Err(err).Msg("Provider budget running low")
		}
	}

	var body map[string]json.RawMessage
	if err := a.pool.GetJSON(ctx, a.baseURL+"/query?"+q.Encode(), &body); err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", symbol, err)
	}

	// throttling is reported in-band with HTTP 200
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := body[key]; ok {
			return nil, fmt.Errorf("alphavantage %s: %w: %s", symbol, httpclient.ErrRateLimited, strings.Trim(string(msg), `"`))
		}
	}
	if _, ok := body["Error Message"]; ok {
		return nil, nil // unknown symbol
	}

	raw, ok := body[seriesKey]
	if !ok {
		return nil, nil
	}
	var series map[string]map[string]string
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("alphavantage %s: decode %s: %w", symbol, seriesKey, err)
	}

	candles := a.toCandles(series, class, tf)
	if tf == market.TF4h {
		candles = market.Aggregate(candles, 4*time.Hour)
	}
	return providers.Trim(candles, limit), nil
}

// query builds the request parameters and names the JSON key holding the bars
func (a *Adapter) query(symbol string, class market.AssetClass, tf market.Timeframe) (url.Values, string, error) {
	q := url.Values{}
	q.Set("apikey", a.apiKey)
	q.Set("outputsize", "full")

	if class == market.Forex {
		from, to, ok := splitPair(symbol)
		if !ok {
			return nil, "", providers.ErrUnsupported
		}
		q.Set("from_symbol", from)
		q.Set("to_symbol", to)
		if tf == market.TF1d {
			q.Set("function", "FX_DAILY")
			return q, "Time Series FX (Daily)", nil
		}
		interval, ok := intradayIntervals[tf]
		if !ok {
			return nil, "", providers.ErrUnsupported
		}
		q.Set("function", "FX_INTRADAY")
		q.Set("interval", interval)
		return q, fmt.Sprintf("Time Series FX (%s)", interval), nil
	}

	q.Set("symbol", strings.ToUpper(symbol))
	if tf == market.TF1d {
		q.Set("function", "TIME_SERIES_DAILY")
		return q, "Time Series (Daily)", nil
	}
	interval, ok := intradayIntervals[tf]
	if !ok {
		return nil, "", providers.ErrUnsupported
	}
	q.Set("function", "TIME_SERIES_INTRADAY")
	q.Set("interval", interval)
	return q, fmt.Sprintf("Time Series (%s)", interval), nil
}

// toCandles parses "1. open" style records. Equity timestamps are US/Eastern,
// FX timestamps are UTC.
func (a *Adapter) toCandles(series map[string]map[string]string, class market.AssetClass, tf market.Timeframe) []market.Candle {
	loc := a.eastern
	if class == market.Forex {
		loc = time.UTC
	}
	layout := "2006-01-02 15:04:05"
	if tf == market.TF1d {
		layout = "2006-01-02"
		loc = time.UTC
	}

	out := make([]market.Candle, 0, len(series))
	for stamp, rec := range series {
		ts, err := time.ParseInLocation(layout, stamp, loc)
		if err != nil {
			continue
		}
		c := market.Candle{
			Timestamp: ts.UTC(),
			Open:      field(rec, "1. open"),
			High:      field(rec, "2. high"),
			Low:       field(rec, "3. low"),
			Close:     field(rec, "4. close"),
			Volume:    field(rec, "5. volume"),
		}
		if c.Close <= 0 {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func field(rec map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(rec[key], 64)
	if err != nil {
		return 0
	}
	return v
}

// splitPair reads EURUSD=X or EUR/USD style symbols
func splitPair(symbol string) (string, string, bool) {
	s := strings.ToUpper(strings.TrimSuffix(symbol, "=X"))
	s = strings.ReplaceAll(s, "/", "")
	if len(s) != 6 {
		return "", "", false
	}
	return s[:3], s[3:], true
}
