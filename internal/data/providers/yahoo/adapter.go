package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/data/providers"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Adapter reads the public chart API. It covers every asset class, which
// makes it the broad fallback behind the venue-specific providers.
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

func (a *Adapter) Name() string { return "yahoo" }

func (a *Adapter) Supports(market.AssetClass) bool { return true }

// request is the native interval and lookback range for a timeframe. 4h has
// no native interval and is aggregated from hourly bars.
type request struct {
	interval  string
	rng       string
	aggregate time.Duration
}

var requests = map[market.Timeframe]request{
	market.TF1m:  {interval: "1m", rng: "5d"},
	market.TF5m:  {interval: "5m", rng: "30d"},
	market.TF15m: {interval: "15m", rng: "60d"},
	market.TF30m: {interval: "30m", rng: "60d"},
	market.TF1h:  {interval: "60m", rng: "180d"},
	market.TF4h:  {interval: "60m", rng: "730d", aggregate: 4 * time.Hour},
	market.TF1d:  {interval: "1d", rng: "2y"},
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (a *Adapter) FetchCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	req, ok := requests[tf]
	if !ok {
		return nil, providers.ErrUnsupported
	}

	q := url.Values{}
	q.Set("interval", req.interval)
	q.Set("range", req.rng)
	q.Set("includePrePost", "false")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", a.baseURL, url.PathEscape(NormalizeSymbol(symbol)), q.Encode())

	var resp chartResponse
	if err := a.pool.GetJSON(ctx, endpoint, &resp); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo chart %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	candles := toCandles(resp.Chart.Result[0])
	if req.aggregate > 0 {
		candles = market.Aggregate(candles, req.aggregate)
	}
	return providers.Trim(candles, limit), nil
}

// toCandles zips the parallel arrays; rows with any null price are skipped
func toCandles(r chartResult) []market.Candle {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	n := len(r.Timestamp)
	if len(q.Open) < n || len(q.High) < n || len(q.Low) < n || len(q.Close) < n {
		return nil
	}

	out := make([]market.Candle, 0, n)
	for i, ts := range r.Timestamp {
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		var vol float64
		if i < len(q.Volume) && q.Volume[i] != nil {
			vol = *q.Volume[i]
		}
		out = append(out, market.Candle{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      *q.Open[i],
			High:      *q.High[i],
			Low:       *q.Low[i],
			Close:     *q.Close[i],
			Volume:    vol,
		})
	}
	return out
}

// NormalizeSymbol maps venue-style crypto pairs onto Yahoo tickers
// (BTCUSDT -> BTC-USD). Other symbols already use Yahoo notation.
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.ContainsAny(symbol, "-=^.") {
		return symbol
	}
	for _, quote := range []string{"USDT", "USDC"} {
		if base := strings.TrimSuffix(symbol, quote); base != symbol && base != "" {
			return base + "-USD"
		}
	}
	return symbol
}
