package sentiment

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
)

// Neutral is returned whenever no score can be obtained
const Neutral = 50.0

// Provider yields a 0..100 fear/greed score. Implementations never fail:
// they fall back to Neutral.
type Provider interface {
	Score(ctx context.Context) float64
}

type Config struct {
	Enabled   bool          `yaml:"enabled" default:"true"`
	URL       string        `yaml:"url" default:"https://api.alternative.me/fng/?limit=1" validate:"omitempty,url"`
	CacheTTL  time.Duration `yaml:"cache_ttl" default:"15m" validate:"gte=0"`
	Bonus     float64       `yaml:"bonus" default:"10" validate:"gte=0"`
	FearBand  float64       `yaml:"fear_band" default:"25" validate:"gte=0,lte=100"`
	GreedBand float64       `yaml:"greed_band" default:"75" validate:"gte=0,lte=100,gtfield=FearBand"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		URL:       "https://api.alternative.me/fng/?limit=1",
		CacheTTL:  15 * time.Minute,
		Bonus:     10,
		FearBand:  25,
		GreedBand: 75,
	}
}

// fngResponse is the alternative.me payload; values arrive as strings
type fngResponse struct {
	Name string `json:"name"`
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// FearGreed reads the alternative.me index and caches the last good value
// for CacheTTL. A failed refresh returns Neutral and is retried on the
// next call.
type FearGreed struct {
	config Config
	pool   *httpclient.ClientPool
	now    func() time.Time

	mu        sync.Mutex
	value     float64
	label     string
	fetchedAt time.Time
}

func NewFearGreed(config Config, pool *httpclient.ClientPool) *FearGreed {
	if pool == nil {
		pool = httpclient.NewClientPool(httpclient.DefaultClientConfig())
	}
	return &FearGreed{config: config, pool: pool, now: time.Now}
}

func (f *FearGreed) Score(ctx context.Context) float64 {
	if !f.config.Enabled {
		return Neutral
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.fetchedAt.IsZero() && f.now().Sub(f.fetchedAt) < f.config.CacheTTL {
		return f.value
	}

	v, label, err := f.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Fear & greed fetch failed, using neutral sentiment")
		return Neutral
	}
	f.value, f.label, f.fetchedAt = v, label, f.now()
	log.Debug().Float64("value", v).Str("label", label).Msg("Fear & greed refreshed")
	return v
}

// Label is the classification of the cached value, empty before the
// first successful fetch
func (f *FearGreed) Label() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.label
}

func (f *FearGreed) fetch(ctx context.Context) (float64, string, error) {
	var resp fngResponse
	if err := f.pool.GetJSON(ctx, f.config.URL, &resp); err != nil {
		return 0, "", fmt.Errorf("fear & greed: %w", err)
	}
	if len(resp.Data) == 0 {
		return 0, "", fmt.Errorf("fear & greed: empty data")
	}
	v, err := strconv.ParseFloat(resp.Data[0].Value, 64)
	if err != nil {
		return 0, "", fmt.Errorf("fear & greed: parse %q: %w", resp.Data[0].Value, err)
	}
	if v < 0 || v > 100 {
		return 0, "", fmt.Errorf("fear & greed: value %v out of range", v)
	}
	return v, resp.Data[0].ValueClassification, nil
}

// Static always returns the same score. Used offline and in tests.
type Static float64

func (s Static) Score(context.Context) float64 { return float64(s) }

// Adjustment is the score modifier for a trade direction: +bonus when an
// extreme reading agrees with it (greed for longs, fear for shorts), -bonus
// when it disagrees, zero inside the bands.
func Adjustment(score float64, dir market.Direction, cfg Config) float64 {
	var mood market.Direction
	switch {
	case score <= cfg.FearBand:
		mood = market.Bearish
	case score >= cfg.GreedBand:
		mood = market.Bullish
	default:
		return 0
	}
	switch dir {
	case mood:
		return cfg.Bonus
	case mood.Opposite():
		return -cfg.Bonus
	default:
		return 0
	}
}

// Describe renders a score for reasoning trails
func Describe(score float64, cfg Config) string {
	zone := "neutral"
	switch {
	case score <= cfg.FearBand:
		zone = "extreme fear"
	case score >= cfg.GreedBand:
		zone = "extreme greed"
	}
	return fmt.Sprintf("sentiment: fear & greed %.0f (%s)", score, zone)
}
