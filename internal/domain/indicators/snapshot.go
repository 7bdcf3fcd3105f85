package indicators

import (
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// Snapshot is every indicator value at the latest closed bar. It is
// recomputed on each call and never cached between scans.
type Snapshot struct {
	Profile   string    `json:"profile"`
	Bars      int       `json:"bars"`
	Timestamp time.Time `json:"timestamp"`

	Price     float64 `json:"price"`
	PrevClose float64 `json:"prev_close"`

	EMAFast     float64 `json:"ema_fast"`
	EMASlow     float64 `json:"ema_slow"`
	EMATrend    float64 `json:"ema_trend"`
	PrevEMAFast float64 `json:"prev_ema_fast"`
	PrevEMASlow float64 `json:"prev_ema_slow"`
	SMABreadth  float64 `json:"sma_breadth"`
	HMA         float64 `json:"hma"`
	ZLEMA       float64 `json:"zlema"`

	MACD      MACDValue      `json:"macd"`
	RSI       RSIResult      `json:"rsi"`
	Stoch     StochValue     `json:"stoch"`
	Bollinger BollingerValue `json:"bollinger"`
	ATR       ATRResult      `json:"atr"`
	ADX       ADXValue       `json:"adx"`

	OBV            float64     `json:"obv"`
	OBVSlope       float64     `json:"obv_slope"`
	RelativeVolume float64     `json:"relative_volume"`
	Pivots         PivotLevels `json:"pivots"`

	Series Series `json:"-"`
}

// Series carries the full-length lines the pattern detectors and exit
// rules need.
type Series struct {
	Close     []float64
	RSI       []float64
	Histogram []float64
	EMAFast   []float64
	OBV       []float64
}

// Compute builds the snapshot for candles using profile p. Short input
// yields neutral values rather than an error.
func Compute(candles []market.Candle, p Profile) *Snapshot {
	s := &Snapshot{
		Profile:        p.Name,
		Bars:           len(candles),
		RSI:            RSIResult{Value: 50, Previous: 50, Period: p.RSIPeriod},
		Stoch:          StochValue{K: 50, D: 50, PrevK: 50, PrevD: 50},
		Bollinger:      BollingerValue{PercentB: 0.5},
		RelativeVolume: 1.0,
	}
	if len(candles) == 0 {
		return s
	}

	closes := market.Closes(candles)
	volumes := market.Volumes(candles)
	n := len(candles)

	s.Timestamp = candles[n-1].Timestamp
	s.Price = closes[n-1]
	s.PrevClose = prev(closes)

	fast := EMA(closes, p.EMAFast)
	slow := EMA(closes, p.EMASlow)
	s.EMAFast, s.PrevEMAFast = last(fast), prev(fast)
	s.EMASlow, s.PrevEMASlow = last(slow), prev(slow)
	s.EMATrend = last(EMA(closes, p.EMATrend))
	s.SMABreadth = last(SMA(closes, p.SMABreadth))
	s.HMA = last(HMA(closes, p.HullPeriod))
	s.ZLEMA = last(ZLEMA(closes, p.ZLEMAPeriod))

	macd := MACD(closes, p.MACD)
	s.MACD = macd.Latest()

	rsi := RSISeries(closes, p.RSIPeriod)
	s.RSI = CalculateRSI(closes, p.RSIPeriod)

	s.Stoch = Stochastic(candles, p.Stoch).Latest()
	s.Bollinger = Bollinger(closes, p.BollingerLen, p.BollingerK)
	s.ATR = CalculateATR(candles, p.ATRPeriod)
	s.ADX = ADX(candles, p.ADXPeriod).Latest()

	obv := OBV(candles)
	s.OBV = last(obv)
	if lb := p.VolumeLookback; lb > 0 && n > lb {
		s.OBVSlope = (obv[n-1] - obv[n-1-lb]) / float64(lb)
	}
	s.RelativeVolume = RelativeVolume(volumes, n-1, p.VolumeLookback)
	if n >= 2 {
		s.Pivots = ClassicPivots(candles[n-2])
	}

	s.Series = Series{
		Close:     closes,
		RSI:       rsi,
		Histogram: macd.Histogram,
		EMAFast:   fast,
		OBV:       obv,
	}
	return s
}

// EMACrossUp is true when the fast EMA crossed above the slow EMA on the
// last bar.
func (s *Snapshot) EMACrossUp() bool {
	return s.PrevEMAFast <= s.PrevEMASlow && s.EMAFast > s.EMASlow
}

// EMACrossDown is true when the fast EMA crossed below the slow EMA on the
// last bar.
func (s *Snapshot) EMACrossDown() bool {
	return s.PrevEMAFast >= s.PrevEMASlow && s.EMAFast < s.EMASlow
}

// MomentumBias reads direction off the EMA pair and the MACD histogram. It
// is neutral unless both agree.
func (s *Snapshot) MomentumBias() market.Direction {
	switch {
	case s.EMAFast > s.EMASlow && s.MACD.Histogram > 0:
		return market.Bullish
	case s.EMAFast < s.EMASlow && s.MACD.Histogram < 0:
		return market.Bearish
	default:
		return market.Neutral
	}
}
