package indicators

import (
	"fmt"
	"sort"
	"strings"
)

// Profile is a named parameter set for the indicator library. Every
// trading style reads the same functions through a different profile.
type Profile struct {
	Name           string      `yaml:"name" json:"name"`
	EMAFast        int         `yaml:"ema_fast" json:"ema_fast"`
	EMASlow        int         `yaml:"ema_slow" json:"ema_slow"`
	EMATrend       int         `yaml:"ema_trend" json:"ema_trend"`
	SMABreadth     int         `yaml:"sma_breadth" json:"sma_breadth"`
	MACD           MACDParams  `yaml:"macd" json:"macd"`
	RSIPeriod      int         `yaml:"rsi_period" json:"rsi_period"`
	RSIOverbought  float64     `yaml:"rsi_overbought" json:"rsi_overbought"`
	RSIOversold    float64     `yaml:"rsi_oversold" json:"rsi_oversold"`
	Stoch          StochParams `yaml:"stoch" json:"stoch"`
	BollingerLen   int         `yaml:"bollinger_period" json:"bollinger_period"`
	BollingerK     float64     `yaml:"bollinger_k" json:"bollinger_k"`
	ATRPeriod      int         `yaml:"atr_period" json:"atr_period"`
	ADXPeriod      int         `yaml:"adx_period" json:"adx_period"`
	HullPeriod     int         `yaml:"hull_period" json:"hull_period"`
	ZLEMAPeriod    int         `yaml:"zlema_period" json:"zlema_period"`
	VolumeLookback int         `yaml:"volume_lookback" json:"volume_lookback"`
}

const (
	ProfileScalping = "scalping"
	ProfileSwing    = "swing"
	ProfileReversal = "reversal"
)

// ScalpingProfile is tuned for 1m-15m charts.
func ScalpingProfile() Profile {
	return Profile{
		Name:           ProfileScalping,
		EMAFast:        9,
		EMASlow:        21,
		EMATrend:       200,
		SMABreadth:     50,
		MACD:           MACDParams{Fast: 8, Slow: 21, Signal: 5},
		RSIPeriod:      7,
		RSIOverbought:  70,
		RSIOversold:    30,
		Stoch:          StochParams{K: 5, SmoothK: 3, D: 3},
		BollingerLen:   20,
		BollingerK:     2.0,
		ATRPeriod:      14,
		ADXPeriod:      14,
		HullPeriod:     9,
		ZLEMAPeriod:    21,
		VolumeLookback: 20,
	}
}

// SwingProfile is the default for 1h-1d charts.
func SwingProfile() Profile {
	return Profile{
		Name:           ProfileSwing,
		EMAFast:        20,
		EMASlow:        50,
		EMATrend:       200,
		SMABreadth:     50,
		MACD:           MACDParams{Fast: 12, Slow: 26, Signal: 9},
		RSIPeriod:      14,
		RSIOverbought:  70,
		RSIOversold:    30,
		Stoch:          StochParams{K: 14, SmoothK: 3, D: 3},
		BollingerLen:   20,
		BollingerK:     2.0,
		ATRPeriod:      14,
		ADXPeriod:      14,
		HullPeriod:     20,
		ZLEMAPeriod:    20,
		VolumeLookback: 20,
	}
}

// ReversalProfile widens the bands and uses the fast EMA pair.
func ReversalProfile() Profile {
	p := SwingProfile()
	p.Name = ProfileReversal
	p.EMAFast = 9
	p.EMASlow = 21
	p.BollingerK = 2.5
	return p
}

var builtinProfiles = map[string]func() Profile{
	ProfileScalping: ScalpingProfile,
	ProfileSwing:    SwingProfile,
	ProfileReversal: ReversalProfile,
}

// ProfileByName resolves a built-in profile.
func ProfileByName(name string) (Profile, error) {
	ctor, ok := builtinProfiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown indicator profile %q (have %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return ctor(), nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for n := range builtinProfiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate rejects profiles whose periods would make the output meaningless.
func (p Profile) Validate() error {
	if p.EMAFast <= 0 || p.EMASlow <= 0 || p.EMATrend <= 0 {
		return fmt.Errorf("profile %s: EMA periods must be positive", p.Name)
	}
	if p.EMAFast >= p.EMASlow {
		return fmt.Errorf("profile %s: ema_fast (%d) must be below ema_slow (%d)", p.Name, p.EMAFast, p.EMASlow)
	}
	if p.MACD.Fast <= 0 || p.MACD.Slow <= p.MACD.Fast || p.MACD.Signal <= 0 {
		return fmt.Errorf("profile %s: invalid MACD %d/%d/%d", p.Name, p.MACD.Fast, p.MACD.Slow, p.MACD.Signal)
	}
	if p.RSIPeriod <= 0 || p.ATRPeriod <= 0 || p.ADXPeriod <= 0 {
		return fmt.Errorf("profile %s: RSI, ATR and ADX periods must be positive", p.Name)
	}
	if p.RSIOversold >= p.RSIOverbought {
		return fmt.Errorf("profile %s: rsi_oversold must be below rsi_overbought", p.Name)
	}
	if p.BollingerK < 1 || p.BollingerK > 4 {
		return fmt.Errorf("profile %s: bollinger_k %.2f out of range [1,4]", p.Name, p.BollingerK)
	}
	return nil
}
