package exits

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/indicators"
	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

var entryTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// holdingLong is a snapshot where nothing argues for closing a long
func holdingLong() *indicators.Snapshot {
	return &indicators.Snapshot{
		Price:       105,
		EMAFast:     103,
		EMASlow:     101,
		PrevEMAFast: 102.5,
		PrevEMASlow: 100.8,
		MACD: indicators.MACDValue{
			MACD: 1.2, Signal: 0.9, Histogram: 0.3,
			PrevMACD: 1.1, PrevSignal: 0.85, PrevHistogram: 0.25,
		},
		Series: indicators.Series{Histogram: []float64{0.1, 0.2, 0.25, 0.3}},
	}
}

func greenBar() market.Candle {
	return market.Candle{Timestamp: entryTime.Add(3 * time.Hour), Open: 104, High: 106, Low: 103.5, Close: 105}
}

func longInputs(snap *indicators.Snapshot, c market.Candle) ExitInputs {
	return ExitInputs{
		Symbol:      "BTC-USD",
		Direction:   market.Bullish,
		EntryPrice:  100,
		EntryTime:   entryTime,
		CurrentTime: entryTime.Add(4 * time.Hour),
		Candle:      c,
		Snapshot:    snap,
	}
}

func TestExitEvaluator_NoExit(t *testing.T) {
	evaluator := NewExitEvaluator(DefaultExitConfig())

	result, err := evaluator.EvaluateExit(context.Background(), longInputs(holdingLong(), greenBar()))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.ShouldExit {
		t.Errorf("Expected no exit, but got exit recommendation: %s (%s)", result.ReasonString, result.TriggeredBy)
	}
	if math.Abs(result.UnrealizedPnL-5.0) > 1e-9 {
		t.Errorf("Expected 5%% PnL, got %.2f%%", result.UnrealizedPnL)
	}
	if result.HoursHeld != 4.0 {
		t.Errorf("Expected 4h held, got %.1f", result.HoursHeld)
	}
}

func TestExitEvaluator_OpposingCross(t *testing.T) {
	snap := holdingLong()
	snap.MACD = indicators.MACDValue{MACD: 0.8, Signal: 0.9, PrevMACD: 1.0, PrevSignal: 0.95, Histogram: -0.1}

	result, err := NewExitEvaluator(nil).EvaluateExit(context.Background(), longInputs(snap, greenBar()))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.ExitReason != OpposingCross {
		t.Errorf("Expected opposing_cross, got %s", result.ExitReason)
	}
}

func TestExitEvaluator_HistogramFade(t *testing.T) {
	snap := holdingLong()
	snap.Series.Histogram = []float64{0.2, 0.4, 0.3, 0.2}

	result, _ := NewExitEvaluator(nil).EvaluateExit(context.Background(), longInputs(snap, greenBar()))
	if result.ExitReason != HistogramFade {
		t.Errorf("Expected histogram_fade, got %s", result.ExitReason)
	}

	// one shrinking bar is not enough with the default of two
	snap.Series.Histogram = []float64{0.2, 0.3, 0.4, 0.35}
	result, _ = NewExitEvaluator(nil).EvaluateExit(context.Background(), longInputs(snap, greenBar()))
	if result.ShouldExit {
		t.Errorf("Expected hold, got %s", result.ExitReason)
	}

	// a fading histogram that already flipped negative is not a fade
	snap.Series.Histogram = []float64{0.2, 0.1, 0.05, -0.01}
	result, _ = NewExitEvaluator(nil).EvaluateExit(context.Background(), longInputs(snap, greenBar()))
	if result.ExitReason == HistogramFade {
		t.Errorf("Expected no fade once the histogram is negative")
	}
}

func TestExitEvaluator_FastEMABreach(t *testing.T) {
	bar := greenBar()
	bar.Open, bar.Close, bar.Low = 102, 102.8, 101.9

	result, _ := NewExitEvaluator(nil).EvaluateExit(context.Background(), longInputs(holdingLong(), bar))
	if result.ExitReason != FastEMABreach {
		t.Errorf("Expected fast_ema_breach, got %s", result.ExitReason)
	}
}

func TestExitEvaluator_OppositeCandle(t *testing.T) {
	bar := greenBar()
	bar.Open, bar.Close = 105.5, 104.5

	result, _ := NewExitEvaluator(nil).EvaluateExit(context.Background(), longInputs(holdingLong(), bar))
	if result.ExitReason != OppositeCandle {
		t.Errorf("Expected opposite_candle, got %s", result.ExitReason)
	}

	cfg := DefaultExitConfig()
	cfg.OppositeMinBody = 0.8
	result, _ = NewExitEvaluator(cfg).EvaluateExit(context.Background(), longInputs(holdingLong(), bar))
	if result.ShouldExit {
		t.Errorf("Expected small-bodied bar to be ignored, got %s", result.ExitReason)
	}
}

func TestExitEvaluator_Precedence(t *testing.T) {
	// every rule holds at once; the cross must win
	snap := holdingLong()
	snap.PrevEMAFast, snap.PrevEMASlow = 101.2, 101
	snap.EMAFast, snap.EMASlow = 100.9, 101
	snap.Series.Histogram = []float64{0.5, 0.3, 0.1}
	bar := market.Candle{Open: 101, High: 101.2, Low: 99.5, Close: 99.8}

	evaluator := NewExitEvaluator(nil)
	result, _ := evaluator.EvaluateExit(context.Background(), longInputs(snap, bar))
	if result.ExitReason != OpposingCross {
		t.Fatalf("Expected opposing_cross first, got %s", result.ExitReason)
	}

	cfg := DefaultExitConfig()
	cfg.EnableOpposingCross = false
	result, _ = NewExitEvaluator(cfg).EvaluateExit(context.Background(), longInputs(snap, bar))
	if result.ExitReason != HistogramFade {
		t.Errorf("Expected histogram_fade second, got %s", result.ExitReason)
	}

	cfg.EnableHistogramFade = false
	result, _ = NewExitEvaluator(cfg).EvaluateExit(context.Background(), longInputs(snap, bar))
	if result.ExitReason != FastEMABreach {
		t.Errorf("Expected fast_ema_breach third, got %s", result.ExitReason)
	}

	cfg.EnableFastEMABreach = false
	result, _ = NewExitEvaluator(cfg).EvaluateExit(context.Background(), longInputs(snap, bar))
	if result.ExitReason != OppositeCandle {
		t.Errorf("Expected opposite_candle last, got %s", result.ExitReason)
	}
}

func TestExitEvaluator_ShortMirrors(t *testing.T) {
	snap := &indicators.Snapshot{
		EMAFast: 97, EMASlow: 99, PrevEMAFast: 97.5, PrevEMASlow: 99.2,
		MACD:   indicators.MACDValue{MACD: -1.2, Signal: -0.9, Histogram: -0.3, PrevMACD: -1.1, PrevSignal: -0.85},
		Series: indicators.Series{Histogram: []float64{-0.1, -0.2, -0.3}},
	}
	red := market.Candle{Open: 96.5, High: 96.8, Low: 95.5, Close: 96}
	in := ExitInputs{Symbol: "EURUSD=X", Direction: market.Bearish, EntryPrice: 100,
		EntryTime: entryTime, CurrentTime: entryTime.Add(time.Hour), Candle: red, Snapshot: snap}

	result, err := NewExitEvaluator(nil).EvaluateExit(context.Background(), in)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.ShouldExit {
		t.Errorf("Expected short to hold, got %s", result.ExitReason)
	}
	if math.Abs(result.UnrealizedPnL-4.0) > 1e-9 {
		t.Errorf("Expected +4%% on the short, got %.2f%%", result.UnrealizedPnL)
	}

	in.Candle = market.Candle{Open: 96, High: 97.6, Low: 95.9, Close: 97.5}
	result, _ = NewExitEvaluator(nil).EvaluateExit(context.Background(), in)
	if result.ExitReason != FastEMABreach {
		t.Errorf("Expected fast_ema_breach on close above EMA, got %s", result.ExitReason)
	}
}

func TestExitEvaluator_RejectsBadInputs(t *testing.T) {
	evaluator := NewExitEvaluator(nil)

	in := longInputs(holdingLong(), greenBar())
	in.Direction = market.Neutral
	if _, err := evaluator.EvaluateExit(context.Background(), in); err == nil {
		t.Error("Expected error for neutral position")
	}

	in = longInputs(nil, greenBar())
	if _, err := evaluator.EvaluateExit(context.Background(), in); err == nil {
		t.Error("Expected error for missing snapshot")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := evaluator.EvaluateExit(ctx, longInputs(holdingLong(), greenBar())); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestExitReasonString(t *testing.T) {
	tests := map[ExitReason]string{
		NoExit:         "no_exit",
		OpposingCross:  "opposing_cross",
		HistogramFade:  "histogram_fade",
		FastEMABreach:  "fast_ema_breach",
		OppositeCandle: "opposite_candle",
		ExitReason(99): "unknown",
	}
	for reason, want := range tests {
		if got := reason.String(); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
	}
}
