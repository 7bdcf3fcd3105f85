package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(2.0, 2) // 2 RPS, burst of 2

	if !limiter.Allow("binance") {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow("binance") {
		t.Error("Second request should be allowed")
	}
	if limiter.Allow("binance") {
		t.Error("Third request should be blocked")
	}
}

func TestLimiter_IndependentKeys(t *testing.T) {
	limiter := NewLimiter(1.0, 1)

	if !limiter.Allow("binance") {
		t.Error("First request to binance should be allowed")
	}
	if !limiter.Allow("yahoo") {
		t.Error("First request to yahoo should be allowed")
	}
	if limiter.Allow("binance") {
		t.Error("Second request to binance should be blocked")
	}
}

func TestLimiter_ConfigureOverride(t *testing.T) {
	limiter := NewLimiter(1.0, 1)
	limiter.Configure("alphavantage", Limit{RPS: 0.1, Burst: 3})

	for i := 0; i < 3; i++ {
		if !limiter.Allow("alphavantage") {
			t.Errorf("Request %d should fit the configured burst", i)
		}
	}
	if limiter.Allow("alphavantage") {
		t.Error("Fourth request should exceed the configured burst")
	}

	stats := limiter.Stats()["alphavantage"]
	if stats.Burst != 3 {
		t.Errorf("Expected burst 3, got %d", stats.Burst)
	}
	if !stats.IsThrottled() {
		t.Error("Exhausted bucket should report throttled")
	}
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	limiter := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("fake") {
			t.Fatalf("Request %d should be allowed with no limit", i)
		}
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	limiter.Allow("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "slow"); err == nil {
		t.Error("Wait should fail when the next token is beyond the deadline")
	}
}

func TestPacer_SpacesCalls(t *testing.T) {
	p := NewPacer(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Three paced calls should take at least two intervals, took %v", elapsed)
	}

	off := NewPacer(0)
	for i := 0; i < 10; i++ {
		if err := off.Wait(ctx); err != nil {
			t.Fatalf("Disabled pacer should never block: %v", err)
		}
	}
}
