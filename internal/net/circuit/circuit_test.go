package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		HalfOpenRequests: 1,
		Interval:         time.Minute,
		Timeout:          50 * time.Millisecond,
	}
}

func TestManager_ClosedOnSuccess(t *testing.T) {
	m := NewManager(testConfig())

	err := m.Call(context.Background(), "binance", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Errorf("Successful call should not error: %v", err)
	}
	if got := m.State("binance"); got != "closed" {
		t.Errorf("Breaker should remain closed after success, got %s", got)
	}
	if got := m.State("never-used"); got != "closed" {
		t.Errorf("Unknown breaker should report closed, got %s", got)
	}
}

func TestManager_OpensAfterConsecutiveFailures(t *testing.T) {
	m := NewManager(testConfig())
	boom := errors.New("upstream 500")

	for i := 0; i < 3; i++ {
		err := m.Call(context.Background(), "yahoo", func(ctx context.Context) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("Call %d should surface the provider error, got %v", i, err)
		}
	}
	if got := m.State("yahoo"); got != "open" {
		t.Fatalf("Breaker should be open after 3 failures, got %s", got)
	}

	called := false
	err := m.Call(context.Background(), "yahoo", func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Open breaker should return ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Open breaker must not invoke the function")
	}

	// other providers are unaffected
	if err := m.Call(context.Background(), "binance", func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Independent breaker should still pass: %v", err)
	}
}

func TestManager_HalfOpenRecovery(t *testing.T) {
	m := NewManager(testConfig())
	var transitions []gobreaker.State
	m.OnStateChange(func(name string, from, to gobreaker.State) {
		transitions = append(transitions, to)
	})

	for i := 0; i < 3; i++ {
		_ = m.Call(context.Background(), "alphavantage", func(ctx context.Context) error { return errors.New("fail") })
	}
	time.Sleep(80 * time.Millisecond)

	if err := m.Call(context.Background(), "alphavantage", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Half-open probe should be allowed: %v", err)
	}
	if got := m.State("alphavantage"); got != "closed" {
		t.Errorf("Successful probe should close the breaker, got %s", got)
	}
	want := []gobreaker.State{gobreaker.StateOpen, gobreaker.StateHalfOpen, gobreaker.StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestManager_CancellationIsNotAFailure(t *testing.T) {
	m := NewManager(testConfig())
	for i := 0; i < 5; i++ {
		_ = m.Call(context.Background(), "binance", func(ctx context.Context) error { return context.Canceled })
	}
	if got := m.State("binance"); got != "closed" {
		t.Errorf("Cancelled calls should not trip the breaker, got %s", got)
	}
	stats := m.Stats()["binance"]
	if stats.TotalFailures != 0 {
		t.Errorf("Expected no recorded failures, got %d", stats.TotalFailures)
	}
}
