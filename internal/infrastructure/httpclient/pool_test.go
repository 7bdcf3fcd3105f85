package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "confluence-engine/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"42"}`))
	}))
	defer srv.Close()

	pool := NewClientPool(DefaultClientConfig())
	var out struct {
		Value string `json:"value"`
	}
	require.NoError(t, pool.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "42", out.Value)
	assert.Equal(t, Stats{Requests: 1}, pool.Stats())
}

func TestGetJSONRateLimitedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	pool := NewClientPool(DefaultClientConfig())
	var out map[string]interface{}
	err := pool.GetJSON(context.Background(), srv.URL, &out)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestDoRetriesRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.MaxRetries = 1
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 5 * time.Millisecond
	pool := NewClientPool(cfg)

	var out map[string]interface{}
	require.NoError(t, pool.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, int64(1), pool.Stats().Retries)
}

func TestDefaultConfigDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	pool := NewClientPool(DefaultClientConfig())
	var out map[string]interface{}
	err := pool.GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRespectsCancelledContext(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.MaxConcurrency = 1
	pool := NewClientPool(cfg)
	pool.slots <- struct{}{} // saturate

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)
	_, err := pool.Do(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, pool.Stats().Requests)
}

func TestTransientErrors(t *testing.T) {
	assert.True(t, transient(syscall.ECONNREFUSED))
	assert.False(t, transient(context.Canceled))
	assert.False(t, transient(errors.New("no such host")))
}

func TestBackoffIsCapped(t *testing.T) {
	pool := NewClientPool(ClientConfig{BackoffBase: 100 * time.Millisecond, BackoffMax: 300 * time.Millisecond})
	assert.GreaterOrEqual(t, pool.backoff(1), 100*time.Millisecond)
	assert.LessOrEqual(t, pool.backoff(10), 330*time.Millisecond)
}
