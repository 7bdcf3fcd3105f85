// Package httpclient is the shared outbound HTTP pool: one client, a
// concurrency cap across every provider, optional jitter and bounded
// retries for transient failures.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrRateLimited is wrapped by StatusError for HTTP 429 responses
var ErrRateLimited = errors.New("rate limited by upstream")

// StatusError is a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

type ClientConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	JitterRange    [2]int        `yaml:"jitter_ms"` // min/max jitter in milliseconds
	MaxRetries     int           `yaml:"max_retries"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	UserAgent      string        `yaml:"user_agent"`
}

// DefaultClientConfig does not retry: a failed provider call falls through
// to the next provider instead.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxConcurrency: 8,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     0,
		BackoffBase:    250 * time.Millisecond,
		BackoffMax:     2 * time.Second,
		UserAgent:      "confluence-engine/1.0",
	}
}

// Stats are cumulative pool counters
type Stats struct {
	Requests int64 `json:"requests"`
	Failures int64 `json:"failures"`
	Retries  int64 `json:"retries"`
	InFlight int64 `json:"in_flight"`
}

type ClientPool struct {
	config ClientConfig
	slots  chan struct{}
	client *http.Client

	requests atomic.Int64
	failures atomic.Int64
	retries  atomic.Int64
	inFlight atomic.Int64
}

func NewClientPool(config ClientConfig) *ClientPool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	return &ClientPool{
		config: config,
		slots:  make(chan struct{}, config.MaxConcurrency),
		client: &http.Client{Timeout: config.RequestTimeout},
	}
}

// Stats returns a snapshot of the counters
func (cp *ClientPool) Stats() Stats {
	return Stats{
		Requests: cp.requests.Load(),
		Failures: cp.failures.Load(),
		Retries:  cp.retries.Load(),
		InFlight: cp.inFlight.Load(),
	}
}

// Do sends req once a pool slot is free. Transient failures are retried up
// to MaxRetries times; the last response or error is returned.
func (cp *ClientPool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case cp.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	cp.inFlight.Add(1)
	defer func() {
		cp.inFlight.Add(-1)
		<-cp.slots
	}()

	if cp.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", cp.config.UserAgent)
	}
	if err := sleepCtx(ctx, cp.jitter()); err != nil {
		return nil, err
	}

	cp.requests.Add(1)
	for attempt := 0; ; attempt++ {
		resp, err := cp.client.Do(req.WithContext(ctx))
		retryable := (err != nil && transient(err)) || (err == nil && retryableStatus(resp.StatusCode))
		if !retryable || attempt >= cp.config.MaxRetries || ctx.Err() != nil {
			if err != nil {
				cp.failures.Add(1)
			}
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		wait := cp.backoff(attempt + 1)
		cp.retries.Add(1)
		log.Debug().Str("url", req.URL.Redacted()).Int("attempt", attempt+1).Dur("backoff", wait).Msg("Retrying HTTP request")
		if err := sleepCtx(ctx, wait); err != nil {
			cp.failures.Add(1)
			return nil, err
		}
	}
}

// GetJSON fetches url and decodes a 2xx body into out. Non-2xx responses
// come back as *StatusError.
func (cp *ClientPool) GetJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cp.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (cp *ClientPool) jitter() time.Duration {
	lo, hi := cp.config.JitterRange[0], cp.config.JitterRange[1]
	if lo >= hi {
		return 0
	}
	return time.Duration(lo+rand.Intn(hi-lo)) * time.Millisecond
}

// backoff doubles from BackoffBase up to BackoffMax, plus up to 10% jitter
func (cp *ClientPool) backoff(retry int) time.Duration {
	d := cp.config.BackoffBase << uint(retry-1)
	if d <= 0 || d > cp.config.BackoffMax {
		d = cp.config.BackoffMax
	}
	return d + time.Duration(rand.Int63n(int64(d)/10+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transient reports network failures worth one more try
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
