package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
)

var ErrNotConfigured = errors.New("narrative endpoint not configured")

// HTTPConfig points at an OpenAI-compatible chat completions endpoint
type HTTPConfig struct {
	Endpoint    string        `yaml:"endpoint" validate:"omitempty,url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model" default:"gpt-4o-mini"`
	MaxTokens   int           `yaml:"max_tokens" default:"256" validate:"gte=0"`
	Temperature float64       `yaml:"temperature" default:"0.2" validate:"gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout" default:"20s" validate:"gte=0"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You are a trading analyst. Given a technical setup, reply with JSON only:
{"probability": <0-100 chance the setup reaches its first target>, "summary": "<one sentence>"}`

// HTTPGenerator asks a language model for the probability estimate
type HTTPGenerator struct {
	config HTTPConfig
	pool   *httpclient.ClientPool
}

func NewHTTPGenerator(config HTTPConfig, pool *httpclient.ClientPool) *HTTPGenerator {
	if pool == nil {
		pool = httpclient.NewClientPool(httpclient.DefaultClientConfig())
	}
	return &HTTPGenerator{config: config, pool: pool}
}

func (g *HTTPGenerator) Probability(ctx context.Context, in Input) (Narrative, error) {
	if g.config.Endpoint == "" {
		return Narrative{}, ErrNotConfigured
	}
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatRequest{
		Model:       g.config.Model,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(in)},
		},
	})
	if err != nil {
		return Narrative{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Narrative{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}

	resp, err := g.pool.Do(ctx, req)
	if err != nil {
		return Narrative{}, fmt.Errorf("narrative request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Narrative{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Narrative{}, &httpclient.StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return Narrative{}, fmt.Errorf("decode response: %w", err)
	}
	if chat.Error != nil {
		return Narrative{}, fmt.Errorf("model error: %s - %s", chat.Error.Type, chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return Narrative{}, fmt.Errorf("empty response")
	}

	var out struct {
		Probability float64 `json:"probability"`
		Summary     string  `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(chat.Choices[0].Message.Content)), &out); err != nil {
		return Narrative{}, fmt.Errorf("parse model output: %w", err)
	}
	if out.Probability < 0 || out.Probability > 100 {
		return Narrative{}, fmt.Errorf("probability %v out of range", out.Probability)
	}
	return Narrative{Probability: out.Probability, Summary: out.Summary, Source: "llm"}, nil
}

func buildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\nTimeframe: %s\nDirection: %s\nTechnical confidence: %.0f%%\nFear & greed: %.0f\n",
		in.Symbol, in.Timeframe, in.Direction, in.Confidence, in.Sentiment)
	if s := in.Snapshot; s != nil {
		fmt.Fprintf(&b, "Price: %g\nEMA fast/slow/trend: %g / %g / %g\nRSI: %.1f\nMACD histogram: %g\nADX: %.1f\nRVOL: %.2f\nATR: %g\n",
			s.Price, s.EMAFast, s.EMASlow, s.EMATrend, s.RSI.Value, s.MACD.Histogram, s.ADX.ADX, s.RelativeVolume, s.ATR.Value)
	}
	for _, ev := range in.Patterns.Recent("", "") {
		fmt.Fprintf(&b, "Pattern: %s\n", ev.Label)
	}
	return b.String()
}

// stripCodeFence removes a ```json ... ``` wrapper some models add
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
