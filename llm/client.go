// Package llm provides a provider-agnostic streaming LLM client. Requests go
// to an OpenAI-style chat-completions endpoint with stream=true; the client
// accumulates the full reply under a connection deadline and a streaming
// deadline, with a soft-complete floor for long streams that die late.
package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fitstack/planworker/fault"
)

// Defaults applied when the corresponding option is absent.
const (
	DefaultConnectTimeout   = 60 * time.Second
	DefaultStreamTimeout    = 55 * time.Second
	DefaultSoftFloorChars   = 2000
	DefaultMaxTokensCap     = 8192
	DefaultTemperature      = 0.6
	DefaultProgressInterval = 10 * time.Second

	// minResponseChars is the floor below which a completed reply is junk.
	minResponseChars = 20
)

// Client issues streaming chat-completion requests to a single configured
// endpoint.
type Client struct {
	provider Provider
	baseURL  string
	model    string

	httpClient  *http.Client
	logger      *slog.Logger
	retryConfig RetryConfig

	temperature      float64
	connectTimeout   time.Duration
	streamTimeout    time.Duration
	softFloorChars   int
	maxTokensCap     int
	progressInterval time.Duration
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system" or "user"
	Content string `json:"content"` // Message content
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(client *Client) {
		client.temperature = t
	}
}

// WithTimeouts overrides the connection and streaming deadlines.
func WithTimeouts(connect, stream time.Duration) Option {
	return func(client *Client) {
		client.connectTimeout = connect
		client.streamTimeout = stream
	}
}

// WithSoftFloor sets the accumulated-character floor above which a dying
// stream is treated as complete.
func WithSoftFloor(chars int) Option {
	return func(client *Client) {
		client.softFloorChars = chars
	}
}

// WithMaxTokensCap sets the clamp applied to per-call token hints.
func WithMaxTokensCap(n int) Option {
	return func(client *Client) {
		client.maxTokensCap = n
	}
}

// NewClient creates a client for the named provider. The provider must have
// been registered (import the providers package for side effects).
func NewClient(providerName, baseURL, model string, opts ...Option) (*Client, error) {
	provider := GetProvider(providerName)
	if provider == nil {
		return nil, fault.New(fault.ConfigError, "unknown LLM provider: %s", providerName)
	}
	if model == "" {
		return nil, fault.New(fault.ConfigError, "model is required")
	}

	c := &Client{
		provider:         provider,
		baseURL:          baseURL,
		model:            model,
		retryConfig:      DefaultRetryConfig(),
		temperature:      DefaultTemperature,
		connectTimeout:   DefaultConnectTimeout,
		streamTimeout:    DefaultStreamTimeout,
		softFloorChars:   DefaultSoftFloorChars,
		maxTokensCap:     DefaultMaxTokensCap,
		progressInterval: DefaultProgressInterval,
		logger:           slog.Default(),
		httpClient: &http.Client{
			// No client-level timeout: the connection and streaming
			// deadlines govern the call.
			Timeout: 0,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Generate sends system+user prompts and returns the accumulated reply text.
// maxTokensHint is clamped to the configured cap; zero means the cap.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokensHint int) (string, error) {
	maxTokens := maxTokensHint
	if maxTokens <= 0 || maxTokens > c.maxTokensCap {
		maxTokens = c.maxTokensCap
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		text, err := c.stream(ctx, systemPrompt, userPrompt, maxTokens)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if IsFatal(err) || attempt == c.retryConfig.MaxAttempts {
			return "", err
		}

		backoff := c.retryConfig.Backoff(attempt)
		c.logger.Debug("LLM request failed, retrying",
			"attempt", attempt,
			"max_attempts", c.retryConfig.MaxAttempts,
			"backoff", backoff,
			"error", err)

		select {
		case <-ctx.Done():
			return "", fault.Wrap(fault.AITimeout, ctx.Err())
		case <-time.After(backoff):
		}
	}
	return "", lastErr
}

// streamFrame is one SSE data frame of a chat-completions stream.
type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// stream performs one streaming request and accumulates the reply.
func (c *Client) stream(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	body, err := c.provider.BuildRequestBody(c.model, messages, c.temperature, maxTokens)
	if err != nil {
		return "", fault.Wrap(fault.AIError, fmt.Errorf("build request body: %w", err))
	}

	url := c.provider.BuildURL(c.baseURL)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return "", fault.Wrap(fault.AIError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	c.provider.SetHeaders(req)

	// Connection deadline: request start until response headers.
	var connTimedOut atomic.Bool
	connTimer := time.AfterFunc(c.connectTimeout, func() {
		connTimedOut.Store(true)
		cancel()
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	connTimer.Stop()
	if err != nil {
		if connTimedOut.Load() {
			return "", fault.New(fault.AITimeout, "no response headers after %s", c.connectTimeout)
		}
		return "", fault.Wrap(fault.AIError, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp.StatusCode)
	}

	// Streaming deadline: armed as soon as headers arrive, so a server that
	// never sends a body byte still times out.
	var streamTimedOut atomic.Bool
	streamTimer := time.AfterFunc(c.streamTimeout, func() {
		streamTimedOut.Store(true)
		cancel()
	})
	defer streamTimer.Stop()

	var out strings.Builder
	lastProgress := time.Now()
	done := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for !done && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			done = true
			break
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			// Malformed frames are skipped; the recovery parser deals
			// with whatever accumulated.
			continue
		}
		if len(frame.Choices) > 0 {
			out.WriteString(frame.Choices[0].Delta.Content)
		}

		if time.Since(lastProgress) >= c.progressInterval {
			c.logger.Info("LLM stream in progress",
				"model", c.model,
				"chars", out.Len(),
				"elapsed", time.Since(start).Round(time.Second))
			lastProgress = time.Now()
		}
	}

	if err := scanner.Err(); err != nil && !done {
		if out.Len() >= c.softFloorChars {
			// Long streams that die late are treated as complete enough.
			c.logger.Warn("LLM stream ended early, keeping partial output",
				"chars", out.Len(), "error", err)
			return c.finish(out.String())
		}
		if streamTimedOut.Load() {
			return "", fault.New(fault.AITimeout, "stream stalled after %d chars", out.Len())
		}
		return "", fault.Wrap(fault.AIError, fmt.Errorf("read stream: %w", err))
	}

	return c.finish(out.String())
}

// finish validates the accumulated reply.
func (c *Client) finish(text string) (string, error) {
	if len(text) < minResponseChars {
		return "", fault.New(fault.AIError, "response too short (%d chars)", len(text))
	}
	return text, nil
}

// statusError maps a non-2xx status code to its error code.
func statusError(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return fault.New(fault.AuthError, "LLM endpoint rejected credentials (status %d)", status)
	case http.StatusPaymentRequired:
		return fault.New(fault.QuotaExceeded, "LLM account out of quota (status %d)", status)
	case http.StatusTooManyRequests:
		return fault.New(fault.RateLimited, "LLM endpoint rate limited (status %d)", status)
	default:
		return fault.New(fault.AIError, "LLM endpoint returned status %d", status)
	}
}
