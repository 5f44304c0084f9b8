package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lamim/storyteller/internal/config"
	"github.com/lamim/storyteller/internal/metrics"
)

const (
	// DefaultBaseRetryDelay is the base delay for exponential backoff
	DefaultBaseRetryDelay = 2 * time.Second
	// DefaultMaxBackoffDuration caps a single backoff sleep
	DefaultMaxBackoffDuration = 30 * time.Second
	// RateLimitBackoffMultiplier is the multiplier for rate limit backoff (3^n)
	RateLimitBackoffMultiplier = 3
)

// Client sends single-prompt completions to the configured provider.
// The ollama provider uses the official ollama client against /api/chat; the
// openai provider covers any OpenAI-compatible server through go-openai.
type Client struct {
	cfg            config.ModelConfig
	systemPrompt   string
	ollama         *ollama.Client
	openai         *openai.Client
	setupErr       error
	limiter        *rate.Limiter
	metrics        *metrics.Collector
	logger         *slog.Logger
	baseRetryDelay time.Duration
}

// Option configures optional Client behaviour
type Option func(*Client)

// WithSystemPrompt sends a system message ahead of every prompt
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.systemPrompt = prompt }
}

// WithMetrics records request latency and rate limiter waits
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a new API client for one model
func NewClient(cfg config.ModelConfig, apiKey string, logger *slog.Logger, opts ...Option) *Client {
	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// The timeout bounds the wait for the first response byte, not the whole
	// streamed body, so long stories are not cut off mid-generation.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	c := &Client{
		cfg:            cfg,
		limiter:        newLimiter(cfg.RateLimitPerMinute),
		logger:         logger,
		baseRetryDelay: DefaultBaseRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Provider == config.ProviderOpenAI {
		oc := openai.DefaultConfig(apiKey)
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		oc.HTTPClient = &http.Client{Transport: transport}
		c.openai = openai.NewClientWithConfig(oc)
		return c
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		c.setupErr = err
		return c
	}
	c.ollama = ollama.NewClient(base, &http.Client{
		Transport: &ollamaTransport{base: transport, apiKey: apiKey},
	})

	return c
}

// Streaming reports whether tokens are forwarded to the observer as they arrive
func (c *Client) Streaming() bool {
	return !c.cfg.DisableStreaming
}

// Complete sends prompt as a single user message and returns the full reply.
// When streaming is enabled each fragment is passed to onToken as it arrives.
// Every failure is returned as a *GenerationError.
func (c *Client) Complete(ctx context.Context, prompt string, onToken TokenObserver) (string, error) {
	if onToken == nil {
		onToken = func(string) {}
	}

	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return "", c.newError(0, "rate limiter wait failed", false, err)
	}
	c.metrics.RecordRateLimiterWait(c.cfg.ModelName, time.Since(waitStart))

	messages := make([]Message, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: c.systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	maxRetries := c.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr *GenerationError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sleepDuration := c.backoff(attempt, lastErr)

			c.logger.Warn("Retrying generation request",
				"attempt", attempt,
				"max_retries", maxRetries,
				"backoff", sleepDuration,
				"model", c.cfg.ModelName,
				"is_rate_limit", lastErr.StatusCode == http.StatusTooManyRequests)

			select {
			case <-ctx.Done():
				return "", c.newError(0, "cancelled while waiting to retry", false, ctx.Err())
			case <-time.After(sleepDuration):
			}
		}

		emitted := false
		observer := func(token string) {
			emitted = true
			onToken(token)
		}

		start := time.Now()
		text, err := c.do(ctx, messages, observer)
		c.metrics.RecordAPIRequest(c.cfg.ModelName, time.Since(start), err == nil)
		if err == nil {
			c.logger.Debug("Generation request completed",
				"model", c.cfg.ModelName,
				"attempt", attempt+1,
				"duration_ms", time.Since(start).Milliseconds(),
				"chars", len(text))
			return text, nil
		}

		var genErr *GenerationError
		if !errors.As(err, &genErr) {
			genErr = c.newError(0, err.Error(), false, err)
		}
		genErr.Attempts = attempt + 1
		lastErr = genErr

		// Tokens already shown to the user cannot be taken back
		if !genErr.Retryable || emitted || ctx.Err() != nil {
			return "", genErr
		}
	}

	return "", lastErr
}

func (c *Client) backoff(attempt int, lastErr *GenerationError) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.baseRetryDelay

	// Rate limits get longer delays (3^n)
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests {
		backoff = time.Duration(math.Pow(RateLimitBackoffMultiplier, float64(attempt))) * c.baseRetryDelay
	}

	maxBackoff := DefaultMaxBackoffDuration
	if c.cfg.MaxBackoffSeconds > 0 {
		maxBackoff = time.Duration(c.cfg.MaxBackoffSeconds) * time.Second
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	jitter := time.Duration(float64(backoff) * 0.1 * (2*float64(time.Now().UnixNano()%100)/100 - 1))
	return backoff + jitter
}

func (c *Client) do(ctx context.Context, messages []Message, onToken TokenObserver) (string, error) {
	if c.openai != nil {
		return c.doOpenAI(ctx, messages, onToken)
	}
	return c.doOllama(ctx, messages, onToken)
}

func (c *Client) doOpenAI(ctx context.Context, messages []Message, onToken TokenObserver) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.ModelName,
		Temperature: float32(c.cfg.Temperature),
		TopP:        float32(c.cfg.TopP),
		MaxTokens:   c.cfg.MaxOutputTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	if !c.Streaming() {
		resp, err := c.openai.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", c.openAIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", c.newError(0, "no choices returned in response", true, nil)
		}
		return resp.Choices[0].Message.Content, nil
	}

	req.Stream = true
	stream, err := c.openai.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", c.openAIError(err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			c.logger.Warn("Failed to close stream", "error", err)
		}
	}()

	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", c.openAIError(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			content.WriteString(delta)
			onToken(delta)
		}
	}

	return content.String(), nil
}

// openAIError maps go-openai failures onto GenerationError
func (c *Client) openAIError(err error) *GenerationError {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError

	switch {
	case errors.As(err, &apiErr):
		return c.newError(apiErr.HTTPStatusCode, apiErr.Message, isStatusCodeRetryable(apiErr.HTTPStatusCode), err)
	case errors.As(err, &reqErr):
		return c.newError(reqErr.HTTPStatusCode, err.Error(), isStatusCodeRetryable(reqErr.HTTPStatusCode), err)
	default:
		return c.newError(0, err.Error(), true, err)
	}
}

func (c *Client) newError(status int, message string, retryable bool, cause error) *GenerationError {
	return &GenerationError{
		Provider:   c.cfg.Provider,
		Model:      c.cfg.ModelName,
		StatusCode: status,
		Message:    message,
		Retryable:  retryable,
		Err:        cause,
	}
}

func isStatusCodeRetryable(statusCode int) bool {
	// Retry on rate limits and server errors
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// GenerationError is the single error type for failed completions
type GenerationError struct {
	Provider   string
	Model      string
	StatusCode int
	Message    string
	Retryable  bool
	Attempts   int
	Err        error
}

func (e *GenerationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s generation failed", e.Provider)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil && !strings.Contains(e.Message, e.Err.Error()) {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " (after %d attempts)", e.Attempts)
	}
	return b.String()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
