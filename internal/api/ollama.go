package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

type statusKey struct{}

// ollamaTransport adds the optional API key and records the HTTP status of
// each response into the *int carried by the request context. The ollama
// client reports some failures as plain errors without the status code.
type ollamaTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *ollamaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.apiKey != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	resp, err := t.base.RoundTrip(req)
	if err == nil {
		if sink, ok := req.Context().Value(statusKey{}).(*int); ok {
			*sink = resp.StatusCode
		}
	}
	return resp, err
}

func (c *Client) ollamaOptions() map[string]any {
	opts := map[string]any{"temperature": c.cfg.Temperature}
	if c.cfg.TopP > 0 {
		opts["top_p"] = c.cfg.TopP
	}
	if c.cfg.ContextSize > 0 {
		opts["num_ctx"] = c.cfg.ContextSize
	}
	if c.cfg.NumThread > 0 {
		opts["num_thread"] = c.cfg.NumThread
	}
	if c.cfg.MaxOutputTokens > 0 {
		opts["num_predict"] = c.cfg.MaxOutputTokens
	}
	return opts
}

func (c *Client) doOllama(ctx context.Context, messages []Message, onToken TokenObserver) (string, error) {
	if c.ollama == nil {
		return "", c.newError(0, "invalid base URL", false, c.setupErr)
	}

	stream := c.Streaming()
	req := &ollama.ChatRequest{
		Model:   c.cfg.ModelName,
		Stream:  &stream,
		Options: c.ollamaOptions(),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollama.Message{Role: m.Role, Content: m.Content})
	}

	var status int
	ctx = context.WithValue(ctx, statusKey{}, &status)

	var content strings.Builder
	done := false
	err := c.ollama.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		if resp.Message.Content != "" {
			content.WriteString(resp.Message.Content)
			if stream {
				onToken(resp.Message.Content)
			}
		}
		if resp.Done {
			done = true
			c.logger.Debug("Chat finished",
				"model", resp.Model,
				"done_reason", resp.DoneReason,
				"prompt_tokens", resp.PromptEvalCount,
				"completion_tokens", resp.EvalCount,
				"total_ms", resp.TotalDuration.Milliseconds())
		}
		return nil
	})

	switch {
	case err != nil:
		return "", c.ollamaError(ctx, err, status)
	case status >= http.StatusBadRequest:
		return "", c.newError(status, fmt.Sprintf("request failed with status %d", status), isStatusCodeRetryable(status), nil)
	case !done:
		return "", c.newError(0, "stream ended before completion", true, nil)
	}
	return content.String(), nil
}

// ollamaError maps ollama client failures onto GenerationError
func (c *Client) ollamaError(ctx context.Context, err error, status int) *GenerationError {
	var statusErr ollama.StatusError
	switch {
	case errors.As(err, &statusErr):
		message := statusErr.ErrorMessage
		if message == "" {
			message = statusErr.Status
		}
		return c.newError(statusErr.StatusCode, message, isStatusCodeRetryable(statusErr.StatusCode), err)
	case ctx.Err() != nil:
		return c.newError(0, "request cancelled", false, err)
	case status >= http.StatusBadRequest:
		return c.newError(status, err.Error(), isStatusCodeRetryable(status), err)
	case status != 0:
		// error reported inside a successful response body
		return c.newError(0, err.Error(), false, err)
	default:
		return c.newError(0, fmt.Sprintf("request failed: %v", err), true, err)
	}
}
