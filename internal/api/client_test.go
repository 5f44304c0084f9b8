package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/lamim/storyteller/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ollamaConfig(baseURL string) config.ModelConfig {
	return config.ModelConfig{
		Provider:           config.ProviderOllama,
		BaseURL:            baseURL,
		ModelName:          "llama3.2:1b",
		Temperature:        0.7,
		ContextSize:        2048,
		NumThread:          4,
		RateLimitPerMinute: 1000,
		MaxRetries:         2,
		HTTPTimeoutSeconds: 5,
	}
}

func TestComplete_OllamaNonStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}

		var req ollama.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			return
		}
		if req.Stream == nil || *req.Stream {
			t.Error("Expected stream=false")
		}
		if req.Options["num_ctx"] != float64(2048) || req.Options["num_thread"] != float64(4) || req.Options["temperature"] != 0.7 {
			t.Errorf("Unexpected options: %+v", req.Options)
		}
		if _, ok := req.Options["num_predict"]; ok {
			t.Errorf("num_predict should be omitted when unset: %+v", req.Options)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "Tell me a story" {
			t.Errorf("Unexpected messages: %+v", req.Messages)
		}

		_, _ = w.Write([]byte(`{"model":"llama3.2:1b","message":{"role":"assistant","content":"Test response"},"done":true}`))
	}))
	defer server.Close()

	cfg := ollamaConfig(server.URL)
	cfg.DisableStreaming = true
	client := NewClient(cfg, "", testLogger())

	tokens := 0
	got, err := client.Complete(context.Background(), "Tell me a story", func(string) { tokens++ })
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != "Test response" {
		t.Errorf("Expected 'Test response', got '%s'", got)
	}
	if tokens != 0 {
		t.Errorf("Expected no streamed tokens, got %d", tokens)
	}
}

func TestComplete_OllamaStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollama.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream == nil || !*req.Stream {
			t.Error("Expected stream=true")
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, tok := range []string{"Once", " upon", " a time"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", tok)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"eval_count":3}`)
	}))
	defer server.Close()

	client := NewClient(ollamaConfig(server.URL), "", testLogger())

	var tokens []string
	got, err := client.Complete(context.Background(), "prompt", func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != "Once upon a time" {
		t.Errorf("Expected 'Once upon a time', got '%s'", got)
	}
	if len(tokens) != 3 || tokens[1] != " upon" {
		t.Errorf("Expected 3 forwarded tokens, got %q", tokens)
	}
}

func TestComplete_SystemPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollama.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[0].Content != "Be brief" {
			t.Errorf("Expected system message first, got %+v", req.Messages)
		}
		if r.Header.Get("Authorization") != "Bearer ollama-key" {
			t.Errorf("Expected Authorization header 'Bearer ollama-key', got '%s'", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	}))
	defer server.Close()

	cfg := ollamaConfig(server.URL)
	cfg.DisableStreaming = true
	client := NewClient(cfg, "ollama-key", testLogger(), WithSystemPrompt("Be brief"))

	if _, err := client.Complete(context.Background(), "prompt", nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

func TestComplete_RetryOn500(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		if attemptCount < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"server overloaded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"success"},"done":true}`))
	}))
	defer server.Close()

	cfg := ollamaConfig(server.URL)
	cfg.DisableStreaming = true
	client := NewClient(cfg, "", testLogger())
	client.baseRetryDelay = time.Millisecond

	got, err := client.Complete(context.Background(), "prompt", nil)
	if err != nil {
		t.Fatalf("Expected success after retries, got error: %v", err)
	}
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts (2 retries), got %d", attemptCount)
	}
	if got != "success" {
		t.Errorf("Expected 'success', got '%s'", got)
	}
}

func TestComplete_RetriesExhausted(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := ollamaConfig(server.URL)
	cfg.DisableStreaming = true
	client := NewClient(cfg, "", testLogger())
	client.baseRetryDelay = time.Millisecond

	_, err := client.Complete(context.Background(), "prompt", nil)

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected GenerationError, got %T: %v", err, err)
	}
	if genErr.StatusCode != http.StatusServiceUnavailable || genErr.Attempts != 3 {
		t.Errorf("Unexpected error details: %+v", genErr)
	}
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts, got %d", attemptCount)
	}
}

func TestComplete_ModelNotFoundNotRetried(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3.2:1b' not found"}`))
	}))
	defer server.Close()

	client := NewClient(ollamaConfig(server.URL), "", testLogger())
	client.baseRetryDelay = time.Millisecond

	_, err := client.Complete(context.Background(), "prompt", nil)

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected GenerationError, got %T", err)
	}
	if genErr.Retryable || attemptCount != 1 {
		t.Errorf("Expected a single non-retryable attempt, got %d (retryable=%v)", attemptCount, genErr.Retryable)
	}
	if !strings.Contains(genErr.Error(), "not found") {
		t.Errorf("Expected server message in error, got: %v", genErr)
	}
}

func TestComplete_PartialStreamNotRetried(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Once"},"done":false}`)
		// connection closes without a done chunk
	}))
	defer server.Close()

	client := NewClient(ollamaConfig(server.URL), "", testLogger())
	client.baseRetryDelay = time.Millisecond

	_, err := client.Complete(context.Background(), "prompt", func(string) {})
	if err == nil {
		t.Fatal("Expected error for truncated stream")
	}
	if attemptCount != 1 {
		t.Errorf("Expected no retry after tokens were emitted, got %d attempts", attemptCount)
	}
}

func TestComplete_StreamErrorNotRetried(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		fmt.Fprintln(w, `{"error":"model runner has unexpectedly stopped"}`)
	}))
	defer server.Close()

	client := NewClient(ollamaConfig(server.URL), "", testLogger())
	client.baseRetryDelay = time.Millisecond

	_, err := client.Complete(context.Background(), "prompt", nil)

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected GenerationError, got %T: %v", err, err)
	}
	if genErr.Retryable || attemptCount != 1 {
		t.Errorf("Expected a single non-retryable attempt, got %d (retryable=%v)", attemptCount, genErr.Retryable)
	}
	if !strings.Contains(genErr.Error(), "unexpectedly stopped") {
		t.Errorf("Expected server message in error, got: %v", genErr)
	}
}

func TestComplete_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ollamaConfig(server.URL), "", testLogger())
	client.baseRetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.Complete(ctx, "prompt", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
}

func TestComplete_OpenAIStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header 'Bearer test-key', got '%s'", r.Header.Get("Authorization"))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Hello", ", ", "world"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	cfg := config.ModelConfig{
		Provider:           config.ProviderOpenAI,
		BaseURL:            server.URL + "/v1",
		ModelName:          "m",
		Temperature:        0.7,
		TopP:               1.0,
		RateLimitPerMinute: 1000,
		HTTPTimeoutSeconds: 5,
	}
	client := NewClient(cfg, "test-key", testLogger())

	var streamed strings.Builder
	got, err := client.Complete(context.Background(), "prompt", func(tok string) { streamed.WriteString(tok) })
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != "Hello, world" || streamed.String() != "Hello, world" {
		t.Errorf("Expected 'Hello, world', got %q (streamed %q)", got, streamed.String())
	}
}

func TestComplete_OpenAIAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	cfg := config.ModelConfig{
		Provider:           config.ProviderOpenAI,
		BaseURL:            server.URL + "/v1",
		ModelName:          "m",
		RateLimitPerMinute: 1000,
		MaxRetries:         2,
		HTTPTimeoutSeconds: 5,
		DisableStreaming:   true,
	}
	client := NewClient(cfg, "bad-key", testLogger())
	client.baseRetryDelay = time.Millisecond

	_, err := client.Complete(context.Background(), "prompt", nil)

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected GenerationError, got %T: %v", err, err)
	}
	if genErr.StatusCode != http.StatusUnauthorized || genErr.Retryable {
		t.Errorf("Expected non-retryable 401, got %+v", genErr)
	}
}

func TestIsStatusCodeRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		if got := isStatusCodeRetryable(tt.code); got != tt.want {
			t.Errorf("isStatusCodeRetryable(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
