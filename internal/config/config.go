package config

import (
	"fmt"
	"os"
	"strings"
)

// Supported generation providers
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config represents the complete application configuration
type Config struct {
	Model           ModelConfig      `toml:"model"`
	Generation      GenerationConfig `toml:"generation"`
	PromptTemplates PromptTemplates  `toml:"prompt_templates"`
	Export          ExportConfig     `toml:"export"`
	Genres          []string         `toml:"genres"` // Optional replacement for the built-in genre menu
}

// ModelConfig represents configuration for the text-completion endpoint
type ModelConfig struct {
	Provider           string  `toml:"provider"` // "ollama" (native API) or "openai" (any OpenAI-compatible server)
	BaseURL            string  `toml:"base_url"`
	ModelName          string  `toml:"model_name"`
	Temperature        float64 `toml:"temperature"`
	TopP               float64 `toml:"top_p"`
	MaxOutputTokens    int     `toml:"max_output_tokens"` // 0 = model default
	ContextSize        int     `toml:"context_size"`
	NumThread          int     `toml:"num_thread"` // Ollama only
	RateLimitPerMinute int     `toml:"rate_limit_per_minute"`
	MaxRetries         int     `toml:"max_retries"`          // Transport-level retries (default 2, -1 = none)
	MaxBackoffSeconds  int     `toml:"max_backoff_seconds"`  // Optional: max backoff duration (default 30)
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds"` // Connection-level timeout (default 60)
	DisableStreaming   bool    `toml:"disable_streaming"`    // Print the story only once it is complete
}

// GenerationConfig holds story generation and acceptance settings
type GenerationConfig struct {
	MaxAttempts            int     `toml:"max_attempts"`         // Generation attempts per story (default 3)
	MinWords               int     `toml:"min_words"`            // Shorter outputs count as failed attempts (default 50)
	ShingleSize            int     `toml:"shingle_size"`         // Characters per fingerprint shingle (default 50)
	SimilarityThreshold    float64 `toml:"similarity_threshold"` // Reject when overlap ratio exceeds this (default 0.3)
	Language               string  `toml:"language"`
	NumParagraphs          int     `toml:"num_paragraphs"`
	StoryType              string  `toml:"story_type"`
	AdditionalInstructions string  `toml:"additional_instructions"`
	AllowRefusals          bool    `toml:"allow_refusals"`           // Accept outputs that look like model refusals
	ResetCorpusEachStory   bool    `toml:"reset_corpus_each_story"` // Forget fingerprints after each finished story
}

// PromptTemplates holds optional overrides of the built-in versioned templates
type PromptTemplates struct {
	Story        string `toml:"story"`
	Revision     string `toml:"revision"`
	SystemPrompt string `toml:"system_prompt"` // Optional system message sent with every request
}

// ExportConfig controls the document exporters
type ExportConfig struct {
	Heading      string `toml:"heading"`
	OutputDir    string `toml:"output_dir"`
	KeepMarkdown bool   `toml:"keep_markdown"` // Write the raw model markdown instead of flattened text
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys map[string]string
}

const (
	// MaxAttemptsLimit caps generation attempts per story
	MaxAttemptsLimit = 10
	// MaxParagraphs is the largest paragraph count a user may request
	MaxParagraphs = 50
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validateModelConfig(c.Model); err != nil {
		return err
	}

	g := c.Generation
	if g.MaxAttempts < 1 || g.MaxAttempts > MaxAttemptsLimit {
		return fmt.Errorf("generation.max_attempts must be between 1 and %d (got %d)", MaxAttemptsLimit, g.MaxAttempts)
	}
	if g.MinWords < 0 {
		return fmt.Errorf("generation.min_words must not be negative (got %d)", g.MinWords)
	}
	if g.ShingleSize < 1 {
		return fmt.Errorf("generation.shingle_size must be at least 1 (got %d)", g.ShingleSize)
	}
	if g.SimilarityThreshold <= 0 || g.SimilarityThreshold > 1.0 {
		return fmt.Errorf("generation.similarity_threshold must be in (0.0, 1.0] (got %.2f)", g.SimilarityThreshold)
	}
	if g.NumParagraphs < 1 || g.NumParagraphs > MaxParagraphs {
		return fmt.Errorf("generation.num_paragraphs must be between 1 and %d (got %d)", MaxParagraphs, g.NumParagraphs)
	}
	if strings.TrimSpace(g.Language) == "" {
		return fmt.Errorf("generation.language is required")
	}

	if len(c.Genres) == 0 {
		return fmt.Errorf("genres must not be empty")
	}
	if c.Export.Heading == "" {
		return fmt.Errorf("export.heading is required")
	}

	return nil
}

func validateModelConfig(mc ModelConfig) error {
	if mc.Provider != ProviderOllama && mc.Provider != ProviderOpenAI {
		return fmt.Errorf("model.provider must be one of: %s, %s (got %s)", ProviderOllama, ProviderOpenAI, mc.Provider)
	}
	if mc.BaseURL == "" {
		return fmt.Errorf("model.base_url is required")
	}
	if mc.ModelName == "" {
		return fmt.Errorf("model.model_name is required")
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}
	if mc.TopP < 0 || mc.TopP > 1 {
		return fmt.Errorf("model.top_p must be between 0 and 1")
	}
	if mc.MaxOutputTokens < 0 {
		return fmt.Errorf("model.max_output_tokens must not be negative")
	}
	if mc.ContextSize < 1 {
		return fmt.Errorf("model.context_size must be at least 1")
	}
	if mc.NumThread < 0 {
		return fmt.Errorf("model.num_thread must not be negative")
	}
	if mc.RateLimitPerMinute < 1 {
		return fmt.Errorf("model.rate_limit_per_minute must be at least 1")
	}
	if mc.HTTPTimeoutSeconds < 1 {
		return fmt.Errorf("model.http_timeout_seconds must be at least 1")
	}
	if mc.MaxOutputTokens > 0 && mc.MaxOutputTokens > mc.ContextSize {
		return fmt.Errorf("model.max_output_tokens (%d) must not exceed context_size (%d)", mc.MaxOutputTokens, mc.ContextSize)
	}
	return nil
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	// Generic key for any OpenAI-compatible provider
	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		secrets.APIKeys["openai"] = key
	}
	if key := os.Getenv("OLLAMA_API_KEY"); key != "" {
		secrets.APIKeys["ollama"] = key
	}

	return secrets, nil
}

// GetAPIKey returns the API key for a given base URL
func (s *Secrets) GetAPIKey(baseURL string) string {
	if strings.Contains(baseURL, "openai.com") {
		if key := s.APIKeys["openai"]; key != "" {
			return key
		}
	}
	if strings.Contains(baseURL, "ollama.com") {
		if key := s.APIKeys["ollama"]; key != "" {
			return key
		}
	}

	if key := s.APIKeys["generic"]; key != "" {
		return key
	}

	// Local servers usually run without auth
	return ""
}
