package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Model.Provider = "bard" },
			wantErr: true,
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Generation.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Generation.SimilarityThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "too many paragraphs",
			mutate:  func(c *Config) { c.Generation.NumParagraphs = MaxParagraphs + 1 },
			wantErr: true,
		},
		{
			name: "output tokens exceed context",
			mutate: func(c *Config) {
				c.Model.ContextSize = 1024
				c.Model.MaxOutputTokens = 4096
			},
			wantErr: true,
		},
		{
			name:    "empty genres",
			mutate:  func(c *Config) { c.Genres = nil },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Model.Provider != ProviderOllama {
		t.Errorf("Expected provider %s, got %s", ProviderOllama, cfg.Model.Provider)
	}
	if cfg.Model.BaseURL != DefaultOllamaBaseURL {
		t.Errorf("Expected base URL %s, got %s", DefaultOllamaBaseURL, cfg.Model.BaseURL)
	}
	if cfg.Model.ModelName != "llama3.2:1b" {
		t.Errorf("Expected model llama3.2:1b, got %s", cfg.Model.ModelName)
	}
	if cfg.Model.Temperature != 0.7 || cfg.Model.ContextSize != 2048 || cfg.Model.NumThread != 4 {
		t.Errorf("Unexpected sampling defaults: %+v", cfg.Model)
	}
	if cfg.Generation.MaxAttempts != 3 || cfg.Generation.ShingleSize != 50 || cfg.Generation.SimilarityThreshold != 0.3 {
		t.Errorf("Unexpected generation defaults: %+v", cfg.Generation)
	}
	if cfg.Export.Heading != "AI Generated Story" {
		t.Errorf("Expected default heading, got %q", cfg.Export.Heading)
	}
	if len(cfg.Genres) != 42 {
		t.Errorf("Expected 42 default genres, got %d", len(cfg.Genres))
	}
}

func TestApplyDefaults_OpenAIProvider(t *testing.T) {
	cfg := &Config{Model: ModelConfig{Provider: ProviderOpenAI}}
	ApplyDefaults(cfg)

	if cfg.Model.BaseURL != DefaultOpenAIBaseURL {
		t.Errorf("Expected base URL %s, got %s", DefaultOpenAIBaseURL, cfg.Model.BaseURL)
	}
	// No default model for hosted providers
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for openai provider without model_name")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, secrets, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.ModelName != DefaultModelName {
		t.Errorf("Expected default model, got %s", cfg.Model.ModelName)
	}
	if secrets == nil {
		t.Error("Expected non-nil secrets")
	}

	if _, _, err := Load(path, true); err == nil {
		t.Error("Expected error when a required config file is missing")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storyteller.toml")
	content := `
genres = ["Noir", "Solarpunk"]

[model]
model_name = "mistral:7b"
temperature = 1.1

[generation]
language = "French"
num_paragraphs = 3

[export]
heading = "Mon Histoire"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, _, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.ModelName != "mistral:7b" || cfg.Model.Temperature != 1.1 {
		t.Errorf("Model section not loaded: %+v", cfg.Model)
	}
	if cfg.Generation.Language != "French" || cfg.Generation.NumParagraphs != 3 {
		t.Errorf("Generation section not loaded: %+v", cfg.Generation)
	}
	if cfg.Generation.MaxAttempts != 3 {
		t.Errorf("Expected defaulted max_attempts 3, got %d", cfg.Generation.MaxAttempts)
	}
	if len(cfg.Genres) != 2 || cfg.Genres[0] != "Noir" {
		t.Errorf("Expected custom genres, got %v", cfg.Genres)
	}
	if cfg.Export.Heading != "Mon Histoire" {
		t.Errorf("Expected custom heading, got %q", cfg.Export.Heading)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, _, err := Load(path, false, func(c *Config) {
		c.Model.Provider = ProviderOpenAI
		c.Model.ModelName = "gpt-4o-mini"
		c.Generation.Language = "Spanish"
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.BaseURL != DefaultOpenAIBaseURL {
		t.Errorf("Expected provider override to pick %s, got %s", DefaultOpenAIBaseURL, cfg.Model.BaseURL)
	}
	if cfg.Generation.Language != "Spanish" {
		t.Errorf("Expected language override, got %s", cfg.Generation.Language)
	}

	_, _, err = Load(path, false, func(c *Config) { c.Generation.NumParagraphs = MaxParagraphs + 1 })
	if err == nil {
		t.Error("Expected overrides to be validated")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[model\nname="), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	_, _, err := Load(path, true)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("Expected parse error, got %v", err)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := os.WriteFile(path, []byte(SampleConfig), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, _, err := Load(path, true); err != nil {
		t.Errorf("SampleConfig does not load: %v", err)
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key-123")
	t.Setenv("API_KEY", "generic-key")

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}

	if secrets.APIKeys["openai"] != "test-key-123" {
		t.Errorf("Expected OpenAI key to be 'test-key-123', got %s", secrets.APIKeys["openai"])
	}
	if secrets.APIKeys["generic"] != "generic-key" {
		t.Errorf("Expected generic key to be 'generic-key', got %s", secrets.APIKeys["generic"])
	}
}

func TestGetAPIKey(t *testing.T) {
	withGeneric := &Secrets{
		APIKeys: map[string]string{
			"openai":  "openai-key",
			"generic": "generic-key",
		},
	}
	openaiOnly := &Secrets{
		APIKeys: map[string]string{"openai": "openai-key"},
	}

	tests := []struct {
		name    string
		secrets *Secrets
		baseURL string
		want    string
	}{
		{"OpenAI URL", withGeneric, "https://api.openai.com/v1", "openai-key"},
		{"other URL falls back to generic", withGeneric, "https://llm.internal:8080/v1", "generic-key"},
		{"local Ollama without keys", openaiOnly, "http://localhost:11434", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.secrets.GetAPIKey(tt.baseURL); got != tt.want {
				t.Errorf("GetAPIKey() = %v, want %v", got, tt.want)
			}
		})
	}
}
