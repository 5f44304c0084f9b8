package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/lamim/storyteller/pkg/models"
)

// Load reads the configuration file (when present) and environment secrets.
// A missing file is only an error when required is set, so the tool runs with
// built-in defaults out of the box. Overrides run after the file is parsed and
// before defaults, so a command-line provider switch still picks its own base URL.
func Load(configPath string, required bool, overrides ...func(*Config)) (*Config, *Secrets, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
		// defaults only
	default:
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	for _, override := range overrides {
		override(&cfg)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.ValidateInputs(); err != nil {
		return nil, nil, fmt.Errorf("input validation failed: %w", err)
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return &cfg, secrets, nil
}

// Default returns a fully defaulted configuration without reading any file
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// ApplyDefaults sets default values for optional configuration fields
func ApplyDefaults(cfg *Config) {
	m := &cfg.Model
	if m.Provider == "" {
		m.Provider = ProviderOllama
	}
	if m.BaseURL == "" {
		if m.Provider == ProviderOpenAI {
			m.BaseURL = DefaultOpenAIBaseURL
		} else {
			m.BaseURL = DefaultOllamaBaseURL
		}
	}
	if m.ModelName == "" && m.Provider == ProviderOllama {
		m.ModelName = DefaultModelName
	}
	if m.Temperature == 0 {
		m.Temperature = 0.7
	}
	if m.TopP == 0 {
		m.TopP = 1.0
	}
	if m.ContextSize == 0 {
		m.ContextSize = 2048
	}
	if m.NumThread == 0 {
		m.NumThread = 4
	}
	if m.RateLimitPerMinute == 0 {
		m.RateLimitPerMinute = 60
	}
	// NOTE: TOML can't distinguish 0 from unset, so 0 → default and -1 → no retries
	if m.MaxRetries == 0 {
		m.MaxRetries = 2
	}
	if m.MaxBackoffSeconds == 0 {
		m.MaxBackoffSeconds = 30
	}
	if m.HTTPTimeoutSeconds == 0 {
		m.HTTPTimeoutSeconds = 60
	}

	g := &cfg.Generation
	if g.MaxAttempts == 0 {
		g.MaxAttempts = 3
	}
	if g.MinWords == 0 {
		g.MinWords = 50
	}
	if g.ShingleSize == 0 {
		g.ShingleSize = 50
	}
	if g.SimilarityThreshold == 0 {
		g.SimilarityThreshold = 0.3
	}
	if g.Language == "" {
		g.Language = "English"
	}
	if g.NumParagraphs == 0 {
		g.NumParagraphs = 5
	}
	if g.StoryType == "" {
		g.StoryType = "story"
	}
	if g.AdditionalInstructions == "" {
		g.AdditionalInstructions = DefaultAdditionalInstructions
	}

	if cfg.Export.Heading == "" {
		cfg.Export.Heading = DefaultHeading
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "."
	}

	if len(cfg.Genres) == 0 {
		cfg.Genres = append([]string(nil), models.Genres...)
	}
}
