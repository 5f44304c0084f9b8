package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxUserTextLength caps concepts, titles, and feedback typed at the prompt
	MaxUserTextLength = 2000

	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB

	// MaxGenreNameLength bounds entries of a custom genre list
	MaxGenreNameLength = 64
)

// ValidateInputs performs additional validation on user-controllable fields
func (c *Config) ValidateInputs() error {
	if err := validateModelName(c.Model.ModelName); err != nil {
		return err
	}

	if err := validateBaseURL(c.Model.BaseURL); err != nil {
		return err
	}

	if containsControlChars(c.Generation.Language) {
		return fmt.Errorf("generation.language contains invalid control characters")
	}

	for i, g := range c.Genres {
		if strings.TrimSpace(g) == "" || utf8.RuneCountInString(g) > MaxGenreNameLength {
			return fmt.Errorf("genres[%d] must be 1-%d characters", i, MaxGenreNameLength)
		}
	}

	return c.validateTemplateSizes()
}

// ValidateUserText checks free text typed by the user before it is put in a prompt.
// Leading and trailing whitespace is ignored; blank text is rejected.
func ValidateUserText(field, s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s must not be empty", field)
	}

	if n := utf8.RuneCountInString(s); n > MaxUserTextLength {
		return fmt.Errorf("%s exceeds maximum length of %d characters (got %d)",
			field, MaxUserTextLength, n)
	}

	if containsControlChars(s) {
		return fmt.Errorf("%s contains invalid control characters", field)
	}

	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("model_name exceeds maximum length of %d (got %d)",
			MaxModelNameLength, len(modelName))
	}

	if containsControlChars(modelName) {
		return fmt.Errorf("model_name contains invalid control characters")
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https scheme (got %s)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("base_url must have a host")
	}

	return nil
}

// validateTemplateSizes checks that templates are within reasonable size limits
func (c *Config) validateTemplateSizes() error {
	templates := []struct {
		name  string
		value string
	}{
		{"story", c.PromptTemplates.Story},
		{"revision", c.PromptTemplates.Revision},
		{"system_prompt", c.PromptTemplates.SystemPrompt},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
