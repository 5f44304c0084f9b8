package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRegex matches escaped braces or a {name} placeholder
var placeholderRegex = regexp.MustCompile(`\{\{|\}\}|\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// MissingFieldError is returned when a template placeholder has no value
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing template field: %s", e.Field)
}

// Build substitutes {name} placeholders in a single pass.
// "{{" and "}}" produce literal braces. Fields the template never references are ignored.
func Build(tmpl string, fields map[string]string) (string, error) {
	var missing *MissingFieldError

	out := placeholderRegex.ReplaceAllStringFunc(tmpl, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		name := m[1 : len(m)-1]
		value, ok := fields[name]
		if !ok {
			if missing == nil {
				missing = &MissingFieldError{Field: name}
			}
			return m
		}
		return value
	})

	if missing != nil {
		return "", missing
	}
	return out, nil
}

// Placeholders lists the distinct field names a template references, in order of first use
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRegex.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// TruncateForLog shortens a rendered prompt for debug logging
func TruncateForLog(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
