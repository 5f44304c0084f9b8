package story

import (
	"strings"
	"unicode/utf8"
)

// Common refusal openings from chat-tuned models
var refusalPatterns = []string{
	"i'm sorry, but i can't",
	"i'm sorry, but i cannot",
	"i'm sorry, i cannot",
	"i cannot help with that",
	"i can't assist with that",
	"i'm unable to help with that",
	"i apologize, but i cannot",
	"i'm not able to assist",
	"i cannot provide",
	"i cannot generate",
	"i can't write",
	"i cannot write",
	"as an ai",
	"i don't feel comfortable",
}

// refusalWindow limits the refusal scan to the opening of the text, so a
// character saying "as an AI" deep inside a story is not mistaken for a refusal
const refusalWindow = 300

// isRefusal reports whether the opening of text reads like a refusal
func isRefusal(text string) bool {
	return refusalReason(text) != ""
}

// refusalReason returns the matched pattern, or "" when text is not a refusal
func refusalReason(text string) string {
	head := strings.TrimSpace(text)
	if utf8.RuneCountInString(head) > refusalWindow {
		head = string([]rune(head)[:refusalWindow])
	}
	head = strings.ToLower(strings.ReplaceAll(head, "’", "'"))

	for _, pattern := range refusalPatterns {
		if strings.Contains(head, pattern) {
			return pattern
		}
	}
	return ""
}
