package util

import (
	"regexp"
	"strings"
)

// Local reasoning models (deepseek-r1, qwq) wrap their chain of thought in these tags
var (
	thinkTagRegex        = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	chineseThinkTagRegex = regexp.MustCompile(`(?i)<思考>([\s\S]*?)</思考>`)
	// An opening tag that never closed means the model ran out of tokens while thinking
	danglingThinkRegex = regexp.MustCompile(`(?i)<think(?:ing)?>[\s\S]*$`)
)

// ContainsThinkTags checks if the response contains think/reasoning tags
func ContainsThinkTags(response string) bool {
	return thinkTagRegex.MatchString(response) || chineseThinkTagRegex.MatchString(response)
}

// StripThinkTags removes think/reasoning blocks so only the story remains
func StripThinkTags(response string) string {
	result := thinkTagRegex.ReplaceAllString(response, "")
	result = chineseThinkTagRegex.ReplaceAllString(result, "")
	result = danglingThinkRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// ThinkFilter hides reasoning blocks from a token stream as they arrive.
// Tags may be split across tokens, so undecided text is held back until it resolves.
type ThinkFilter struct {
	emit    func(string)
	pending strings.Builder
	inside  bool
}

// NewThinkFilter wraps emit; a nil emit yields a filter that drops everything
func NewThinkFilter(emit func(string)) *ThinkFilter {
	return &ThinkFilter{emit: emit}
}

// Write consumes one streamed token
func (f *ThinkFilter) Write(token string) {
	f.pending.WriteString(token)
	buf := f.pending.String()
	f.pending.Reset()

	for buf != "" {
		lower := asciiLower(buf)
		if f.inside {
			end := strings.Index(lower, "</think")
			if end < 0 {
				// keep a short tail in case the closing tag is split
				f.pending.WriteString(tail(buf, len("</thinking>")))
				return
			}
			gt := strings.Index(lower[end:], ">")
			if gt < 0 {
				f.pending.WriteString(buf[end:])
				return
			}
			buf = buf[end+gt+1:]
			f.inside = false
			continue
		}

		start := strings.Index(lower, "<think")
		if start < 0 {
			// hold back a trailing "<" fragment that could open a tag
			if i := strings.LastIndex(buf, "<"); i >= 0 && strings.HasPrefix("<thinking>", asciiLower(buf[i:])) {
				f.out(buf[:i])
				f.pending.WriteString(buf[i:])
				return
			}
			f.out(buf)
			return
		}
		f.out(buf[:start])
		gt := strings.Index(lower[start:], ">")
		if gt < 0 {
			f.pending.WriteString(buf[start:])
			return
		}
		buf = buf[start+gt+1:]
		f.inside = true
	}
}

// Flush emits any held-back text that turned out not to be a tag
func (f *ThinkFilter) Flush() {
	if !f.inside && f.pending.Len() > 0 {
		f.out(f.pending.String())
	}
	f.pending.Reset()
}

func (f *ThinkFilter) out(s string) {
	if s != "" && f.emit != nil {
		f.emit(s)
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// asciiLower lower-cases A-Z only, so byte offsets stay aligned with the input
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
