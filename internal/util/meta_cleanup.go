package util

import "strings"

// signOffPhrases open the assistant chatter small local models append after a story
var signOffPhrases = []string{
	"i hope you enjoyed",
	"i hope you enjoy",
	"let me know if you",
	"let me know if there",
	"would you like me to",
	"feel free to ask",
	"sure! let's start over",
	"let's start over",
}

// signOffWindow is how far from the end a sign-off sentence may start, in bytes
const signOffWindow = 300

// CleanMetaFromLLMResponse trims assistant chatter that small local models wrap around
// a story ("Here is your story:", "I hope you enjoyed...", "Let me know if...")
// while preserving the story text itself.
//
// Only trailing chatter is cut: a final paragraph that opens with a sign-off phrase,
// or a sign-off sentence near the end that is not inside quotes. The same phrases
// earlier in the text, or in dialogue, are part of the story.
func CleanMetaFromLLMResponse(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return content
	}

	trimmed = stripLeadingPreamble(trimmed)

	for {
		cut := trailingSignOff(trimmed)
		if cut <= 0 {
			return trimmed
		}
		trimmed = strings.TrimSpace(trimmed[:cut])
	}
}

// trailingSignOff returns the offset where closing chatter starts, or -1
func trailingSignOff(s string) int {
	paraStart := 0
	if i := strings.LastIndex(s, "\n\n"); i >= 0 {
		paraStart = i + 2
	}

	lower := asciiLower(s)

	para := strings.TrimLeft(lower[paraStart:], " \t\n*_#>-")
	for _, phrase := range signOffPhrases {
		if strings.HasPrefix(para, phrase) {
			return paraStart
		}
	}

	from := max(paraStart, len(s)-signOffWindow)
	best := -1
	for _, phrase := range signOffPhrases {
		for off := from; off < len(lower); {
			idx := strings.Index(lower[off:], phrase)
			if idx < 0 {
				break
			}
			idx += off
			if idx > paraStart && startsSentence(s, paraStart, idx) && !insideQuotes(s[paraStart:idx]) {
				if best < 0 || idx < best {
					best = idx
				}
				break
			}
			off = idx + len(phrase)
		}
	}
	return best
}

// startsSentence reports whether s[idx:] begins a new sentence within its paragraph
func startsSentence(s string, paraStart, idx int) bool {
	prev := strings.TrimRight(s[paraStart:idx], " \t*_")
	if prev == "" || strings.HasSuffix(prev, "\n") {
		return true
	}
	last := prev[len(prev)-1]
	return last == '.' || last == '!' || last == '?'
}

// insideQuotes reports whether the text preceding a position leaves a quotation open
func insideQuotes(before string) bool {
	if strings.Count(before, `"`)%2 == 1 {
		return true
	}
	return strings.Count(before, "“") > strings.Count(before, "”")
}

// stripLeadingPreamble drops a first line such as "Here is a captivating story:"
func stripLeadingPreamble(s string) string {
	first, rest, found := strings.Cut(s, "\n")
	if !found {
		return s
	}
	lower := strings.ToLower(strings.TrimSpace(first))
	preambles := []string{"here is", "here's", "sure", "certainly", "of course"}
	for _, p := range preambles {
		if strings.HasPrefix(lower, p) && strings.HasSuffix(lower, ":") {
			if r := strings.TrimSpace(rest); r != "" {
				return r
			}
		}
	}
	return s
}
