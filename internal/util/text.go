package util

import "strings"

// WordCount counts whitespace-separated words
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// CleanStory removes reasoning blocks and assistant chatter from a raw completion
func CleanStory(raw string) string {
	return CleanMetaFromLLMResponse(StripThinkTags(raw))
}
