package util

import (
	"strings"
	"testing"
)

func TestCleanMetaFromLLMResponse_NoMeta(t *testing.T) {
	original := "Once upon a time, there was a simple story."
	clean := CleanMetaFromLLMResponse(original)
	if clean != original {
		t.Fatalf("expected no change, got %q", clean)
	}
}

func TestCleanMetaFromLLMResponse_TruncatesSignOff(t *testing.T) {
	original := "Story text goes here.\n\nI hope you enjoyed this tale! Let me know if you want changes."
	clean := CleanMetaFromLLMResponse(original)
	if clean != "Story text goes here." {
		t.Fatalf("expected sign-off to be removed, got %q", clean)
	}
}

func TestCleanMetaFromLLMResponse_StripsPreamble(t *testing.T) {
	original := "Here is a captivating story:\n**Title:** The Glass Orchard\n\nPrologue..."
	clean := CleanMetaFromLLMResponse(original)
	if !strings.HasPrefix(clean, "**Title:** The Glass Orchard") {
		t.Fatalf("expected preamble to be removed, got %q", clean)
	}
}

func TestCleanMetaFromLLMResponse_KeepsLeadingPhrase(t *testing.T) {
	// A phrase at the very start is the story itself, not trailing chatter
	original := "Let me know if you can hear me, whispered the lighthouse keeper."
	clean := CleanMetaFromLLMResponse(original)
	if clean != original {
		t.Fatalf("expected no change, got %q", clean)
	}
}

func TestCleanMetaFromLLMResponse_TrailingSentence(t *testing.T) {
	original := "The rain fell on the quiet town until morning. I hope you enjoyed this story!"
	clean := CleanMetaFromLLMResponse(original)
	if clean != "The rain fell on the quiet town until morning." {
		t.Fatalf("expected trailing sign-off sentence to be removed, got %q", clean)
	}
}

func TestCleanMetaFromLLMResponse_KeepsDialogue(t *testing.T) {
	tail := strings.Repeat("The harbor lights flickered as the tide rolled in over the stones. ", 10)

	tests := []struct {
		name     string
		original string
	}{
		{
			name:     "dialogue early in the story",
			original: "Mira handed the lantern to the boy at the gate. \"Let me know if you see the riders,\" she said. " + tail,
		},
		{
			name:     "dialogue in the closing lines",
			original: tail + "\n\nShe turned back at the door. \"Let me know if you hear from him,\" she said. The gate closed.",
		},
		{
			name:     "curly quotes near the end",
			original: tail + "He smiled. “Would you like me to stay?” The fire crackled.",
		},
		{
			name:     "phrase mid-sentence near the end",
			original: tail + "The captain said he would let me know if you ever came back.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := strings.TrimSpace(tt.original)
			if got := CleanMetaFromLLMResponse(tt.original); got != want {
				t.Errorf("expected story to survive intact, got %q", got)
			}
		})
	}
}

func TestCleanStory(t *testing.T) {
	raw := "<think>plan the twist</think>\nHere's your story:\nThe rain fell.\n\nI hope you enjoy it!"
	if got := CleanStory(raw); got != "The rain fell." {
		t.Errorf("CleanStory() = %q, want %q", got, "The rain fell.")
	}
}

func TestCleanStory_KeepsWordCount(t *testing.T) {
	raw := "Mira handed the lantern to the boy at the gate. \"Let me know if you see the riders,\" she said. " +
		strings.Repeat("The harbor lights flickered as the tide rolled in over the stones. ", 10)
	if got, want := WordCount(CleanStory(raw)), WordCount(raw); got != want {
		t.Errorf("CleanStory() kept %d words, want %d", got, want)
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("  one two\nthree\tfour  "); got != 4 {
		t.Errorf("WordCount() = %d, want 4", got)
	}
	if got := WordCount(""); got != 0 {
		t.Errorf("WordCount(\"\") = %d, want 0", got)
	}
}
