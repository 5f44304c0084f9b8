package models

import (
	"strings"
	"time"
)

// MaxGenres is the maximum number of genres a user can combine in one request
const MaxGenres = 5

// InputType identifies which user field seeds the story prompt
type InputType string

const (
	// InputConcept means the prompt is seeded with a free-text concept
	InputConcept InputType = "concept"
	// InputTitle means the prompt is seeded with a story title
	InputTitle InputType = "title"
)

// StoryRequest holds the user-chosen parameters for one story
type StoryRequest struct {
	Concept       string   `json:"concept,omitempty"`
	Title         string   `json:"title,omitempty"`
	Genres        []string `json:"genres,omitempty"` // Ordered, unique, at most MaxGenres
	Language      string   `json:"language"`
	NumParagraphs int      `json:"num_paragraphs"`
}

// Input returns the field that seeds the prompt and its kind.
// A concept wins over a title; genres are folded into a concept.
func (r StoryRequest) Input() (InputType, string) {
	if c := strings.TrimSpace(r.Concept); c != "" {
		return InputConcept, c
	}
	if t := strings.TrimSpace(r.Title); t != "" {
		return InputTitle, t
	}
	if len(r.Genres) > 0 {
		return InputConcept, ConceptFromGenres(r.Genres)
	}
	return InputConcept, ""
}

// ConceptFromGenres builds the concept sentence used when the user only picked genres
func ConceptFromGenres(genres []string) string {
	switch len(genres) {
	case 0:
		return ""
	case 1:
		return "A story in " + genres[0] + " genre"
	default:
		head := strings.Join(genres[:len(genres)-1], ", ")
		return "A story combining elements of " + head + " and " + genres[len(genres)-1]
	}
}

// GeneratedStory is a single completed story. The text carries no parsed structure.
type GeneratedStory struct {
	Text          string `json:"text"`
	Attempts      int    `json:"attempts"`
	Accepted      bool   `json:"accepted"` // false when the best-effort fallback was used
	PromptVersion string `json:"prompt_version"`
}

// RevisionRequest asks the model to rework a story according to user feedback
type RevisionRequest struct {
	Original string `json:"original"`
	Feedback string `json:"feedback"`
}

// SessionStats tracks counters for one interactive session
type SessionStats struct {
	SessionID          string
	StartTime          time.Time
	StoriesGenerated   int
	GenerationAttempts int
	RejectedSimilar    int // Attempts rejected by the uniqueness check
	RejectedDegenerate int // Attempts rejected as too short or refusals
	Fallbacks          int // Stories returned without passing the checks
	GenerationErrors   int
	RevisionsAccepted  int
	RevisionsRejected  int
	Exports            int
}
