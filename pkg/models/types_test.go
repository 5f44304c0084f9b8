package models

import "testing"

func TestConceptFromGenres(t *testing.T) {
	tests := []struct {
		name   string
		genres []string
		want   string
	}{
		{"none", nil, ""},
		{"single", []string{"Fantasy"}, "A story in Fantasy genre"},
		{"two", []string{"Fantasy", "Mystery"}, "A story combining elements of Fantasy and Mystery"},
		{"three", []string{"Western", "Horror", "Comedy"}, "A story combining elements of Western, Horror and Comedy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConceptFromGenres(tt.genres); got != tt.want {
				t.Errorf("ConceptFromGenres() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStoryRequestInput(t *testing.T) {
	tests := []struct {
		name      string
		req       StoryRequest
		wantType  InputType
		wantValue string
	}{
		{
			name:      "concept wins",
			req:       StoryRequest{Concept: " a lighthouse keeper ", Title: "Ignored", Genres: []string{"Drama"}},
			wantType:  InputConcept,
			wantValue: "a lighthouse keeper",
		},
		{
			name:      "title when no concept",
			req:       StoryRequest{Title: "The Last Train"},
			wantType:  InputTitle,
			wantValue: "The Last Train",
		},
		{
			name:      "genres fold into concept",
			req:       StoryRequest{Genres: []string{"Fantasy", "Mystery"}},
			wantType:  InputConcept,
			wantValue: "A story combining elements of Fantasy and Mystery",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotValue := tt.req.Input()
			if gotType != tt.wantType || gotValue != tt.wantValue {
				t.Errorf("Input() = (%s, %q), want (%s, %q)", gotType, gotValue, tt.wantType, tt.wantValue)
			}
		})
	}
}
