// Package uniqueness rejects stories that repeat text already generated in
// the session, using overlap of fixed-length character shingles.
package uniqueness

import (
	"strings"
	"unicode"
)

const (
	// DefaultShingleSize is the shingle length in runes
	DefaultShingleSize = 50
	// DefaultThreshold is the overlap ratio above which content is rejected
	DefaultThreshold = 0.3
)

// Checker compares new content against a session corpus
type Checker struct {
	corpus      *Corpus
	shingleSize int
	threshold   float64
}

// NewChecker creates a checker over corpus. Non-positive settings fall back to defaults.
func NewChecker(corpus *Corpus, shingleSize int, threshold float64) *Checker {
	if shingleSize <= 0 {
		shingleSize = DefaultShingleSize
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Checker{corpus: corpus, shingleSize: shingleSize, threshold: threshold}
}

// Corpus returns the corpus the checker records into
func (c *Checker) Corpus() *Corpus {
	return c.corpus
}

// Threshold returns the rejection threshold
func (c *Checker) Threshold() float64 {
	return c.threshold
}

// Check accepts content whose overlap with the corpus is at most the threshold
// and merges its shingles into the corpus. Content too short to produce a single
// shingle is accepted and leaves the corpus untouched.
func (c *Checker) Check(content string) bool {
	ok, _ := c.CheckRatio(content)
	return ok
}

// CheckRatio is Check that also returns the measured overlap ratio
func (c *Checker) CheckRatio(content string) (bool, float64) {
	shingles := Shingles(content, c.shingleSize)
	if len(shingles) == 0 {
		return true, 0
	}

	ratio := c.overlap(shingles)
	if ratio > c.threshold {
		return false, ratio
	}

	c.corpus.add(shingles)
	return true, ratio
}

// Similarity returns the overlap ratio of content against the corpus without recording it
func (c *Checker) Similarity(content string) float64 {
	shingles := Shingles(content, c.shingleSize)
	if len(shingles) == 0 {
		return 0
	}
	return c.overlap(shingles)
}

func (c *Checker) overlap(shingles map[string]struct{}) float64 {
	seen := 0
	for s := range shingles {
		if c.corpus.Contains(s) {
			seen++
		}
	}
	return float64(seen) / float64(len(shingles))
}

// Shingles returns the set of size-rune windows (stride 1) of the normalized content
func Shingles(content string, size int) map[string]struct{} {
	runes := []rune(Normalize(content))
	set := make(map[string]struct{})
	for i := 0; i+size <= len(runes); i++ {
		set[string(runes[i:i+size])] = struct{}{}
	}
	return set
}

// Normalize lower-cases content and drops every rune that is not a letter or digit
func Normalize(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
