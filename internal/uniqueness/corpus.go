package uniqueness

// Corpus is the set of shingles from every story accepted in a session.
// It is owned by one session and is not safe for concurrent use.
type Corpus struct {
	shingles map[string]struct{}
}

// NewCorpus returns an empty corpus
func NewCorpus() *Corpus {
	return &Corpus{shingles: make(map[string]struct{})}
}

// Len returns the number of distinct shingles held
func (c *Corpus) Len() int {
	return len(c.shingles)
}

// Contains reports whether a shingle has been seen
func (c *Corpus) Contains(shingle string) bool {
	_, ok := c.shingles[shingle]
	return ok
}

// Reset forgets every shingle
func (c *Corpus) Reset() {
	clear(c.shingles)
}

func (c *Corpus) add(shingles map[string]struct{}) {
	for s := range shingles {
		c.shingles[s] = struct{}{}
	}
}
