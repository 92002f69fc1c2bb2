package model

import "sync"

// Corpus is the append-only collection of responses gathered during a run.
// It is safe for concurrent use by multiple fetch workers.
type Corpus struct {
	mu        sync.RWMutex
	responses []*Response
}

// NewCorpus creates a Corpus pre-populated with the given responses.
// Nil entries are skipped.
func NewCorpus(responses ...*Response) *Corpus {
	c := &Corpus{responses: make([]*Response, 0, len(responses))}
	for _, r := range responses {
		c.Add(r)
	}
	return c
}

// Add appends a response to the corpus.
func (c *Corpus) Add(r *Response) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, r)
}

// Snapshot returns a copy of the current responses.
// Later additions to the corpus are not visible in the returned slice.
func (c *Corpus) Snapshot() []*Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Response, len(c.responses))
	copy(out, c.responses)
	return out
}

// Len returns the number of responses in the corpus.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.responses)
}
