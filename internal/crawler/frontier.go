package crawler

import (
	"sort"
	"sync"
)

// Frontier tracks the candidates of one run.
//
// pending holds every resolved URL that has been queued for fetching;
// insertion into it is the only guard against fetching a URL twice.
// confirmed holds URLs whose fetch succeeded. Both sets only grow.
type Frontier struct {
	mu        sync.Mutex
	pending   map[string]struct{}
	confirmed map[string]struct{}

	// limit caps the size of pending. Zero means unlimited.
	limit int

	// rejected counts insertions refused because of limit.
	rejected int
}

// NewFrontier creates an empty Frontier.
// limit caps the number of pending candidates; zero means unlimited.
func NewFrontier(limit int) *Frontier {
	return &Frontier{
		pending:   make(map[string]struct{}),
		confirmed: make(map[string]struct{}),
		limit:     limit,
	}
}

// AddPending inserts url into the pending set.
// It returns true only if url was not present and the limit allows it.
func (f *Frontier) AddPending(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.pending[url]; ok {
		return false
	}
	if f.limit > 0 && len(f.pending) >= f.limit {
		f.rejected++
		return false
	}
	f.pending[url] = struct{}{}
	return true
}

// AddConfirmed records url as a verified result.
// It returns true if url was not confirmed before.
func (f *Frontier) AddConfirmed(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.confirmed[url]; ok {
		return false
	}
	f.confirmed[url] = struct{}{}
	return true
}

// IsPending reports whether url has been queued.
func (f *Frontier) IsPending(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[url]
	return ok
}

// IsConfirmed reports whether url has been verified.
func (f *Frontier) IsConfirmed(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.confirmed[url]
	return ok
}

// Confirmed returns the confirmed URLs in sorted order.
func (f *Frontier) Confirmed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.confirmed)
}

// Pending returns the pending URLs in sorted order.
func (f *Frontier) Pending() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.pending)
}

// Stats returns current frontier statistics.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FrontierStats{
		Pending:   len(f.pending),
		Confirmed: len(f.confirmed),
		Rejected:  f.rejected,
	}
}

// FrontierStats contains frontier counters.
type FrontierStats struct {
	// Pending is the number of distinct URLs queued.
	Pending int

	// Confirmed is the number of verified URLs.
	Confirmed int

	// Rejected is the number of new URLs refused by the candidate limit.
	Rejected int
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
