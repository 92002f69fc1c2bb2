package model

import (
	"sort"
	"time"
)

// Report is the result of one discovery run against a single domain.
//
// Design decision: The report carries the corpus as well as the confirmed
// URLs because callers often want the script bodies, not just their
// locations. The corpus is excluded from JSON to keep reports small.
type Report struct {
	// Domain is the host the run was scoped to.
	Domain string `json:"domain"`

	// Seeds are the URLs of the responses the run started from.
	Seeds []string `json:"seeds"`

	// Scripts are the confirmed script resources, sorted by URL.
	Scripts []Script `json:"scripts"`

	// PluginCandidates counts the raw candidates each plugin contributed.
	PluginCandidates map[string]int `json:"plugin_candidates,omitempty"`

	// CandidatesQueued is the number of distinct resolved URLs dispatched.
	CandidatesQueued int `json:"candidates_queued"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run finished.
	FinishedAt time.Time `json:"finished_at"`

	// TimedOut is true if the run was cancelled before quiescence.
	TimedOut bool `json:"timed_out"`

	// Error holds the error that stopped a pipeline step, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// NewScripts lists confirmed scripts absent from the previous stored
	// run of the domain. It is empty when there is no previous run.
	NewScripts []string `json:"new_scripts,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Corpus holds the seed responses followed by every fetched response.
	Corpus []*Response `json:"-"`
}

// Script is a confirmed script resource.
type Script struct {
	// URL is the absolute URL the script was fetched from.
	URL string `json:"url"`

	// StatusCode is the HTTP status of the confirming fetch.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type of the confirming fetch.
	ContentType string `json:"content_type,omitempty"`

	// Size is the body size in bytes.
	Size int `json:"size"`

	// Hash is the BLAKE2b-256 digest of the decoded body.
	Hash string `json:"hash,omitempty"`
}

// ScriptFromResponse builds the Script record of a confirming response.
func ScriptFromResponse(r *Response) Script {
	return Script{
		URL:         r.URL,
		StatusCode:  r.StatusCode,
		ContentType: r.ContentType,
		Size:        r.Size,
		Hash:        r.Hash,
	}
}

// NewReport creates an empty report for the given domain.
func NewReport(domain string) *Report {
	return &Report{
		Domain:           domain,
		Seeds:            make([]string, 0),
		Scripts:          make([]Script, 0),
		PluginCandidates: make(map[string]int),
		StartedAt:        time.Now(),
	}
}

// AddScript records a confirmed script and keeps Scripts sorted by URL.
// A URL that is already present is ignored.
func (r *Report) AddScript(s Script) {
	i := sort.Search(len(r.Scripts), func(i int) bool {
		return r.Scripts[i].URL >= s.URL
	})
	if i < len(r.Scripts) && r.Scripts[i].URL == s.URL {
		return
	}
	r.Scripts = append(r.Scripts, Script{})
	copy(r.Scripts[i+1:], r.Scripts[i:])
	r.Scripts[i] = s
}

// ScriptURLs returns the confirmed script URLs in sorted order.
func (r *Report) ScriptURLs() []string {
	urls := make([]string, len(r.Scripts))
	for i, s := range r.Scripts {
		urls[i] = s.URL
	}
	return urls
}

// Duration returns how long the run took.
// It is zero until FinishedAt is set.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DiffScriptURLs compares two sorted or unsorted URL lists and returns the
// URLs only in current (added) and only in previous (removed), both sorted.
func DiffScriptURLs(previous, current []string) (added, removed []string) {
	prev := make(map[string]bool, len(previous))
	for _, u := range previous {
		prev[u] = true
	}
	cur := make(map[string]bool, len(current))
	for _, u := range current {
		cur[u] = true
	}

	added = make([]string, 0)
	for u := range cur {
		if !prev[u] {
			added = append(added, u)
		}
	}
	removed = make([]string, 0)
	for u := range prev {
		if !cur[u] {
			removed = append(removed, u)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
