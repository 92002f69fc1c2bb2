package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/jsfinder/internal/fetch"
	"github.com/nao1215/jsfinder/internal/model"
	"github.com/nao1215/jsfinder/internal/plugin"
)

// DefaultConcurrency is the number of fetches a Finder runs at once.
const DefaultConcurrency = 5

var (
	// ErrEmptyDomain is returned by NewFinder when no domain is given.
	ErrEmptyDomain = errors.New("domain is empty")

	// ErrNilFetcher is returned by NewFinder when no fetcher is given.
	ErrNilFetcher = errors.New("fetcher is nil")

	// errNoResponse marks a fetch that returned neither a response nor an
	// error. The candidate is dropped like any other transport failure.
	errNoResponse = errors.New("fetcher returned no response")
)

// Fetcher retrieves a single resource.
//
// Implementations return a response for every HTTP status, including 404.
// Errors are transport failures; errors wrapping fetch.ErrTransportSecurity
// make the Finder retry an https URL once over http.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.Response, error)
}

// Finder discovers the script resources of one domain.
//
// A Finder holds only configuration. All per-run state lives in Run, so a
// single Finder may run several discoveries concurrently.
type Finder struct {
	// domain is the host discovery is restricted to.
	domain string

	// fetcher retrieves candidate URLs.
	fetcher Fetcher

	// extractor finds and scopes references in response text.
	extractor *Extractor

	// concurrency is the width of the fetch pool.
	concurrency int

	// maxCandidates caps the number of distinct URLs queued. 0 = unlimited.
	maxCandidates int

	// maxDepth caps the reference chain length from a seed. 0 = unlimited.
	// References found directly in seeds or produced by plugins are depth 1.
	maxDepth int

	// plugins run once after the first expansion phase.
	plugins []plugin.Plugin

	// logger receives per-candidate diagnostics.
	logger *slog.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithConcurrency sets the number of concurrent fetches.
// Non-positive values are ignored.
func WithConcurrency(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithMaxCandidates caps the number of distinct URLs queued per run.
func WithMaxCandidates(n int) Option {
	return func(f *Finder) {
		if n >= 0 {
			f.maxCandidates = n
		}
	}
}

// WithMaxDepth caps how many references away from a seed a URL may be.
func WithMaxDepth(depth int) Option {
	return func(f *Finder) {
		if depth >= 0 {
			f.maxDepth = depth
		}
	}
}

// WithPlugins sets the plugins for the second phase.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(f *Finder) {
		f.plugins = append(f.plugins, plugins...)
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Finder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFinder creates a Finder for domain. domain may be a bare host or a
// full URL, in which case only its host is used.
func NewFinder(domain string, fetcher Fetcher, opts ...Option) (*Finder, error) {
	extractor := NewExtractor(domain)
	if extractor.Domain() == "" {
		return nil, ErrEmptyDomain
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	f := &Finder{
		domain:      extractor.Domain(),
		fetcher:     fetcher,
		extractor:   extractor,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Domain returns the normalized domain of the Finder.
func (f *Finder) Domain() string {
	return f.domain
}

// Result is the outcome of one discovery run.
type Result struct {
	// Domain is the domain discovery was restricted to.
	Domain string

	// Confirmed contains the verified script URLs in sorted order.
	Confirmed []string

	// Scripts contains the responses of the verified URLs in fetch order.
	Scripts []*model.Response

	// Corpus contains the seeds followed by every verified response.
	Corpus []*model.Response

	// PluginCandidates maps each plugin name to the number of raw
	// candidates it produced.
	PluginCandidates map[string]int

	// Stats contains the frontier counters at the end of the run.
	Stats FrontierStats
}

// Run discovers script URLs reachable from seeds.
//
// Phase one follows every reference found in the seeds until no fetch is in
// flight. If plugins are configured, they then run exactly once over the
// collected corpus and their output is expanded the same way until the
// second quiescence.
//
// Per-candidate failures never abort the run. If ctx is canceled, no new
// fetches are started, the partial result is returned and so is ctx.Err().
//
// Design decision: Each candidate gets its own goroutine that waits on a
// weighted semaphore, and a WaitGroup counts outstanding units:
//  1. Submitting work from inside a unit never blocks that unit
//  2. Quiescence is a plain Wait with no polling
//  3. Parked goroutines are bounded by the candidate limit
func (f *Finder) Run(ctx context.Context, seeds []*model.Response) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := f.newRun(ctx)

	for _, seed := range seeds {
		if seed == nil {
			continue
		}
		r.corpus.Add(seed)

		base := r.baseFor(seed.URL)
		for _, c := range f.extractor.Candidates(seed.Text) {
			r.enqueue(base, c, 1)
		}
	}
	r.wg.Wait()

	pluginCandidates := make(map[string]int, len(f.plugins))
	if len(f.plugins) > 0 && ctx.Err() == nil {
		pluginCandidates = r.runPlugins()
		r.wg.Wait()
	}

	result := &Result{
		Domain:           f.domain,
		Confirmed:        r.frontier.Confirmed(),
		Scripts:          r.scripts.Snapshot(),
		Corpus:           r.corpus.Snapshot(),
		PluginCandidates: pluginCandidates,
		Stats:            r.frontier.Stats(),
	}

	f.logger.Debug("discovery finished",
		"domain", f.domain,
		"confirmed", result.Stats.Confirmed,
		"queued", result.Stats.Pending,
		"rejected", result.Stats.Rejected,
	)

	return result, ctx.Err()
}

// run holds the state of one Run call.
type run struct {
	*Finder

	ctx      context.Context
	base     string
	frontier *Frontier
	corpus   *model.Corpus
	scripts  *model.Corpus
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
}

func (f *Finder) newRun(ctx context.Context) *run {
	return &run{
		Finder:   f,
		ctx:      ctx,
		base:     "https://" + f.domain + "/",
		frontier: NewFrontier(f.maxCandidates),
		corpus:   model.NewCorpus(),
		scripts:  model.NewCorpus(),
		sem:      semaphore.NewWeighted(int64(f.concurrency)),
	}
}

// baseFor returns the base for references found in the response from u.
// Responses without an absolute URL or from a host other than the domain
// resolve against the domain root.
func (r *run) baseFor(u string) string {
	if !hasHTTPScheme(u) || !r.extractor.InScope(u) {
		return r.base
	}
	return u
}

// enqueue resolves raw against base and, if the result is in scope and new,
// submits a fetch for it.
func (r *run) enqueue(base, raw string, depth int) {
	if !r.extractor.InScope(raw) {
		return
	}
	target := Resolve(base, raw)
	if !hasHTTPScheme(target) || !r.extractor.InScope(target) {
		return
	}
	if r.maxDepth > 0 && depth > r.maxDepth {
		return
	}
	if r.ctx.Err() != nil {
		return
	}
	if !r.frontier.AddPending(target) {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			return
		}
		defer r.sem.Release(1)
		r.expand(target, depth)
	}()
}

// expand fetches target, records it and queues its references.
func (r *run) expand(target string, depth int) {
	resp, err := r.fetch(target)
	if err != nil {
		r.logger.Debug("fetch failed", "url", target, "error", err)
		return
	}
	if resp.IsNotFound() {
		r.logger.Debug("script not found", "url", target)
		return
	}

	confirmed := resp.URL
	if confirmed == "" {
		confirmed = target
	}
	if !r.frontier.AddConfirmed(confirmed) {
		return
	}
	r.corpus.Add(resp)
	r.scripts.Add(resp)
	r.logger.Debug("script confirmed", "url", confirmed, "status", resp.StatusCode)

	base := r.baseFor(confirmed)
	for _, c := range r.extractor.Candidates(resp.Text) {
		r.enqueue(base, c, depth+1)
	}
}

// fetch retrieves target. An https URL failing with a transport security
// error is retried once over http, unless that URL is already known.
func (r *run) fetch(target string) (*model.Response, error) {
	resp, err := r.fetcher.Fetch(r.ctx, target)
	if err == nil {
		if resp == nil {
			return nil, errNoResponse
		}
		return resp, nil
	}
	if !errors.Is(err, fetch.ErrTransportSecurity) || !strings.HasPrefix(target, "https://") {
		return nil, err
	}

	fallback := "http://" + strings.TrimPrefix(target, "https://")
	if !r.frontier.AddPending(fallback) {
		return nil, err
	}
	r.logger.Debug("falling back to http", "url", fallback)

	resp, err = r.fetcher.Fetch(r.ctx, fallback)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errNoResponse
	}
	if resp.URL == "" {
		resp.URL = fallback
	}
	return resp, nil
}

// runPlugins invokes every plugin once, concurrently, over a snapshot of
// the corpus and queues their output. It returns the number of candidates
// each plugin produced.
func (r *run) runPlugins() map[string]int {
	snapshot := r.corpus.Snapshot()
	counts := make(map[string]int, len(r.plugins))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, p := range r.plugins {
		g.Go(func() error {
			candidates := r.extractWith(p, snapshot)

			mu.Lock()
			counts[p.Name()] += len(candidates)
			mu.Unlock()

			for _, c := range candidates {
				r.enqueue(r.base, c, 1)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // plugin goroutines never fail

	return counts
}

// extractWith runs one plugin. Errors and panics yield no candidates.
func (r *run) extractWith(p plugin.Plugin, corpus []*model.Response) (candidates []string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("plugin panicked", "plugin", p.Name(), "error", fmt.Sprint(rec))
			candidates = nil
		}
	}()

	candidates, err := p.Extract(r.ctx, corpus)
	if err != nil {
		r.logger.Warn("plugin failed", "plugin", p.Name(), "error", err)
		return nil
	}
	return candidates
}
