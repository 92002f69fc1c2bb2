package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/jsfinder/internal/config"
	"github.com/nao1215/jsfinder/internal/crawler"
	"github.com/nao1215/jsfinder/internal/fetch"
	"github.com/nao1215/jsfinder/internal/model"
	"github.com/nao1215/jsfinder/internal/plugin"
)

// ErrNoSeeds is returned by SeedStep when none of the seed URLs could be fetched.
var ErrNoSeeds = errors.New("no seed page could be fetched")

// errNoSeedResponse marks a seed fetch that returned neither a response nor an error.
var errNoSeedResponse = errors.New("fetcher returned no response")

// SeedStep fetches the pages discovery starts from.
// It fetches the domain root plus any configured extra seeds and stores
// the responses as the first entries of the report corpus.
//
// Design decision: Seeding is a separate step because:
// 1. Callers that already hold pages can skip it and hand them in directly
// 2. A failed seed fetch is reported before discovery starts
// 3. The root fetch uses the same https to http fallback as discovery
type SeedStep struct {
	// fetcher retrieves the seed pages.
	fetcher crawler.Fetcher

	// extraSeeds are fetched in addition to the domain root.
	// Relative values are resolved against https://<domain>/.
	extraSeeds []string

	// logger for structured logging.
	logger *slog.Logger
}

// SeedStepOption configures a SeedStep.
type SeedStepOption func(*SeedStep)

// WithExtraSeeds adds seed URLs fetched after the domain root.
func WithExtraSeeds(seeds []string) SeedStepOption {
	return func(s *SeedStep) {
		s.extraSeeds = append(s.extraSeeds, seeds...)
	}
}

// WithSeedLogger sets a custom logger for the seed step.
func WithSeedLogger(logger *slog.Logger) SeedStepOption {
	return func(s *SeedStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSeedStep creates a step that fetches seed pages with fetcher.
func NewSeedStep(fetcher crawler.Fetcher, opts ...SeedStepOption) *SeedStep {
	s := &SeedStep{
		fetcher: fetcher,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SeedStep) Name() string {
	return "seed"
}

// Do fetches the seed pages. If the report already carries a corpus, the
// caller supplied its own seeds and the step does nothing.
func (s *SeedStep) Do(ctx context.Context, report *model.Report) error {
	if len(report.Corpus) > 0 {
		for _, r := range report.Corpus {
			report.Seeds = append(report.Seeds, r.URL)
		}
		return nil
	}

	domain := crawler.NormalizeDomain(report.Domain)
	root := "https://" + domain + "/"

	targets := []string{root}
	for _, seed := range s.extraSeeds {
		seed = strings.TrimSpace(seed)
		if seed == "" {
			continue
		}
		target := crawler.Resolve(root, seed)
		if target+"/" == root {
			continue
		}
		targets = append(targets, target)
	}

	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		if seen[target] {
			continue
		}
		seen[target] = true

		resp, err := s.fetch(ctx, target)
		if err == nil && resp == nil {
			err = errNoSeedResponse
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("seed fetch failed", "seed", target, "error", err)
			continue
		}

		report.Corpus = append(report.Corpus, resp)
		report.Seeds = append(report.Seeds, resp.URL)
		s.logger.Debug("seed fetched", "seed", resp.URL, "status", resp.StatusCode)
	}

	if len(report.Corpus) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSeeds, domain)
	}
	return nil
}

// fetch retrieves target, retrying an https URL once over http when the
// TLS handshake fails.
func (s *SeedStep) fetch(ctx context.Context, target string) (*model.Response, error) {
	resp, err := s.fetcher.Fetch(ctx, target)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, fetch.ErrTransportSecurity) || !strings.HasPrefix(target, "https://") {
		return nil, err
	}

	fallback := "http://" + strings.TrimPrefix(target, "https://")
	s.logger.Debug("falling back to http", "seed", fallback)
	resp, err = s.fetcher.Fetch(ctx, fallback)
	if err != nil || resp == nil {
		return nil, err
	}
	if resp.URL == "" {
		resp.URL = fallback
	}
	return resp, nil
}

// DiscoverStep runs script discovery over the report corpus.
// It fills the report with the confirmed scripts and plugin counters.
type DiscoverStep struct {
	// fetcher retrieves candidate URLs.
	fetcher crawler.Fetcher

	// finderOpts configure the crawler.Finder built for each run.
	finderOpts []crawler.Option

	// logger for structured logging.
	logger *slog.Logger
}

// DiscoverStepOption configures a DiscoverStep.
type DiscoverStepOption func(*DiscoverStep)

// WithFinderOptions passes options to the crawler.Finder.
func WithFinderOptions(opts ...crawler.Option) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.finderOpts = append(s.finderOpts, opts...)
	}
}

// WithDiscoverLogger sets a custom logger for the discover step.
func WithDiscoverLogger(logger *slog.Logger) DiscoverStepOption {
	return func(s *DiscoverStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewDiscoverStep creates a discovery step that fetches with fetcher.
func NewDiscoverStep(fetcher crawler.Fetcher, opts ...DiscoverStepOption) *DiscoverStep {
	s := &DiscoverStep{
		fetcher: fetcher,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do executes discovery.
//
// Cancellation is not a step failure: the partial result is kept and the
// report is marked as timed out.
func (s *DiscoverStep) Do(ctx context.Context, report *model.Report) error {
	opts := append([]crawler.Option{crawler.WithLogger(s.logger)}, s.finderOpts...)
	finder, err := crawler.NewFinder(report.Domain, s.fetcher, opts...)
	if err != nil {
		return fmt.Errorf("failed to create finder: %w", err)
	}

	result, err := finder.Run(ctx, report.Corpus)
	if result != nil {
		for _, resp := range result.Scripts {
			report.AddScript(model.ScriptFromResponse(resp))
		}
		for name, n := range result.PluginCandidates {
			report.PluginCandidates[name] += n
		}
		report.CandidatesQueued = result.Stats.Pending
		report.Corpus = result.Corpus

		if result.Stats.Rejected > 0 {
			s.logger.Warn("candidate limit reached",
				"domain", report.Domain,
				"rejected", result.Stats.Rejected,
			)
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			report.TimedOut = true
			return nil
		}
		return err
	}

	s.logger.Info("discovery complete",
		"domain", report.Domain,
		"scripts", len(report.Scripts),
	)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// ExtraSeeds are fetched in addition to the domain root.
	ExtraSeeds []string

	// Concurrency is the number of concurrent fetches per domain.
	Concurrency int

	// MaxCandidates caps the distinct URLs queued per domain. 0 = unlimited.
	MaxCandidates int

	// MaxDepth caps the reference chain length. 0 = unlimited.
	MaxDepth int

	// Plugins are the names of the second-phase plugins to run.
	Plugins []string
}

// DefaultPipelineOption configures the default pipeline.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineExtraSeeds sets additional seed URLs.
func WithPipelineExtraSeeds(seeds []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.ExtraSeeds = seeds
	}
}

// WithPipelineConcurrency sets the number of concurrent fetches.
func WithPipelineConcurrency(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Concurrency = n
	}
}

// WithPipelineMaxCandidates sets the candidate ceiling.
func WithPipelineMaxCandidates(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxCandidates = n
	}
}

// WithPipelineMaxDepth sets the maximum reference depth.
func WithPipelineMaxDepth(depth int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxDepth = depth
	}
}

// WithPipelinePlugins sets the plugins by name.
// An empty slice disables the second phase.
func WithPipelinePlugins(names []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Plugins = names
	}
}

// DefaultPipeline creates a pipeline with the seed and discover steps.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineMaxDepth, etc).
// It fails only when a plugin name is unknown.
func DefaultPipeline(fetcher crawler.Fetcher, pipelineOpts []Option, configOpts ...DefaultPipelineOption) (*Pipeline, error) {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		Concurrency:   config.DefaultConcurrency,
		MaxCandidates: config.DefaultMaxCandidates,
		MaxDepth:      config.DefaultMaxDepth,
		Plugins:       append([]string(nil), config.DefaultPlugins...),
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	plugins, err := plugin.Load(cfg.Plugins)
	if err != nil {
		return nil, err
	}

	p.AddStep(
		NewSeedStep(fetcher,
			WithExtraSeeds(cfg.ExtraSeeds),
			WithSeedLogger(p.logger),
		),
		NewDiscoverStep(fetcher,
			WithDiscoverLogger(p.logger),
			WithFinderOptions(
				crawler.WithConcurrency(cfg.Concurrency),
				crawler.WithMaxCandidates(cfg.MaxCandidates),
				crawler.WithMaxDepth(cfg.MaxDepth),
				crawler.WithPlugins(plugins...),
			),
		),
	)

	return p, nil
}
