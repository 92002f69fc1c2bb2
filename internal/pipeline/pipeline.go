package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/jsfinder/internal/model"
)

// Step is one stage of a discovery run.
//
// Steps share nothing but the report: SeedStep fills Seeds and Corpus,
// DiscoverStep reads Corpus and fills Scripts. A step that is interrupted
// keeps whatever it already wrote to the report.
type Step interface {
	// Name identifies the step in logs and in Report.PerformedSteps.
	Name() string

	// Do runs the step over report.
	Do(ctx context.Context, report *model.Report) error
}

// StepFunc is the signature of a step body.
type StepFunc func(ctx context.Context, report *model.Report) error

type funcStep struct {
	name string
	fn   StepFunc
}

// FromFunc adapts fn to a Step called name. A nil fn does nothing.
func FromFunc(name string, fn StepFunc) Step {
	return &funcStep{name: name, fn: fn}
}

func (s *funcStep) Name() string {
	return s.name
}

func (s *funcStep) Do(ctx context.Context, report *model.Report) error {
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, report)
}

// Pipeline runs the steps of one discovery run in order.
//
// Design decision: The first failing step ends the run. Discovery has
// nothing to scan without seed pages, so later steps are skipped instead
// of being run over an empty corpus.
type Pipeline struct {
	// steps in execution order.
	steps []Step

	// logger receives one record per step.
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddStep appends steps to the pipeline.
func (p *Pipeline) AddStep(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

// Execute runs the steps over report.
//
// Completed steps are appended to report.PerformedSteps. When ctx is
// canceled, before a step or while it runs, the report is marked as timed
// out and keeps its partial corpus and scripts; cancellation is not
// recorded as a report error. Any other step failure is stored in
// report.Error and ends the run.
func (p *Pipeline) Execute(ctx context.Context, report *model.Report) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			report.TimedOut = true
			p.logger.Warn("discovery interrupted", "domain", report.Domain, "next", step.Name())
			return err
		}

		start := time.Now()
		err := step.Do(ctx, report)
		elapsed := time.Since(start).Round(time.Millisecond)

		switch {
		case err == nil:
			report.PerformedSteps = append(report.PerformedSteps, step.Name())
			p.logger.Debug("step done",
				"step", step.Name(),
				"domain", report.Domain,
				"elapsed", elapsed,
				"corpus", len(report.Corpus),
				"scripts", len(report.Scripts),
			)
		case ctx.Err() != nil:
			report.TimedOut = true
			p.logger.Warn("discovery interrupted",
				"step", step.Name(),
				"domain", report.Domain,
				"scripts", len(report.Scripts),
			)
			return err
		default:
			report.Error = err
			report.ErrorMessage = err.Error()
			p.logger.Error("step failed",
				"step", step.Name(),
				"domain", report.Domain,
				"elapsed", elapsed,
				"error", err,
			)
			return err
		}
	}
	return nil
}

// Run creates the report for domain, executes the pipeline over it and
// stamps FinishedAt. The report is returned even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, domain string) (*model.Report, error) {
	report := model.NewReport(domain)
	err := p.Execute(ctx, report)
	report.FinishedAt = time.Now()
	return report, err
}
