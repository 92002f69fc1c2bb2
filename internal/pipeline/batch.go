package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/jsfinder/internal/model"
)

// DefaultBatchConcurrency is the number of domains processed at once
// when WithConcurrency is not given.
const DefaultBatchConcurrency = 4

// Factory builds the pipeline for one domain.
//
// Design decision: The factory receives the domain because per-domain
// settings (headers, cookie, extra seeds, plugins) change the fetcher
// and the steps, so every domain gets a fresh pipeline.
type Factory func(domain string) (*Pipeline, error)

// BatchProcessor handles concurrent processing of multiple domains.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-domain execution
// 2. Domain-level concurrency stays independent of the per-domain fetch pool
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each domain.
	pipelineFactory Factory

	// concurrency is the maximum number of concurrent domains.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed reports.
	// Access is synchronized via mutex.
	results []*model.Report
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent domains.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultBatchConcurrency,
		results:         make([]*model.Report, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs the pipeline for every domain concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Returns one report per domain in input order, even for domains that
// failed; the failure is recorded in the report. A domain that never
// started because ctx was canceled has a report marked as timed out.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, domains []string) ([]*model.Report, error) {
	bp.mu.Lock()
	bp.results = make([]*model.Report, len(domains))
	bp.mu.Unlock()

	err := bp.ProcessBatchWithCallback(ctx, domains, func(report *model.Report, index int) {
		bp.mu.Lock()
		bp.results[index] = report
		bp.mu.Unlock()
	})

	bp.mu.Lock()
	defer bp.mu.Unlock()
	for i, domain := range domains {
		if bp.results[i] == nil {
			report := model.NewReport(domain)
			report.TimedOut = true
			report.FinishedAt = report.StartedAt
			bp.results[i] = report
		}
	}
	return bp.results, err
}

// ProcessBatchWithCallback runs the pipeline for every domain and calls
// callback for each completed report. This is useful for streaming results.
//
// The callback is called from the goroutine that completed the domain, so
// it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	domains []string,
	callback func(report *model.Report, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_domains", len(domains),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, domain := range domains {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			callback(bp.processOne(ctx, domain, i, len(domains)), i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // failures are recorded in reports

	bp.logger.Info("batch processing complete",
		"total_domains", len(domains),
		"elapsed", time.Since(startTime),
	)

	return ctx.Err()
}

// processOne builds and executes the pipeline for a single domain.
func (bp *BatchProcessor) processOne(ctx context.Context, domain string, index, total int) *model.Report {
	bp.logger.Info("scanning domain",
		"domain", domain,
		"index", index+1,
		"total", total,
	)

	p, err := bp.pipelineFactory(domain)
	if err != nil {
		report := model.NewReport(domain)
		report.Error = err
		report.ErrorMessage = err.Error()
		report.FinishedAt = time.Now()
		bp.logger.Warn("failed to build pipeline", "domain", domain, "error", err)
		return report
	}

	report, err := p.Run(ctx, domain)
	if err != nil {
		bp.logger.Warn("scan failed", "domain", domain, "error", err)
		return report
	}

	bp.logger.Info("scan completed",
		"domain", domain,
		"scripts", len(report.Scripts),
	)
	return report
}
