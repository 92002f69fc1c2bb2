package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/jsfinder/internal/model"
)

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) (*Pipeline, error) { return New(), nil })

		if bp == nil {
			t.Fatal("expected non-nil processor")
		}
		if bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultBatchConcurrency, bp.concurrency)
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(
			func(string) (*Pipeline, error) { return New(), nil },
			WithConcurrency(5),
		)

		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(
			func(string) (*Pipeline, error) { return New(), nil },
			WithConcurrency(0),
		)

		if bp.concurrency != DefaultBatchConcurrency { // Should keep default
			t.Errorf("expected concurrency %d, got %d", DefaultBatchConcurrency, bp.concurrency)
		}
	})

	t.Run("applies WithBatchLogger option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(
			func(string) (*Pipeline, error) { return New(), nil },
			WithBatchLogger(nil),
		)

		// When WithBatchLogger(nil) is passed, the logger should be set to default
		if bp == nil {
			t.Fatal("expected non-nil processor")
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all domains", func(t *testing.T) {
		t.Parallel()

		var processedCount atomic.Int32

		bp := NewBatchProcessor(func(string) (*Pipeline, error) {
			p := New()
			p.AddStep(FromFunc("counter", func(_ context.Context, _ *model.Report) error {
				processedCount.Add(1)
				return nil
			}))
			return p, nil
		})

		domains := []string{
			"domain1.example",
			"domain2.example",
			"domain3.example",
		}

		results, err := bp.ProcessBatch(context.Background(), domains)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 3 {
			t.Errorf("expected 3 results, got %d", len(results))
		}
		if processedCount.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processedCount.Load())
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var maxConcurrent atomic.Int32
		var currentConcurrent atomic.Int32
		var mu sync.Mutex

		bp := NewBatchProcessor(
			func(string) (*Pipeline, error) {
				p := New()
				p.AddStep(FromFunc("concurrent-counter", func(_ context.Context, _ *model.Report) error {
					current := currentConcurrent.Add(1)

					// Update max if needed (with mutex for safety)
					mu.Lock()
					if current > maxConcurrent.Load() {
						maxConcurrent.Store(current)
					}
					mu.Unlock()

					// Simulate some work
					time.Sleep(50 * time.Millisecond)

					currentConcurrent.Add(-1)
					return nil
				}))
				return p, nil
			},
			WithConcurrency(2),
		)

		domains := make([]string, 10)
		for i := range domains {
			domains[i] = "domain.example"
		}

		_, err := bp.ProcessBatch(context.Background(), domains)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if maxConcurrent.Load() > 2 {
			t.Errorf("max concurrent was %d, expected <= 2", maxConcurrent.Load())
		}
	})

	t.Run("maintains result order", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) (*Pipeline, error) {
			p := New()
			p.AddStep(FromFunc("noop", nil))
			return p, nil
		})

		domains := []string{
			"first.example",
			"second.example",
			"third.example",
		}

		results, err := bp.ProcessBatch(context.Background(), domains)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, result := range results {
			if result.Domain != domains[i] {
				t.Errorf("result[%d]: got %q, expected %q",
					i, result.Domain, domains[i])
			}
		}
	})

	t.Run("continues after individual scan failure", func(t *testing.T) {
		t.Parallel()

		var processedCount atomic.Int32

		bp := NewBatchProcessor(func(string) (*Pipeline, error) {
			p := New()
			p.AddStep(FromFunc("sometimes-fails", func(_ context.Context, report *model.Report) error {
				processedCount.Add(1)
				// Fail for the second domain only
				if report.Domain == "fail.example" {
					return errors.New("simulated scan failure")
				}
				return nil
			}))
			return p, nil
		})

		domains := []string{
			"first.example",
			"fail.example",
			"third.example",
		}

		results, err := bp.ProcessBatch(context.Background(), domains)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if processedCount.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processedCount.Load())
		}
		// Check that the failed scan has an error recorded
		if results[1].Error == nil {
			t.Error("expected error in second result")
		}
	})

	t.Run("records factory errors", func(t *testing.T) {
		t.Parallel()

		factoryErr := errors.New("unknown plugin")
		bp := NewBatchProcessor(func(domain string) (*Pipeline, error) {
			if domain == "bad.example" {
				return nil, factoryErr
			}
			return New(), nil
		})

		results, err := bp.ProcessBatch(context.Background(), []string{"good.example", "bad.example"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[0].Error != nil {
			t.Errorf("unexpected error in first result: %v", results[0].Error)
		}
		if !errors.Is(results[1].Error, factoryErr) {
			t.Errorf("expected factory error, got %v", results[1].Error)
		}
		if results[1].FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())

		var startedCount atomic.Int32

		bp := NewBatchProcessor(
			func(string) (*Pipeline, error) {
				p := New()
				p.AddStep(FromFunc("slow-step", func(ctx context.Context, _ *model.Report) error {
					startedCount.Add(1)
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(time.Second):
						return nil
					}
				}))
				return p, nil
			},
			WithConcurrency(2),
		)

		domains := make([]string, 10)
		for i := range domains {
			domains[i] = "domain.example"
		}

		// Cancel after a short delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		results, err := bp.ProcessBatch(ctx, domains)

		// Should return context.Canceled
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(results) != len(domains) {
			t.Fatalf("expected %d results, got %d", len(domains), len(results))
		}
		for i, r := range results {
			if r == nil {
				t.Fatalf("result[%d] is nil", i)
			}
			if !r.TimedOut {
				t.Errorf("result[%d]: expected TimedOut", i)
			}
		}
		// Not all domains should have started
		//nolint:gosec // len(domains) is small, no overflow risk
		if startedCount.Load() >= int32(len(domains)) {
			t.Error("expected some domains to not start due to cancellation")
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests callback-based processing.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	t.Run("calls callback for each result", func(t *testing.T) {
		t.Parallel()

		var callbackCount atomic.Int32
		var mu sync.Mutex
		receivedDomains := make(map[string]bool)

		bp := NewBatchProcessor(func(string) (*Pipeline, error) {
			p := New()
			p.AddStep(FromFunc("noop", nil))
			return p, nil
		})

		domains := []string{
			"first.example",
			"second.example",
			"third.example",
		}

		err := bp.ProcessBatchWithCallback(
			context.Background(),
			domains,
			func(report *model.Report, _ int) {
				callbackCount.Add(1)
				mu.Lock()
				receivedDomains[report.Domain] = true
				mu.Unlock()
			},
		)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if callbackCount.Load() != 3 {
			t.Errorf("expected 3 callbacks, got %d", callbackCount.Load())
		}
		for _, domain := range domains {
			if !receivedDomains[domain] {
				t.Errorf("missing callback for %q", domain)
			}
		}
	})
}
