package crawler

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrontier(t *testing.T) {
	t.Parallel()

	t.Run("pending insertion happens once", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(0)
		if !f.AddPending("https://example.com/a.js") {
			t.Fatal("expected first insertion to succeed")
		}
		if f.AddPending("https://example.com/a.js") {
			t.Error("expected duplicate insertion to fail")
		}
		if !f.IsPending("https://example.com/a.js") {
			t.Error("expected URL to be pending")
		}
	})

	t.Run("confirmed is sorted and deduplicated", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(0)
		f.AddConfirmed("https://example.com/b.js")
		f.AddConfirmed("https://example.com/a.js")
		if f.AddConfirmed("https://example.com/b.js") {
			t.Error("expected duplicate confirmation to report false")
		}

		want := []string{"https://example.com/a.js", "https://example.com/b.js"}
		if diff := cmp.Diff(want, f.Confirmed()); diff != "" {
			t.Errorf("Confirmed() mismatch (-want +got):\n%s", diff)
		}
		if !f.IsConfirmed("https://example.com/a.js") {
			t.Error("expected URL to be confirmed")
		}
	})

	t.Run("limit rejects new URLs", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(2)
		f.AddPending("a")
		f.AddPending("b")
		if f.AddPending("c") {
			t.Error("expected insertion beyond limit to fail")
		}
		if f.AddPending("a") {
			t.Error("expected duplicate to fail")
		}

		stats := f.Stats()
		if stats.Pending != 2 || stats.Rejected != 1 {
			t.Errorf("unexpected stats %+v", stats)
		}
		if diff := cmp.Diff([]string{"a", "b"}, f.Pending()); diff != "" {
			t.Errorf("Pending() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("concurrent insertion admits each URL once", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(0)
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if f.AddPending(fmt.Sprintf("u%d", i%10)) {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if wins != 10 {
			t.Errorf("expected 10 successful insertions, got %d", wins)
		}
	})
}
