package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/jsfinder/internal/crawler"
	"github.com/nao1215/jsfinder/internal/fetch"
	"github.com/nao1215/jsfinder/internal/model"
	"github.com/nao1215/jsfinder/internal/plugin"
)

// stubFetcher serves canned texts and errors. Unknown URLs return 404.
type stubFetcher struct {
	texts  map[string]string
	errors map[string]error

	mu    sync.Mutex
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*model.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if err, ok := f.errors[url]; ok {
		return nil, err
	}
	text, ok := f.texts[url]
	if !ok {
		return model.NewResponse(url, http.StatusNotFound, ""), nil
	}
	return model.NewResponse(url, http.StatusOK, text), nil
}

// emptyFetcher returns neither a response nor an error.
type emptyFetcher struct{}

func (emptyFetcher) Fetch(context.Context, string) (*model.Response, error) {
	return nil, nil
}

func (f *stubFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestSeedStep(t *testing.T) {
	t.Parallel()

	t.Run("fetches the domain root", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{texts: map[string]string{"https://example.com/": "<html></html>"}}
		report := model.NewReport("example.com")

		if err := NewSeedStep(fetcher).Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"https://example.com/"}, report.Seeds); diff != "" {
			t.Errorf("seeds mismatch (-want +got):\n%s", diff)
		}
		if len(report.Corpus) != 1 {
			t.Errorf("expected 1 corpus entry, got %d", len(report.Corpus))
		}
	})

	t.Run("falls back to http on TLS failure", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{
			texts: map[string]string{"http://example.com/": "ok"},
			errors: map[string]error{
				"https://example.com/": fmt.Errorf("fetch: %w", fetch.ErrTransportSecurity),
			},
		}
		report := model.NewReport("example.com")

		if err := NewSeedStep(fetcher).Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"http://example.com/"}, report.Seeds); diff != "" {
			t.Errorf("seeds mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("does not fall back on other errors", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{
			errors: map[string]error{"https://example.com/": errors.New("connection refused")},
		}
		err := NewSeedStep(fetcher).Do(context.Background(), model.NewReport("example.com"))
		if !errors.Is(err, ErrNoSeeds) {
			t.Errorf("expected ErrNoSeeds, got %v", err)
		}
		if diff := cmp.Diff([]string{"https://example.com/"}, fetcher.fetched()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("treats a missing response as a failed seed", func(t *testing.T) {
		t.Parallel()

		report := model.NewReport("example.com")
		err := NewSeedStep(emptyFetcher{}).Do(context.Background(), report)
		if !errors.Is(err, ErrNoSeeds) {
			t.Errorf("expected ErrNoSeeds, got %v", err)
		}
		if len(report.Corpus) != 0 || len(report.Seeds) != 0 {
			t.Errorf("expected no seeds, got %v", report.Seeds)
		}
	})

	t.Run("fetches extra seeds", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{texts: map[string]string{
			"https://example.com/":      "root",
			"https://example.com/login": "login",
		}}
		report := model.NewReport("example.com")
		step := NewSeedStep(fetcher, WithExtraSeeds([]string{"/login", "", "/", " /login "}))

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"https://example.com/", "https://example.com/login"}
		if diff := cmp.Diff(want, report.Seeds); diff != "" {
			t.Errorf("seeds mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("keeps seeds supplied by the caller", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{}
		report := model.NewReport("example.com")
		report.Corpus = []*model.Response{model.NewResponse("https://example.com/app", 200, "x")}

		if err := NewSeedStep(fetcher).Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fetcher.fetched()) != 0 {
			t.Errorf("expected no fetches, got %v", fetcher.fetched())
		}
		if diff := cmp.Diff([]string{"https://example.com/app"}, report.Seeds); diff != "" {
			t.Errorf("seeds mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fetcher := &stubFetcher{
			errors: map[string]error{"https://example.com/": context.Canceled},
		}
		err := NewSeedStep(fetcher).Do(ctx, model.NewReport("example.com"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestDiscoverStep(t *testing.T) {
	t.Parallel()

	t.Run("fills the report", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{texts: map[string]string{
			"https://example.com/static/a.js": `import "./b.js";`,
			"https://example.com/static/b.js": `var x = 1;`,
		}}
		report := model.NewReport("example.com")
		report.Corpus = []*model.Response{
			model.NewResponse("https://example.com/", 200, `<script src="/static/a.js"></script>`),
		}

		step := NewDiscoverStep(fetcher, WithFinderOptions(
			crawler.WithPlugins(plugin.FromFunc("static", func(context.Context, []*model.Response) ([]string, error) {
				return []string{"/missing.js"}, nil
			})),
		))
		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"https://example.com/static/a.js", "https://example.com/static/b.js"}
		if diff := cmp.Diff(want, report.ScriptURLs()); diff != "" {
			t.Errorf("scripts mismatch (-want +got):\n%s", diff)
		}
		if report.CandidatesQueued != 3 {
			t.Errorf("expected 3 queued candidates, got %d", report.CandidatesQueued)
		}
		if report.PluginCandidates["static"] != 1 {
			t.Errorf("expected 1 plugin candidate, got %d", report.PluginCandidates["static"])
		}
		if len(report.Corpus) != 3 {
			t.Errorf("expected seed plus 2 scripts in corpus, got %d", len(report.Corpus))
		}
		if report.Scripts[0].Hash == "" {
			t.Error("expected script hash to be recorded")
		}
	})

	t.Run("cancellation marks the report as timed out", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report := model.NewReport("example.com")
		if err := NewDiscoverStep(&stubFetcher{}).Do(ctx, report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.TimedOut {
			t.Error("expected TimedOut to be true")
		}
	})

	t.Run("rejects an empty domain", func(t *testing.T) {
		t.Parallel()

		err := NewDiscoverStep(&stubFetcher{}).Do(context.Background(), model.NewReport(""))
		if !errors.Is(err, crawler.ErrEmptyDomain) {
			t.Errorf("expected ErrEmptyDomain, got %v", err)
		}
	})
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("rejects unknown plugins", func(t *testing.T) {
		t.Parallel()

		_, err := DefaultPipeline(&stubFetcher{}, nil, WithPipelinePlugins([]string{"nope"}))
		if !errors.Is(err, plugin.ErrUnknownPlugin) {
			t.Errorf("expected ErrUnknownPlugin, got %v", err)
		}
	})

	t.Run("has seed and discover steps", func(t *testing.T) {
		t.Parallel()

		p, err := DefaultPipeline(&stubFetcher{}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"seed", "discover"}, p.StepNames()); diff != "" {
			t.Errorf("steps mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("discovers scripts from a live server", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/":
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write([]byte(`<html><script src="main.js"></script></html>`))
			case "/main.js":
				w.Header().Set("Content-Type", "application/javascript")
				_, _ = w.Write([]byte(`function u(e){return a.p+"static/js/"+{0:"abc"}[e]+".chunk.js"}`))
			case "/static/js/0.abc.chunk.js":
				w.Header().Set("Content-Type", "application/javascript")
				_, _ = w.Write([]byte(`console.log("chunk")`))
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		client, err := fetch.NewClient(fetch.WithHTTPClient(server.Client()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		domain := strings.TrimPrefix(server.URL, "https://")
		p, err := DefaultPipeline(client, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		report := model.NewReport(domain)
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{
			server.URL + "/main.js",
			server.URL + "/static/js/0.abc.chunk.js",
		}
		if diff := cmp.Diff(want, report.ScriptURLs()); diff != "" {
			t.Errorf("scripts mismatch (-want +got):\n%s", diff)
		}
		if report.PluginCandidates["chunkmap"] != 1 {
			t.Errorf("expected 1 chunkmap candidate, got %d", report.PluginCandidates["chunkmap"])
		}
		if diff := cmp.Diff([]string{"seed", "discover"}, report.PerformedSteps); diff != "" {
			t.Errorf("performed steps mismatch (-want +got):\n%s", diff)
		}
	})
}
