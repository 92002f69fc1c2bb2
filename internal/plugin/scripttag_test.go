package plugin

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/jsfinder/internal/model"
)

const testPage = `<!DOCTYPE html>
<html>
<head>
<script src=/static/app.js></script>
<script src="vendor.js"></script>
<script>var inline = 1;</script>
<link rel="modulepreload" href="/m.js">
<link rel="preload" as="script" href="p.js">
<link rel="stylesheet" href="s.css">
<script src="//cdn.other.com/x.js"></script>
</head>
<body></body>
</html>`

func TestScriptTagExtract(t *testing.T) {
	t.Parallel()

	t.Run("collects script references from HTML", func(t *testing.T) {
		t.Parallel()

		page := model.NewResponse("https://example.com/app/index.html", 200, testPage)
		page.ContentType = "text/html; charset=utf-8"

		got, err := NewScriptTag().Extract(context.Background(), []*model.Response{page})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{
			"https://example.com/static/app.js",
			"https://example.com/app/vendor.js",
			"https://example.com/m.js",
			"https://example.com/app/p.js",
			"//cdn.other.com/x.js",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("sniffs HTML without content type", func(t *testing.T) {
		t.Parallel()

		page := model.NewResponse("https://example.com/", 200, `<html><script src="a.js"></script></html>`)

		got, err := NewScriptTag().Extract(context.Background(), []*model.Response{page})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"https://example.com/a.js"}, got); diff != "" {
			t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ignores scripts", func(t *testing.T) {
		t.Parallel()

		js := model.NewResponse("https://example.com/a.js", 200, `document.write('<script src="b.js"></script>')`)
		js.ContentType = "application/javascript"

		got, err := NewScriptTag().Extract(context.Background(), []*model.Response{js, nil})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no candidates, got %v", got)
		}
	})

	t.Run("keeps paths when page URL is missing", func(t *testing.T) {
		t.Parallel()

		page := model.NewResponse("", 200, `<html><script src="a.js"></script></html>`)

		got, err := NewScriptTag().Extract(context.Background(), []*model.Response{page})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"a.js"}, got); diff != "" {
			t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
		}
	})
}
