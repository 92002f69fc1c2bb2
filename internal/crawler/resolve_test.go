package crawler

import "testing"

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		raw  string
		want string
	}{
		{"relative join", "https://example.com/static/app.js", "./chunks/a.js", "https://example.com/static/chunks/a.js"},
		{"root-relative override", "https://example.com/static/app.js", "/vendor/b.js", "https://example.com/vendor/b.js"},
		{"root clamp", "https://example.com/a/b.js", "../../x.js", "https://example.com/x.js"},
		{"parent directory", "https://example.com/a/b/c.js", "../d.js", "https://example.com/a/d.js"},
		{"bare relative", "https://example.com/a/", "b.js", "https://example.com/a/b.js"},
		{"host only base", "https://example.com", "a.js", "https://example.com/a.js"},
		{"host with trailing slash", "https://example.com/", "js/a.js", "https://example.com/js/a.js"},
		{"dotted last segment dropped", "https://example.com/v1.2/", "a.js", "https://example.com/a.js"},
		{"empty segments ignored", "https://example.com//a//", "b//c.js", "https://example.com/a/b/c.js"},
		{"query is path text", "https://example.com/a/b.js", "c.js?v=1", "https://example.com/a/c.js?v=1"},
		{"absolute unchanged", "https://example.com/a/b.js", "https://example.com/x/y.js", "https://example.com/x/y.js"},
		{"http absolute unchanged", "https://example.com/", "http://example.com/y.js", "http://example.com/y.js"},
		{"port kept", "http://example.com:8080/a/b.js", "c.js", "http://example.com:8080/a/c.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Resolve(tt.base, tt.raw); got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.base, tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://example.com/static/app.js",
		"http://example.com/a.js",
		"https://example.com/",
	}
	for _, u := range urls {
		if got := Resolve(u, u); got != u {
			t.Errorf("Resolve(%q, %q) = %q, want unchanged", u, u, got)
		}
	}
}
