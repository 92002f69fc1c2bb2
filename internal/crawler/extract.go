package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

// scriptPattern matches script references in arbitrary text.
//
// The first alternative captures assignments such as c = "a/b.js" or
// f='x.js' (quotes optional), the second any quoted string ending in .js.
// Only one of the two groups is non-empty per match. An optional http(s):
// prefix lets absolute URLs through to the scope check.
var scriptPattern = regexp.MustCompile(
	`[cf] ?= ?['"]?((?:https?:)?[a-zA-Z0-9_/\\\-.]+\.js)['">]?` +
		`|['"]((?:https?:)?[a-zA-Z0-9_/\\\-.]+\.js)['"]`,
)

// Extractor finds script references in text and filters them by domain.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	// domain is the host all followed references must belong to.
	domain string

	// pattern is the compiled reference pattern.
	pattern *regexp.Regexp
}

// NewExtractor creates an Extractor scoped to domain.
// domain may be a bare host or a full URL, in which case its host is used.
func NewExtractor(domain string) *Extractor {
	return &Extractor{
		domain:  NormalizeDomain(domain),
		pattern: scriptPattern,
	}
}

// Domain returns the normalized domain the extractor is scoped to.
func (e *Extractor) Domain() string {
	return e.domain
}

// Extract returns every raw script reference in text, in order of
// appearance. Matches do not overlap. JSON-escaped slashes ("\/") are
// unescaped so that references embedded in JSON strings resolve.
func (e *Extractor) Extract(text string) []string {
	matches := e.pattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		candidate := m[1]
		if candidate == "" {
			candidate = m[2]
		}
		if candidate == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(candidate, `\/`, "/"))
	}
	return out
}

// InScope reports whether a raw or resolved reference may be followed.
//
// Absolute http(s) references must have the configured host. Protocol
// relative references are always rejected. Relative and root-relative
// paths are always accepted.
func (e *Extractor) InScope(ref string) bool {
	if hasHTTPScheme(ref) {
		u, err := url.Parse(ref)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, e.domain)
	}
	return !strings.HasPrefix(ref, "//")
}

// Candidates returns the in-scope references in text.
func (e *Extractor) Candidates(text string) []string {
	raw := e.Extract(text)
	out := raw[:0]
	for _, c := range raw {
		if e.InScope(c) {
			out = append(out, c)
		}
	}
	return out
}

// NormalizeDomain reduces a domain given as a full URL to its host.
// Surrounding whitespace and a trailing slash are removed; bare hosts are
// returned lowercased.
func NormalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	if hasHTTPScheme(domain) {
		if u, err := url.Parse(domain); err == nil {
			return strings.ToLower(u.Host)
		}
	}
	return strings.ToLower(strings.TrimSuffix(domain, "/"))
}
