package plugin

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/jsfinder/internal/model"
)

const scriptTagName = "scripttag"

// ScriptTag collects script URLs from the markup of HTML responses.
//
// It catches references the text pattern cannot, such as unquoted
// attributes (<script src=/a.js>) and module preload links. Relative
// references are resolved against the page URL.
type ScriptTag struct{}

// NewScriptTag creates a ScriptTag plugin.
func NewScriptTag() *ScriptTag {
	return &ScriptTag{}
}

// Name returns the plugin name.
func (p *ScriptTag) Name() string {
	return scriptTagName
}

// Extract parses every HTML response in corpus and returns the src of each
// <script> element and the href of each script preload <link>.
func (p *ScriptTag) Extract(ctx context.Context, corpus []*model.Response) ([]string, error) {
	out := make([]string, 0)
	for _, r := range corpus {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if r == nil || !looksLikeHTML(r) {
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.Text))
		if err != nil {
			continue
		}

		base, _ := url.Parse(r.URL) //nolint:errcheck // nil base disables resolution

		doc.Find("script[src], link[href]").Each(func(_ int, sel *goquery.Selection) {
			if ref := scriptRef(sel); ref != "" {
				out = append(out, resolveRef(base, ref))
			}
		})
	}
	return out, nil
}

// scriptRef returns the script URL referenced by an element, if any.
func scriptRef(sel *goquery.Selection) string {
	switch goquery.NodeName(sel) {
	case "script":
		return strings.TrimSpace(sel.AttrOr("src", ""))
	case "link":
		rel := strings.ToLower(sel.AttrOr("rel", ""))
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		switch {
		case rel == "modulepreload":
			return href
		case (rel == "preload" || rel == "prefetch") && strings.EqualFold(sel.AttrOr("as", ""), "script"):
			return href
		}
	}
	return ""
}

// resolveRef resolves ref against base. Scheme-relative references are left
// untouched so that the crawler's scope policy can reject them.
func resolveRef(base *url.URL, ref string) string {
	if base == nil || base.Host == "" || strings.HasPrefix(ref, "//") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// looksLikeHTML reports whether a response should be parsed as markup.
// Seeds built without a content type are sniffed.
func looksLikeHTML(r *model.Response) bool {
	if r.IsHTML() {
		return true
	}
	if r.ContentType != "" {
		return false
	}
	head := r.Text
	if len(head) > 512 {
		head = head[:512]
	}
	head = strings.ToLower(head)
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html") || strings.Contains(head, "<script")
}
