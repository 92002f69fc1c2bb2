package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// MaxTextSize is the maximum size of decoded response text kept in memory.
// Larger bodies are truncated to this size before pattern matching.
const MaxTextSize = 10 * 1024 * 1024 // 10 MB

// Response is a fetched resource whose text has already been decoded with
// the charset declared by the server or sniffed from the body.
//
// Seed responses handed to the crawler and every response fetched during a
// run share this type, so plugins see one uniform corpus.
type Response struct {
	// URL is the URL the response was fetched from.
	// It is the base for resolving relative references found in Text.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the value of the Content-Type header.
	ContentType string `json:"content_type,omitempty"`

	// Charset is the name of the encoding used to decode the body.
	Charset string `json:"charset,omitempty"`

	// Text is the decoded response body.
	Text string `json:"-"`

	// Size is the length of the body in bytes after content decoding.
	Size int `json:"size"`

	// Hash is the BLAKE2b-256 digest of Text.
	Hash string `json:"hash,omitempty"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewResponse creates a Response for already decoded text and computes its hash.
// It is the usual way to wrap pages fetched outside of the crawler as seeds.
func NewResponse(url string, statusCode int, text string) *Response {
	r := &Response{
		URL:        url,
		StatusCode: statusCode,
		Text:       text,
		Size:       len(text),
		FetchedAt:  time.Now(),
	}
	r.TruncateText()
	r.ComputeHash()
	return r
}

// ComputeHash calculates and sets the BLAKE2b-256 hash of the response text.
func (r *Response) ComputeHash() {
	if r.Text == "" {
		r.Hash = ""
		return
	}
	sum := blake2b.Sum256([]byte(r.Text))
	r.Hash = hex.EncodeToString(sum[:])
}

// TruncateText ensures Text doesn't exceed MaxTextSize.
func (r *Response) TruncateText() {
	if len(r.Text) > MaxTextSize {
		r.Text = r.Text[:MaxTextSize]
	}
}

// IsNotFound reports whether the response means the resource does not exist.
func (r *Response) IsNotFound() bool {
	return r.StatusCode == 404
}

// IsHTML returns true if the content type indicates HTML.
func (r *Response) IsHTML() bool {
	ct := strings.ToLower(r.ContentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// IsJavaScript returns true if the content type indicates a script.
func (r *Response) IsJavaScript() bool {
	ct := strings.ToLower(r.ContentType)
	return strings.Contains(ct, "javascript") || strings.Contains(ct, "ecmascript")
}
