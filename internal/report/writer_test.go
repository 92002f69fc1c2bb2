package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/jsfinder/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.Report {
	report := model.NewReport("example.com")
	report.StartedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(1500 * time.Millisecond)
	report.Seeds = []string{"https://example.com/"}
	report.CandidatesQueued = 3
	report.PluginCandidates = map[string]int{"chunkmap": 2, "scripttag": 0}
	report.AddScript(model.Script{
		URL:         "https://example.com/static/app.js",
		StatusCode:  200,
		ContentType: "application/javascript",
		Size:        120,
		Hash:        "0123456789abcdef0123456789abcdef",
	})
	report.AddScript(model.Script{
		URL:        "https://example.com/static/1.a1b2.js",
		StatusCode: 200,
		Size:       42,
	})
	return report
}

// errWriter fails every write.
type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and scripts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"JSFINDER REPORT",
			"Domain:    example.com",
			"Duration:  1.5s",
			"Status:    Complete",
			"Scripts found:     2",
			"chunkmap",
			"[+] https://example.com/static/1.a1b2.js",
			"[+] https://example.com/static/app.js",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Index(output, "1.a1b2.js") > strings.Index(output, "app.js") {
			t.Error("expected scripts in sorted order")
		}
		if strings.Contains(output, "NEW SINCE LAST RUN") {
			t.Error("expected empty new-scripts section to be hidden")
		}
	})

	t.Run("verbose adds metadata", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "status=200 size=120 type=application/javascript") {
			t.Error("expected verbose metadata line")
		}
		if !strings.Contains(buf.String(), "blake2b=0123456789abcdef") {
			t.Error("expected hash line")
		}
	})

	t.Run("show empty sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(model.NewReport("empty.example")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No scripts found") {
			t.Error("expected empty scripts message")
		}
		if !strings.Contains(buf.String(), "No new scripts") {
			t.Error("expected empty new scripts message")
		}
	})

	t.Run("lists new scripts", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.NewScripts = []string{"https://example.com/static/1.a1b2.js"}

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[new] https://example.com/static/1.a1b2.js") {
			t.Error("expected new script line")
		}
	})

	t.Run("status reflects timeout and error", func(t *testing.T) {
		t.Parallel()

		timedOut := createTestReport()
		timedOut.TimedOut = true
		failed := createTestReport()
		failed.ErrorMessage = "seed fetch failed"

		for report, want := range map[*model.Report]string{
			timedOut: "TIMED OUT (partial results)",
			failed:   "ERROR - seed fetch failed",
		} {
			var buf bytes.Buffer
			if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(buf.String(), want) {
				t.Errorf("expected status %q", want)
			}
		}
	})

	t.Run("returns writer errors", func(t *testing.T) {
		t.Parallel()

		if _, err := NewSimpleWriter(errWriter{}).Write(createTestReport()); err == nil {
			t.Error("expected error")
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes compact JSON line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.HasSuffix(output, "}\n") {
			t.Errorf("expected trailing newline, got %q", output)
		}
		if strings.Count(output, "\n") != 1 {
			t.Error("expected compact single-line JSON")
		}

		var decoded model.Report
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		want := []string{"https://example.com/static/1.a1b2.js", "https://example.com/static/app.js"}
		if diff := cmp.Diff(want, decoded.ScriptURLs()); diff != "" {
			t.Errorf("scripts mismatch (-want +got):\n%s", diff)
		}
		if decoded.PluginCandidates["chunkmap"] != 2 {
			t.Errorf("expected plugin count 2, got %d", decoded.PluginCandidates["chunkmap"])
		}
	})

	t.Run("omits the corpus", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Corpus = []*model.Response{model.NewResponse("https://example.com/", 200, "secret body")}

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "secret body") {
			t.Error("expected corpus text to be excluded")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"domain\": \"example.com\"") {
			t.Errorf("expected indented output, got %s", buf.String())
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">", "\t")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n>\t\"domain\"") {
			t.Errorf("expected prefixed tab indentation, got %s", buf.String())
		}
	})
}

func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Version         string       `json:"version"`
		DurationSeconds float64      `json:"duration_seconds"`
		Report          model.Report `json:"report"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Version != "v1.2.3" {
		t.Errorf("expected version v1.2.3, got %q", decoded.Version)
	}
	if decoded.DurationSeconds != 1.5 {
		t.Errorf("expected 1.5 seconds, got %v", decoded.DurationSeconds)
	}
	if decoded.Report.Domain != "example.com" {
		t.Errorf("expected domain example.com, got %q", decoded.Report.Domain)
	}
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var buf1, buf2 bytes.Buffer
		multi := NewMultiWriter(NewSimpleWriter(&buf1), NewJSONWriter(&buf2))

		n, err := multi.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf1.Len()+buf2.Len() {
			t.Errorf("expected %d bytes, got %d", buf1.Len()+buf2.Len(), n)
		}
		if strings.Contains(buf1.String(), "{") {
			t.Error("expected buf1 (simple) to not be JSON")
		}
		if !strings.HasPrefix(buf2.String(), "{") {
			t.Error("expected buf2 to contain JSON")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		multi := NewMultiWriter(NewJSONWriter(errWriter{}), NewJSONWriter(&buf))

		if _, err := multi.Write(createTestReport()); err == nil {
			t.Fatal("expected error")
		}
		if buf.Len() != 0 {
			t.Error("expected second writer to be skipped")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected non-zero byte count")
		}

		output := buf.String()
		for _, want := range []string{
			"# jsfinder Report",
			"`example.com`",
			"## Summary",
			"## Plugins",
			"`chunkmap`",
			"```mermaid",
			"application/javascript",
			"unknown",
			"## Scripts",
			"https://example.com/static/app.js",
			"0123456789abcdef...",
			"2 script resource(s) found.",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("empty report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(model.NewReport("empty.example")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "No scripts found.") {
			t.Error("expected empty scripts message")
		}
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no chart without scripts")
		}
		if strings.Contains(output, "## Plugins") {
			t.Error("expected no plugin table without plugin counts")
		}
	})

	t.Run("new scripts and errors", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.NewScripts = []string{"https://example.com/static/1.a1b2.js"}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "## New Since Last Run") {
			t.Error("expected new scripts section")
		}

		report.ErrorMessage = "seed fetch failed"
		buf.Reset()
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "seed fetch failed") {
			t.Error("expected error message in output")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short", input: "abc", maxLen: 5, want: "abc"},
		{name: "exact", input: "abcde", maxLen: 5, want: "abcde"},
		{name: "long", input: "abcdefgh", maxLen: 4, want: "abcd..."},
		{name: "multibyte", input: "日本語テキスト", maxLen: 3, want: "日本語..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
