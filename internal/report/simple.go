package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/jsfinder/internal/model"
)

// durationPrecision is the rounding applied to run durations.
const durationPrecision = time.Millisecond

// SimpleWriter outputs human-readable text reports for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so that output can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty sections are shown.
	showEmpty bool

	// verbose adds status, size and hash to every script line.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeScripts(&sb, report)
	w.writeNewScripts(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          JSFINDER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Domain:    %s\n", report.Domain)
	fmt.Fprintf(sb, "Scan Date: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:  %s\n", report.Duration().Round(durationPrecision))
	fmt.Fprintf(sb, "Status:    %s\n", status(report))
	sb.WriteString("\n")
}

// writeSummary writes the counters section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.Report) {
	writeSection(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Seeds:             %d\n", len(report.Seeds))
	fmt.Fprintf(sb, "  Candidates queued: %d\n", report.CandidatesQueued)
	fmt.Fprintf(sb, "  Scripts found:     %d\n", len(report.Scripts))

	if len(report.PluginCandidates) > 0 {
		names := make([]string, 0, len(report.PluginCandidates))
		for name := range report.PluginCandidates {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("  Plugin candidates:\n")
		for _, name := range names {
			fmt.Fprintf(sb, "    %-12s %d\n", name, report.PluginCandidates[name])
		}
	}
	sb.WriteString("\n")
}

// writeScripts writes one line per confirmed script.
func (w *SimpleWriter) writeScripts(sb *strings.Builder, report *model.Report) {
	if len(report.Scripts) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "SCRIPTS")

	if len(report.Scripts) == 0 {
		sb.WriteString("  No scripts found\n\n")
		return
	}

	for _, s := range report.Scripts {
		fmt.Fprintf(sb, "  [+] %s\n", s.URL)
		if w.verbose {
			fmt.Fprintf(sb, "      status=%d size=%d type=%s\n", s.StatusCode, s.Size, s.ContentType)
			if s.Hash != "" {
				fmt.Fprintf(sb, "      blake2b=%s\n", s.Hash)
			}
		}
	}
	sb.WriteString("\n")
}

// writeNewScripts writes the scripts that were not present in the previous run.
func (w *SimpleWriter) writeNewScripts(sb *strings.Builder, report *model.Report) {
	if len(report.NewScripts) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "NEW SINCE LAST RUN")

	if len(report.NewScripts) == 0 {
		sb.WriteString("  No new scripts\n\n")
		return
	}
	for _, u := range report.NewScripts {
		fmt.Fprintf(sb, "  [new] %s\n", u)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by jsfinder\n")
	sb.WriteString("https://github.com/nao1215/jsfinder\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
