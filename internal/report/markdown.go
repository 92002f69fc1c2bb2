package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/jsfinder/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
//  1. Type-safe markdown generation
//  2. Support for tables, lists and code blocks
//  3. GitHub-flavored markdown alerts and mermaid charts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeAlert(md, report)
	w.writeSummary(md, report)
	w.writeContentTypes(md, report)
	w.writeScripts(md, report)
	w.writeNewScripts(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("jsfinder Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Domain", "`" + report.Domain + "`"},
			{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(durationPrecision).String()},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.Report) string {
	if report.TimedOut {
		return "⚠️ Timed Out (partial results)"
	}
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeAlert writes an alert summarizing the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report) {
	switch {
	case report.ErrorMessage != "":
		md.Warningf("The run stopped early: %s", report.ErrorMessage)
	case report.TimedOut:
		md.Warningf("The run was cancelled; %d script(s) were found before it stopped.", len(report.Scripts))
	case len(report.NewScripts) > 0:
		md.Importantf("%d script(s) appeared since the previous run.", len(report.NewScripts))
	case len(report.Scripts) == 0:
		md.Note("No script resources were found for this domain.")
	default:
		md.Tip(fmt.Sprintf("%d script resource(s) found.", len(report.Scripts)))
	}
	md.PlainText("")
}

// writeSummary writes the counters table and plugin contributions.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Seeds", strconv.Itoa(len(report.Seeds))},
			{"Candidates queued", strconv.Itoa(report.CandidatesQueued)},
			{"**Scripts found**", "**" + strconv.Itoa(len(report.Scripts)) + "**"},
		},
	})
	md.PlainText("")

	if len(report.PluginCandidates) == 0 {
		return
	}

	names := make([]string, 0, len(report.PluginCandidates))
	for name := range report.PluginCandidates {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{"`" + name + "`", strconv.Itoa(report.PluginCandidates[name])})
	}

	md.H2("Plugins")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Plugin", "Candidates"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeContentTypes writes a mermaid pie chart of script content types.
func (w *MarkdownWriter) writeContentTypes(md *markdown.Markdown, report *model.Report) {
	if len(report.Scripts) == 0 {
		return
	}

	counts := make(map[string]int)
	for _, s := range report.Scripts {
		ct := s.ContentType
		if ct == "" {
			ct = "unknown"
		}
		counts[ct]++
	}
	types := make([]string, 0, len(counts))
	for ct := range counts {
		types = append(types, ct)
	}
	sort.Strings(types)

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Script Content Types"),
		piechart.WithShowData(true),
	)
	for _, ct := range types {
		chart.LabelAndIntValue(ct, uint64(counts[ct])) //nolint:gosec // counts are positive
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeScripts writes the table of confirmed scripts.
func (w *MarkdownWriter) writeScripts(md *markdown.Markdown, report *model.Report) {
	md.H2("Scripts")
	md.PlainText("")

	if len(report.Scripts) == 0 {
		md.PlainText("No scripts found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Scripts))
	for _, s := range report.Scripts {
		rows = append(rows, []string{
			s.URL,
			strconv.Itoa(s.StatusCode),
			strconv.Itoa(s.Size),
			truncateString(s.Hash, 16),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Size", "Hash"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeNewScripts lists scripts absent from the previous run.
func (w *MarkdownWriter) writeNewScripts(md *markdown.Markdown, report *model.Report) {
	if len(report.NewScripts) == 0 {
		return
	}

	md.H2("New Since Last Run")
	md.PlainText("")
	md.BulletList(report.NewScripts...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [jsfinder](https://github.com/nao1215/jsfinder)*")
}

// truncateString shortens s to maxLen runes, appending "..." when cut.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
