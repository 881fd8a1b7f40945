package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/reposcan/internal/model"
)

// MarkdownWriter outputs a report summary in Markdown format.
// This format is designed for sharing a run in a pull request or wiki.
//
// The summary lists file locations but never the matched line content,
// so it can be pasted where the JSON report should not go.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report summary in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeCategories(md, report)
	w.writeRepositories(md, report)
	w.writeLocations(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("reposcan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.RunID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Rules", "`" + tableCell(report.Config.Source) + "`"},
			{"Repositories", strconv.Itoa(len(report.Repositories))},
			{"Processed", strconv.Itoa(report.Processed)},
			{"Skipped", strconv.Itoa(report.Failed)},
		},
	})
	md.PlainText("")
}

// writeCategories writes the per-category totals.
func (w *MarkdownWriter) writeCategories(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Matches by Category")
	md.PlainText("")

	categories := report.Categories()
	rows := make([][]string, 0, len(categories)+1)
	for _, name := range categories {
		rows = append(rows, []string{
			DisplayName(name),
			"`" + name + "`",
			tableCell(orDash(report.Config.Descriptions[name])),
			strconv.Itoa(report.Totals[name]),
		})
	}
	rows = append(rows, []string{"**Total**", "", "", "**" + strconv.Itoa(report.TotalMatches()) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Category", "Key", "Description", "Matches"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.TotalMatches() > 0 {
		w.writePieChart(md, report, categories)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of the category distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.ScanReport, categories []string) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Matches by Category"),
		piechart.WithShowData(true),
	)

	for _, name := range categories {
		if n := report.Totals[name]; n > 0 {
			chart.LabelAndIntValue(DisplayName(name), uint64(n)) //nolint:gosec // Counts are never negative
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert summarizing the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ScanReport) {
	if report.Failed > 0 {
		md.Importantf("%d repository(ies) could not be fetched and were skipped.", report.Failed)
		md.PlainText("")
	}
	if total := report.TotalMatches(); total > 0 {
		md.Warningf("%d match(es) found across %d repository(ies).", total, reposWithMatches(report))
	} else {
		md.Tip("No matches found.")
	}
	md.PlainText("")
}

// writeRepositories writes one row per repository.
func (w *MarkdownWriter) writeRepositories(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Repositories")
	md.PlainText("")

	if len(report.Repositories) == 0 {
		md.PlainText("No repositories were listed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Repositories))
	for _, r := range report.Repositories {
		note := "-"
		switch {
		case r.Failed():
			note = tableCell(truncateString(r.Reason, 60))
		case len(r.Warnings) > 0:
			note = fmt.Sprintf("%d warning(s)", len(r.Warnings))
		}
		rows = append(rows, []string{
			tableCell(truncateString(r.Entry.DisplayName(), 60)),
			statusText(r.Status),
			strconv.Itoa(r.FilesScanned),
			strconv.Itoa(len(r.Matches)),
			note,
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Repository", "Status", "Files", "Matches", "Note"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeLocations writes a collapsible list of match locations per
// repository that has matches.
func (w *MarkdownWriter) writeLocations(md *markdown.Markdown, report *model.ScanReport) {
	if report.TotalMatches() == 0 {
		return
	}

	md.H2("Locations")
	md.PlainText("")

	for _, r := range report.Repositories {
		if len(r.Matches) == 0 {
			continue
		}
		var sb strings.Builder
		for _, m := range r.Matches {
			fmt.Fprintf(&sb, "- `%s:%d` %s\n", m.File, m.Line, m.Category)
		}
		md.Details(fmt.Sprintf("%s (%d)", r.Entry.DisplayName(), len(r.Matches)), sb.String())
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [reposcan](https://github.com/nao1215/reposcan)*")
}

func statusText(s model.FetchStatus) string {
	switch s {
	case model.FetchCloned:
		return "✅ cloned"
	case model.FetchReused:
		return "✅ reused"
	case model.FetchFailed:
		return "❌ failed"
	default:
		return s.String()
	}
}

func reposWithMatches(report *model.ScanReport) int {
	n := 0
	for _, r := range report.Repositories {
		if len(r.Matches) > 0 {
			n++
		}
	}
	return n
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString shortens s to maxLen runes, ending in an ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// cellEscaper keeps free text such as fetch errors inside one table cell.
var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

func tableCell(s string) string {
	return cellEscaper.Replace(s)
}
