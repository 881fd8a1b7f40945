package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/reposcan/internal/model"
)

// SimpleWriter outputs the completion summary printed at the end of a scan:
// processed and skipped repositories and match counts per category.
//
// Colors come from fatih/color and are off unless WithColor(true) is given,
// so output piped to a file stays plain.
type SimpleWriter struct {
	baseWriter

	// color enables ANSI colors.
	color bool

	// verbose adds one line per repository with its match count and
	// any warnings.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithColor enables colored output.
func WithColor(enabled bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.color = enabled
	}
}

// WithVerbose enables verbose output with per-repository details.
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

// palette holds the color functions for one Write call.
type palette struct {
	title, ok, warn, bad, dim func(a ...any) string
}

func (w *SimpleWriter) palette() palette {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if w.color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		title: mk(color.FgCyan, color.Bold),
		ok:    mk(color.FgGreen),
		warn:  mk(color.FgYellow),
		bad:   mk(color.FgRed),
		dim:   mk(color.FgHiBlack),
	}
}

// Write outputs the summary.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder
	p := w.palette()

	sb.WriteString("\n")
	sb.WriteString(p.title("SCAN COMPLETE"))
	sb.WriteString(" " + p.dim(report.RunID) + "\n")
	sb.WriteString(strings.Repeat("-", 60) + "\n")

	fmt.Fprintf(&sb, "Repositories:   %d\n", len(report.Repositories))
	fmt.Fprintf(&sb, "Processed:      %s\n", p.ok(report.Processed))
	skipped := fmt.Sprint(report.Failed)
	if report.Failed > 0 {
		skipped = p.bad(report.Failed)
	}
	fmt.Fprintf(&sb, "Skipped:        %s\n", skipped)
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(&sb, "Duration:       %s\n", d.Round(time.Millisecond))
	}
	sb.WriteString("\n")

	w.writeCategories(&sb, report, p)
	w.writeSkipped(&sb, report, p)
	if w.verbose {
		w.writeRepositories(&sb, report, p)
	}

	return w.output.Write([]byte(sb.String()))
}

// writeCategories writes one line per category, padded into a column.
func (w *SimpleWriter) writeCategories(sb *strings.Builder, report *model.ScanReport, p palette) {
	sb.WriteString("Matches by category:\n")

	categories := report.Categories()
	width := len("Total")
	for _, name := range categories {
		width = max(width, len(DisplayName(name)))
	}

	for _, name := range categories {
		n := report.Totals[name]
		count := p.dim(n)
		if n > 0 {
			count = p.warn(n)
		}
		fmt.Fprintf(sb, "  %-*s  %s\n", width, DisplayName(name), count)
	}
	total := report.TotalMatches()
	totalText := p.ok(total)
	if total > 0 {
		totalText = p.warn(total)
	}
	fmt.Fprintf(sb, "  %-*s  %s\n\n", width, "Total", totalText)
}

// writeSkipped lists repositories whose fetch failed.
func (w *SimpleWriter) writeSkipped(sb *strings.Builder, report *model.ScanReport, p palette) {
	if report.Failed == 0 {
		return
	}
	sb.WriteString("Skipped repositories:\n")
	for _, r := range report.Repositories {
		if r.Failed() {
			fmt.Fprintf(sb, "  %s %s: %s\n", p.bad("x"), r.Entry.DisplayName(), r.Reason)
		}
	}
	sb.WriteString("\n")
}

// writeRepositories lists every repository with its match count.
func (w *SimpleWriter) writeRepositories(sb *strings.Builder, report *model.ScanReport, p palette) {
	sb.WriteString("Repositories:\n")
	for _, r := range report.Repositories {
		if r.Failed() {
			continue
		}
		fmt.Fprintf(sb, "  %s %s (%s): %d match(es) in %d file(s)\n",
			p.ok("✓"), r.Entry.DisplayName(), r.Status, len(r.Matches), r.FilesScanned)
		for _, warning := range r.Warnings {
			fmt.Fprintf(sb, "      %s %s\n", p.warn("!"), warning)
		}
	}
	sb.WriteString("\n")
}

// DisplayName turns a category key such as "api_keys" into "Api Keys".
func DisplayName(category string) string {
	words := strings.NewReplacer("_", " ", "-", " ").Replace(category)
	return cases.Title(language.English).String(words)
}
