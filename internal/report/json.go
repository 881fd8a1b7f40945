package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/nao1215/reposcan/internal/model"
)

// ErrRead is returned when a report file cannot be read or decoded.
var ErrRead = errors.New("failed to read report")

// Document is the on-disk JSON layout of a scan report.
// Matches are nested per repository and grouped by category so a reader
// can jump straight to "which files in repo X leaked api_keys".
//
// Design decision: We convert to a dedicated document type rather than
// marshaling model.ScanReport directly. The model keeps matches as a flat
// ordered list, which is what the pipeline needs, while the file format is
// grouped for people and downstream tools.
type Document struct {
	// Metadata describes the run.
	Metadata Metadata `json:"metadata"`

	// Totals maps every category to its match count across the run.
	Totals map[string]int `json:"totals"`

	// Repositories holds one entry per list entry, in list order.
	Repositories []RepositoryDocument `json:"repositories"`
}

// Metadata describes the run and the rules it used.
type Metadata struct {
	RunID           string            `json:"run_id"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
	DurationSeconds float64           `json:"duration_seconds"`
	ConfigSource    string            `json:"config_source"`
	Categories      []string          `json:"categories"`
	Descriptions    map[string]string `json:"descriptions,omitempty"`
	CategoryCount   int               `json:"category_count"`
	PatternCount    int               `json:"pattern_count"`
	FileExtensions  []string          `json:"file_extensions"`
	ExtensionCount  int               `json:"extension_count"`
	BuiltinSecrets  bool              `json:"builtin_secrets"`
	Repositories    int               `json:"repositories"`
	Processed       int               `json:"processed"`
	Failed          int               `json:"failed"`
	TotalMatches    int               `json:"total_matches"`
}

// RepositoryDocument is the outcome for one list entry.
type RepositoryDocument struct {
	Repository      string               `json:"repository"`
	Name            string               `json:"name,omitempty"`
	Description     string               `json:"description,omitempty"`
	Status          string               `json:"status"`
	Reason          string               `json:"reason,omitempty"`
	LocalPath       string               `json:"local_path,omitempty"`
	FilesScanned    int                  `json:"files_scanned"`
	DurationSeconds float64              `json:"duration_seconds"`
	Warnings        []string             `json:"warnings,omitempty"`
	Counts          map[string]int       `json:"counts"`
	Matches         map[string][]Finding `json:"matches"`
}

// Finding is one match inside a category group.
type Finding struct {
	File        string `json:"file"`
	Line        int    `json:"line"`
	Text        string `json:"text"`
	Pattern     string `json:"pattern"`
	MatchedText string `json:"matched_text,omitempty"`
}

// NewDocument converts a report into its JSON layout.
func NewDocument(report *model.ScanReport) *Document {
	categories := report.Categories()
	doc := &Document{
		Metadata: Metadata{
			RunID:           report.RunID,
			StartedAt:       report.StartedAt,
			FinishedAt:      report.FinishedAt,
			DurationSeconds: report.Duration().Seconds(),
			ConfigSource:    report.Config.Source,
			Categories:      report.Config.Categories,
			Descriptions:    report.Config.Descriptions,
			CategoryCount:   len(report.Config.Categories),
			PatternCount:    report.Config.PatternCount,
			FileExtensions:  report.Config.FileExtensions,
			ExtensionCount:  len(report.Config.FileExtensions),
			BuiltinSecrets:  report.Config.BuiltinSecrets,
			Repositories:    len(report.Repositories),
			Processed:       report.Processed,
			Failed:          report.Failed,
			TotalMatches:    report.TotalMatches(),
		},
		Totals:       report.Totals,
		Repositories: make([]RepositoryDocument, 0, len(report.Repositories)),
	}

	for _, r := range report.Repositories {
		// Every category is listed, including those without matches.
		counts := r.CategoryCounts()
		for _, name := range categories {
			if _, ok := counts[name]; !ok {
				counts[name] = 0
			}
		}
		matches := make(map[string][]Finding)
		for category, group := range r.MatchesByCategory() {
			findings := make([]Finding, 0, len(group))
			for _, m := range group {
				findings = append(findings, Finding{
					File:        m.File,
					Line:        m.Line,
					Text:        m.Text,
					Pattern:     m.Pattern,
					MatchedText: m.MatchedText,
				})
			}
			matches[category] = findings
		}

		doc.Repositories = append(doc.Repositories, RepositoryDocument{
			Repository:      r.Entry.URL,
			Name:            r.Entry.Name,
			Description:     r.Entry.Description,
			Status:          r.Status.String(),
			Reason:          r.Reason,
			LocalPath:       r.LocalPath,
			FilesScanned:    r.FilesScanned,
			DurationSeconds: r.Duration.Seconds(),
			Warnings:        r.Warnings,
			Counts:          counts,
			Matches:         matches,
		})
	}
	return doc
}

// Report converts the document back into a scan report.
// Totals and processed/failed counts are recomputed from the repositories,
// so a hand-edited document cannot produce inconsistent totals. Matches
// come back grouped by category in report category order.
func (d *Document) Report() *model.ScanReport {
	report := model.NewScanReport(model.ConfigSummary{
		Source:         d.Metadata.ConfigSource,
		Categories:     d.Metadata.Categories,
		Descriptions:   d.Metadata.Descriptions,
		PatternCount:   d.Metadata.PatternCount,
		FileExtensions: d.Metadata.FileExtensions,
		BuiltinSecrets: d.Metadata.BuiltinSecrets,
	})
	if d.Metadata.RunID != "" {
		report.RunID = d.Metadata.RunID
	}
	report.StartedAt = d.Metadata.StartedAt

	agg := model.NewAggregator(report)
	for i, rd := range d.Repositories {
		r := model.NewRepositoryResult(i, model.RepositoryEntry{
			URL:         rd.Repository,
			Name:        rd.Name,
			Description: rd.Description,
		})
		r.Status = model.FetchStatus(rd.Status)
		r.Reason = rd.Reason
		r.LocalPath = rd.LocalPath
		r.FilesScanned = rd.FilesScanned
		r.Duration = time.Duration(rd.DurationSeconds * float64(time.Second))
		r.Warnings = rd.Warnings

		for _, name := range categoryOrder(d.Metadata.Categories, rd.Matches) {
			for _, f := range rd.Matches[name] {
				r.Matches = append(r.Matches, model.MatchRecord{
					Category:    name,
					File:        f.File,
					Line:        f.Line,
					Text:        f.Text,
					Pattern:     f.Pattern,
					MatchedText: f.MatchedText,
				})
			}
		}
		agg.Add(r)
	}

	report.FinishedAt = d.Metadata.FinishedAt
	return report
}

// categoryOrder returns the keys of groups: configured names first, in
// configured order, then the rest sorted.
func categoryOrder(configured []string, groups map[string][]Finding) []string {
	names := make([]string, 0, len(groups))
	for _, name := range configured {
		if _, ok := groups[name]; ok {
			names = append(names, name)
		}
	}
	extra := make([]string, 0)
	for name := range groups {
		if !slices.Contains(configured, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(names, extra...)
}

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output using indent for each level.
func WithIndent(indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.writeJSON(NewDocument(report))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, "", w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// DecodeJSON reads a JSON report document from r.
func DecodeJSON(r io.Reader) (*model.ScanReport, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return doc.Report(), nil
}

// ReadJSON loads a JSON report written by JSONWriter.
func ReadJSON(path string) (*model.ScanReport, error) {
	f, err := os.Open(path) //nolint:gosec // Path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	report, err := DecodeJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}
