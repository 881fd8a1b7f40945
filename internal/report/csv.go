package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/reposcan/internal/model"
)

// CSVHeader is the column layout of the flattened report.
var CSVHeader = []string{"repository", "category", "file", "line", "text", "pattern"}

// CSVWriter outputs one row per match record.
// Repositories without matches produce no rows.
//
// Design decision: We use encoding/csv. It handles quoting of commas,
// quotes and newlines in matched lines, which is all this format needs.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report rows in repository order, and in match order
// within a repository.
func (w *CSVWriter) Write(report *model.ScanReport) (int, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(CSVHeader); err != nil {
		return 0, err
	}
	for _, r := range report.Repositories {
		for _, m := range r.Matches {
			row := []string{r.Entry.URL, m.Category, m.File, strconv.Itoa(m.Line), m.Text, m.Pattern}
			if err := cw.Write(row); err != nil {
				return 0, err
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// ErrCSVFormat is returned when a CSV report lacks required columns or
// has malformed rows.
var ErrCSVFormat = errors.New("invalid CSV report")

// DecodeCSV rebuilds a scan report from CSV rows.
//
// The CSV only carries matches, so every repository in it is treated as
// scanned and repositories without matches are absent. Categories are
// registered in order of first appearance. Columns are located by header
// name, so extra or reordered columns are accepted.
func DecodeCSV(r io.Reader) (*model.ScanReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrCSVFormat)
		}
		return nil, fmt.Errorf("%w: %w", ErrCSVFormat, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{"repository", "category", "file", "line"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", ErrCSVFormat, required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	categories := make([]string, 0)
	order := make([]string, 0)
	byRepo := make(map[string]*model.RepositoryResult)

	for rowNum := 2; ; rowNum++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCSVFormat, err)
		}

		repo := field(row, "repository")
		category := field(row, "category")
		if repo == "" || category == "" {
			return nil, fmt.Errorf("%w: row %d: empty repository or category", ErrCSVFormat, rowNum)
		}
		line, err := strconv.Atoi(field(row, "line"))
		if err != nil || line < 1 {
			return nil, fmt.Errorf("%w: row %d: invalid line %q", ErrCSVFormat, rowNum, field(row, "line"))
		}

		result, ok := byRepo[repo]
		if !ok {
			result = model.NewRepositoryResult(len(order), model.RepositoryEntry{URL: repo})
			result.Status = model.FetchReused
			byRepo[repo] = result
			order = append(order, repo)
		}
		if !slices.Contains(categories, category) {
			categories = append(categories, category)
		}
		result.Matches = append(result.Matches, model.MatchRecord{
			Category: category,
			File:     field(row, "file"),
			Line:     line,
			Text:     field(row, "text"),
			Pattern:  field(row, "pattern"),
		})
	}

	report := model.NewScanReport(model.ConfigSummary{Source: "csv", Categories: categories})
	agg := model.NewAggregator(report)
	for _, repo := range order {
		agg.Add(byRepo[repo])
	}
	return agg.Finalize(), nil
}

// ReadCSV loads a CSV report written by CSVWriter.
func ReadCSV(path string) (*model.ScanReport, error) {
	f, err := os.Open(path) //nolint:gosec // Path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	report, err := DecodeCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	return report, nil
}

// Read loads a report from path, choosing the format by extension:
// .csv is read with ReadCSV, everything else as JSON.
func Read(path string) (*model.ScanReport, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadCSV(path)
	}
	return ReadJSON(path)
}
