package repolist

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/reposcan/internal/model"
)

// Sentinel errors for list reading.
var (
	// ErrListNotFound is returned when the list file does not exist.
	ErrListNotFound = errors.New("repository list not found")

	// ErrInputFormat is returned when a list file cannot be parsed,
	// e.g. a tabular file without a url column.
	ErrInputFormat = errors.New("invalid repository list")
)

// URLColumn is the header of the required identifier column in tabular lists.
const URLColumn = "url"

// Read parses the list file at path into repository entries.
func Read(path string) ([]model.RepositoryEntry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrListNotFound, path)
		}
		return nil, fmt.Errorf("failed to read repository list: %w", err)
	}

	var entries []model.RepositoryEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		entries, err = ReadTable(bytes.NewReader(data), ',')
	case ".tsv":
		entries, err = ReadTable(bytes.NewReader(data), '\t')
	case ".json":
		entries, err = ReadJSON(bytes.NewReader(data))
	default:
		entries, err = ReadLines(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// ReadLines reads one identifier per line. Lines are trimmed and blank
// lines are skipped.
func ReadLines(r io.Reader) ([]model.RepositoryEntry, error) {
	entries := make([]model.RepositoryEntry, 0)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entries = append(entries, model.RepositoryEntry{URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputFormat, err)
	}
	return entries, nil
}

// ReadTable reads a delimited file with a header row.
// The url column is required and matched case-insensitively; name and
// description are optional. Rows with an empty url are skipped.
func ReadTable(r io.Reader, delim rune) ([]model.RepositoryEntry, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if delim == '\t' {
		cr.LazyQuotes = true
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header row", ErrInputFormat)
		}
		return nil, fmt.Errorf("%w: %w", ErrInputFormat, err)
	}

	urlCol, nameCol, descCol := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case URLColumn:
			urlCol = i
		case "name":
			nameCol = i
		case "description":
			descCol = i
		}
	}
	if urlCol < 0 {
		return nil, fmt.Errorf("%w: no %q column in header", ErrInputFormat, URLColumn)
	}

	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	entries := make([]model.RepositoryEntry, 0)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInputFormat, err)
		}
		url := field(rec, urlCol)
		if url == "" {
			continue
		}
		entries = append(entries, model.RepositoryEntry{
			URL:         url,
			Name:        field(rec, nameCol),
			Description: field(rec, descCol),
		})
	}
	return entries, nil
}

// ReadJSON reads a JSON array of entries. Entries without a url are skipped.
func ReadJSON(r io.Reader) ([]model.RepositoryEntry, error) {
	var raw []model.RepositoryEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputFormat, err)
	}

	entries := make([]model.RepositoryEntry, 0, len(raw))
	for _, e := range raw {
		e.URL = strings.TrimSpace(e.URL)
		if e.URL == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteJSON writes entries in the format ReadJSON accepts.
func WriteJSON(w io.Writer, entries []model.RepositoryEntry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
