package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/reposcan/internal/model"
)

// ErrWrite is returned when a report file cannot be created or written.
var ErrWrite = errors.New("failed to write report")

// Writer renders a finished scan report in one format.
//
// Design decision: Writers take the whole report rather than streaming
// results, because reports are only written once every repository is done.
type Writer interface {
	// Write renders report and returns the number of bytes written.
	Write(report *model.ScanReport) (int, error)
}

// baseWriter holds the destination shared by every Writer.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// FileOptions controls which files WriteFiles produces.
type FileOptions struct {
	// Markdown also writes <base>.md.
	Markdown bool
}

// WriteFiles persists a finished report as <base>.json and <base>.csv in
// dir, plus <base>.md when requested. dir is created if missing.
// It returns the paths written, in that order.
//
// All failures wrap ErrWrite. A partially written set of files is left in
// place so the caller can see how far it got.
func WriteFiles(report *model.ScanReport, dir, base string, opts FileOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	type target struct {
		ext    string
		writer func(io.Writer) Writer
	}
	targets := []target{
		{".json", func(w io.Writer) Writer { return NewJSONWriter(w, WithPrettyPrint()) }},
		{".csv", func(w io.Writer) Writer { return NewCSVWriter(w) }},
	}
	if opts.Markdown {
		targets = append(targets, target{".md", func(w io.Writer) Writer { return NewMarkdownWriter(w) }})
	}

	paths := make([]string, 0, len(targets))
	for _, t := range targets {
		path := filepath.Join(dir, base+t.ext)
		if err := writeFile(path, report, t.writer); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteFile writes report to path using the writer chosen by newWriter.
func WriteFile(path string, report *model.ScanReport, newWriter func(io.Writer) Writer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
	}
	return writeFile(path, report, newWriter)
}

func writeFile(path string, report *model.ScanReport, newWriter func(io.Writer) Writer) (err error) {
	f, err := os.Create(path) //nolint:gosec // Path is chosen by the user
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %s: %w", ErrWrite, path, cerr)
		}
	}()

	if _, err := newWriter(f).Write(report); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}
