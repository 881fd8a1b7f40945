package report

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/reposcan/internal/model"
)

// createTestReport creates a finalized report with two scanned
// repositories and one failed fetch.
func createTestReport() *model.ScanReport {
	report := model.NewScanReport(model.ConfigSummary{
		Source:         "rules.yaml",
		Categories:     []string{"api_keys", "profanity", "internal_hosts"},
		Descriptions:   map[string]string{"api_keys": "API keys and tokens"},
		PatternCount:   5,
		FileExtensions: []string{".js", ".py"},
	})
	agg := model.NewAggregator(report)

	alpha := model.NewRepositoryResult(0, model.RepositoryEntry{URL: "https://github.com/acme/alpha", Name: "alpha"})
	alpha.Status = model.FetchCloned
	alpha.LocalPath = "repos/cloned/alpha"
	alpha.FilesScanned = 3
	alpha.Duration = 1500 * time.Millisecond
	alpha.Matches = append(alpha.Matches,
		model.MatchRecord{Category: "api_keys", File: "config.js", Line: 12, Text: `const SECRET_TOKEN = "abc123";`, Pattern: "SECRET_TOKEN", MatchedText: "SECRET_TOKEN"},
		model.MatchRecord{Category: "api_keys", File: "src/app.py", Line: 4, Text: "api_key = load()", Pattern: "api_key"},
		model.MatchRecord{Category: "profanity", File: "README.md", Line: 1, Text: "darn, it works", Pattern: "darn"},
	)
	agg.Add(alpha)

	broken := model.NewRepositoryResult(1, model.RepositoryEntry{URL: "https://invalid.invalid/broken"})
	broken.Fail("clone failed: no such host")
	agg.Add(broken)

	beta := model.NewRepositoryResult(2, model.RepositoryEntry{URL: "git@github.com:acme/beta.git"})
	beta.Status = model.FetchReused
	beta.FilesScanned = 1
	beta.Warnings = []string{"big.js: file too large"}
	beta.Matches = append(beta.Matches,
		model.MatchRecord{Category: "internal_hosts", File: "deploy/hosts.py", Line: 7, Text: `HOST = "db.corp.internal"`, Pattern: `\.corp\.internal`},
	)
	agg.Add(beta)

	return agg.Finalize()
}

// failingWriter is an io.Writer that always fails.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

// TestWriterDestinationError tests that a failing destination surfaces.
func TestWriterDestinationError(t *testing.T) {
	t.Parallel()

	writers := map[string]Writer{
		"json":     NewJSONWriter(failingWriter{}),
		"csv":      NewCSVWriter(failingWriter{}),
		"markdown": NewMarkdownWriter(failingWriter{}),
	}
	for name, w := range writers {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := w.Write(createTestReport()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestWriteFiles tests persisting a report to disk.
func TestWriteFiles(t *testing.T) {
	t.Parallel()

	t.Run("writes json and csv", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "results", "nested")
		paths, err := WriteFiles(createTestReport(), dir, "content_scan_report", FileOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(paths) != 2 {
			t.Fatalf("expected 2 files, got %v", paths)
		}
		for _, want := range []string{"content_scan_report.json", "content_scan_report.csv"} {
			if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
				t.Errorf("expected %s: %v", want, err)
			}
		}
		if _, err := os.Stat(filepath.Join(dir, "content_scan_report.md")); !os.IsNotExist(err) {
			t.Error("expected no markdown file by default")
		}
	})

	t.Run("writes markdown when requested", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths, err := WriteFiles(createTestReport(), dir, "run", FileOptions{Markdown: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(paths) != 3 || !strings.HasSuffix(paths[2], "run.md") {
			t.Errorf("unexpected paths %v", paths)
		}
	})

	t.Run("unwritable directory returns ErrWrite", func(t *testing.T) {
		t.Parallel()

		// A regular file where the directory should be.
		blocker := filepath.Join(t.TempDir(), "results")
		if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := WriteFiles(createTestReport(), blocker, "run", FileOptions{})
		if !errors.Is(err, ErrWrite) {
			t.Errorf("expected ErrWrite, got %v", err)
		}
	})

	t.Run("written json reads back", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if _, err := WriteFiles(createTestReport(), dir, "run", FileOptions{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := ReadJSON(filepath.Join(dir, "run.json"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Repositories) != 3 || got.TotalMatches() != 4 {
			t.Errorf("unexpected report %+v", got)
		}
	})
}

// TestWriteFile tests writing a single report file.
func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "report.csv")
	if err := WriteFile(path, createTestReport(), func(w io.Writer) Writer { return NewCSVWriter(w) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "repository,category,file,line,text,pattern\n") {
		t.Errorf("unexpected content %q", data)
	}
}
