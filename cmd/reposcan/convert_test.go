package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/reposcan/internal/report"
)

// TestConvertCmd tests the convert command.
func TestConvertCmd(t *testing.T) {
	t.Parallel()

	t.Run("json to csv and back", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		input := writeReport(t, filepath.Join(dir, "scan.json"), tokenMatch, swearMatch)

		stdout, _, err := executeCmd(t, "convert", input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		csvPath := filepath.Join(dir, "scan.csv")
		if !strings.Contains(stdout, "Converted 2 match(es) to "+csvPath) {
			t.Errorf("unexpected output %q", stdout)
		}
		data, err := os.ReadFile(csvPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), strings.Join(report.CSVHeader, ",")) {
			t.Errorf("expected CSV header, got %q", string(data))
		}

		jsonPath := filepath.Join(dir, "back.json")
		if _, _, err := executeCmd(t, "convert", csvPath, "-o", jsonPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := report.ReadJSON(jsonPath)
		if err != nil {
			t.Fatal(err)
		}
		if got.TotalMatches() != 2 || got.Totals["api_keys"] != 1 || got.Totals["profanity"] != 1 {
			t.Errorf("unexpected totals %v", got.Totals)
		}
		m := got.Repositories[0].Matches[0]
		if m.File != tokenMatch.File || m.Line != tokenMatch.Line || m.Text != tokenMatch.Text {
			t.Errorf("unexpected match %+v", m)
		}
	})

	t.Run("refuses to overwrite the input", func(t *testing.T) {
		t.Parallel()

		input := writeReport(t, filepath.Join(t.TempDir(), "scan.json"))
		_, _, err := executeCmd(t, "convert", input, "-o", input)
		if err == nil || !strings.Contains(err.Error(), "overwrite") {
			t.Errorf("expected overwrite error, got %v", err)
		}
	})

	t.Run("malformed csv", func(t *testing.T) {
		t.Parallel()

		input := filepath.Join(t.TempDir(), "bad.csv")
		if err := os.WriteFile(input, []byte("name,value\na,b\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, _, err := executeCmd(t, "convert", input); !errors.Is(err, report.ErrCSVFormat) {
			t.Errorf("expected ErrCSVFormat, got %v", err)
		}
	})
}
