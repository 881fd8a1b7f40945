package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/reposcan/internal/report"
)

// NewConvertCmd creates the convert command.
func NewConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert REPORT",
		Short: "Convert a report between JSON and CSV",
		Long: `Convert rewrites a JSON report as CSV, or a CSV report as JSON.
The direction follows the input extension. The output defaults to the
input path with the other extension.

A CSV only carries matches, so converting CSV to JSON drops skipped
repositories, warnings and run metadata.

Examples:
  reposcan convert results/content_scan_report.json
  reposcan convert old.csv -o old.json`,
		Args: cobra.ExactArgs(1),
		RunE: runConvertCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Output file path")

	return cmd
}

// runConvertCmd executes the convert command.
func runConvertCmd(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	toCSV := !strings.EqualFold(filepath.Ext(input), ".csv")
	if output == "" {
		ext := ".json"
		if toCSV {
			ext = ".csv"
		}
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ext
	}
	if filepath.Clean(output) == filepath.Clean(input) {
		return fmt.Errorf("output %s would overwrite the input", output)
	}

	scanReport, err := report.Read(input)
	if err != nil {
		return err
	}

	newWriter := func(w io.Writer) report.Writer { return report.NewJSONWriter(w, report.WithPrettyPrint()) }
	if toCSV {
		newWriter = func(w io.Writer) report.Writer { return report.NewCSVWriter(w) }
	}
	if err := report.WriteFile(output, scanReport, newWriter); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Converted %d match(es) to %s\n", scanReport.TotalMatches(), output)
	return nil
}
