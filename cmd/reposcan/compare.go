package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/reposcan/internal/report"
)

// errNewMatches is returned by compare --fail-on-new when the newer report
// has matches the older one did not.
var errNewMatches = errors.New("new matches found")

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare OLD NEW",
		Short: "Show matches added or resolved between two reports",
		Long: `Compare lists matches that appear only in the newer report (new) and
matches that appear only in the older one (resolved).

Matches are compared by repository, category, file, pattern and line
text; a match whose line merely moved is unchanged. Repositories that
failed to fetch in either run are listed separately.

Both JSON and CSV reports are accepted.

Examples:
  reposcan compare results/monday.json results/tuesday.json
  reposcan compare old.json new.json -j
  reposcan compare old.json new.json --fail-on-new   # for CI`,
		Args: cobra.ExactArgs(2),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output the diff as JSON")
	cmd.Flags().Bool("fail-on-new", false, "Exit with an error when there are new matches")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	failOnNew, err := cmd.Flags().GetBool("fail-on-new")
	if err != nil {
		return err
	}

	older, err := report.Read(args[0])
	if err != nil {
		return err
	}
	newer, err := report.Read(args[1])
	if err != nil {
		return err
	}

	diff := report.Compare(older, newer)
	if asJSON {
		err = report.WriteDiffJSON(cmd.OutOrStdout(), diff)
	} else {
		err = report.WriteDiffText(cmd.OutOrStdout(), diff, useColor(cmd))
	}
	if err != nil {
		return err
	}

	if failOnNew && len(diff.New) > 0 {
		return fmt.Errorf("%w: %d", errNewMatches, len(diff.New))
	}
	return nil
}
