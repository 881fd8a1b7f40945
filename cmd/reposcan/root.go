package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/reposcan/internal/log"
)

// NewRootCmd creates the root command for reposcan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reposcan",
		Short: "Batch-clone repositories and scan them for sensitive content",
		Long: `reposcan clones every repository in a list and scans its text files
against categorized patterns (secrets, profanity, internal host names, ...).

Matches are aggregated per category and written as a JSON report and a
flat CSV table. Working copies are kept, so a second run reuses them.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewListOrgCmd())
	cmd.AddCommand(NewConvertCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getBoolFlag retrieves a flag from the command or the root's persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the sanitizing logger for a command and makes it the
// default, so packages that fall back to slog.Default() use it too.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	logger := log.NewLogger(cmd.ErrOrStderr(), log.Options{
		Verbose: getBoolFlag(cmd, "verbose"),
		JSON:    getBoolFlag(cmd, "log-json"),
	})
	slog.SetDefault(logger)
	return logger
}

// useColor reports whether console output should be colored: only when
// writing to a terminal and not disabled by --no-color.
func useColor(cmd *cobra.Command) bool {
	if getBoolFlag(cmd, "no-color") || color.NoColor {
		return false
	}
	return cmd.OutOrStdout() == os.Stdout
}
