package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/reposcan/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the sample rule document",
		Long: `Initialize writes the bundled sample rule document so it can be edited.

The generated file includes:
- Example categories for API keys, private keys, credentials, profanity
  and internal host names
- The scanned file extensions and excluded directories
- Line patterns that suppress a match (e.g. "ignore-scan")

Examples:
  # Create .reposcan.yaml in current directory
  reposcan init

  # Create the rules at a specific path
  reposcan init -o rules/strict.yaml

  # Force overwrite existing file
  reposcan init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultRulesFile,
		"Output file path for the rule document")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing rule document")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("rule document already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, config.BundledRules(), 0o600); err != nil {
		return fmt.Errorf("failed to write rule document: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created rule document: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Categories and their patterns (regex, literal or word mode)")
	fmt.Fprintln(out, "  - File extensions to scan and directories to skip")
	fmt.Fprintln(out, "  - Line patterns that suppress known false positives")

	return nil
}
