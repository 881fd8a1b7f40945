package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/reposcan/internal/github"
	"github.com/nao1215/reposcan/internal/repolist"
)

// githubTokenEnv is consulted when --token is not given.
const githubTokenEnv = "GITHUB_TOKEN"

// defaultOrgList is where list-org writes by default.
const defaultOrgList = "repos/repos.json"

// defaultAPITimeout bounds each GitHub API request.
const defaultAPITimeout = 30 * time.Second

// NewListOrgCmd creates the list-org command.
func NewListOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-org ORG",
		Short: "Write the repositories of a GitHub organization as a list file",
		Long: `List-org enumerates the repositories of a GitHub organization and writes
them as a JSON repository list that "reposcan scan -l" accepts.

Archived repositories and forks are skipped unless requested.

Examples:
  reposcan list-org acme
  reposcan list-org acme -o lists/acme.json --limit 200 --forks`,
		Args: cobra.ExactArgs(1),
		RunE: runListOrgCmd,
	}

	cmd.Flags().StringP("output", "o", defaultOrgList, "Output list file")
	cmd.Flags().Int("limit", github.DefaultLimit, "Maximum number of repositories")
	cmd.Flags().String("token", "", "GitHub token (default: $"+githubTokenEnv+")")
	cmd.Flags().String("api-url", "", "GitHub API base URL for GitHub Enterprise")
	cmd.Flags().Bool("archived", false, "Include archived repositories")
	cmd.Flags().Bool("forks", false, "Include forks")
	cmd.Flags().Duration("timeout", defaultAPITimeout, "Timeout for each API request")

	return cmd
}

// runListOrgCmd executes the list-org command.
func runListOrgCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	output, err := flags.GetString("output")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	token, err := flags.GetString("token")
	if err != nil {
		return err
	}
	if token == "" {
		token = os.Getenv(githubTokenEnv)
	}
	apiURL, err := flags.GetString("api-url")
	if err != nil {
		return err
	}
	archived, err := flags.GetBool("archived")
	if err != nil {
		return err
	}
	forks, err := flags.GetBool("forks")
	if err != nil {
		return err
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	opts := []github.Option{
		github.WithLogger(logger),
		github.WithArchived(archived),
		github.WithForks(forks),
		github.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if token != "" {
		opts = append(opts, github.WithToken(token))
	}
	if apiURL != "" {
		opts = append(opts, github.WithBaseURL(apiURL))
	}

	lister, err := github.New(cmd.Context(), opts...)
	if err != nil {
		return err
	}
	entries, err := lister.ListOrgRepos(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(output) //nolint:gosec // Path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create list file: %w", err)
	}
	if err := repolist.WriteJSON(f, entries); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write list file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write list file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d repositories to %s\n", len(entries), output)
	return nil
}
