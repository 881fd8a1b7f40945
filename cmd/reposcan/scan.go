package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nao1215/reposcan/internal/config"
	"github.com/nao1215/reposcan/internal/fetcher"
	"github.com/nao1215/reposcan/internal/matcher"
	"github.com/nao1215/reposcan/internal/model"
	"github.com/nao1215/reposcan/internal/pipeline"
	"github.com/nao1215/reposcan/internal/repolist"
	"github.com/nao1215/reposcan/internal/report"
)

// defaultEnvFile is read for credentials such as REPOSCAN_GIT_TOKEN.
const defaultEnvFile = ".env"

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Clone the listed repositories and scan them",
		Long: `Scan clones every repository in the list file (or reuses an existing
working copy) and searches its text files for the patterns of every
category in the rule document.

The list may be plain text (one URL per line), CSV or TSV with a "url"
column, or JSON as written by "reposcan list-org".

Repositories that cannot be fetched are reported as skipped; the scan
goes on and exits with status 0. Reports are written once, after all
repositories are done.

Examples:
  # Scan with discovered or bundled rules
  reposcan scan -l repos.txt

  # Four repositories at a time, custom rules, markdown summary too
  reposcan scan -l repos/repos.json -c rules.yaml -b 4 -m

  # Private repositories over SSH using the SSH agent
  reposcan scan -l repos.txt --ssh

Rule document (.reposcan.yaml) example:
  categories:
    api_keys:
      description: API keys and tokens
      patterns: ['api[_-]?key\s*[:=]', 'SECRET_TOKEN']
  file_extensions: [.js, .py, .env]
  exclude_dirs: [node_modules, vendor]
  ignore_line_patterns: ['ignore-scan']`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	// Input flags
	cmd.Flags().StringP("list", "l", "",
		"Repository list file (txt, csv, tsv or json)")
	cmd.Flags().StringP("config", "c", "",
		"Rule document (default: .reposcan.yaml, XDG config dir, then the bundled sample)")
	cmd.Flags().String("env-file", defaultEnvFile,
		"Load environment variables such as "+config.TokenEnv+" from this file if it exists")

	// Output flags
	cmd.Flags().StringP("name", "n", config.DefaultOutputBase,
		"Report base file name (without extension)")
	cmd.Flags().String("results-dir", config.DefaultResultsDir,
		"Directory reports are written to")
	cmd.Flags().BoolP("markdown", "m", false,
		"Also write a markdown summary report")

	// Fetch flags
	cmd.Flags().String("clone-dir", config.DefaultCloneDir,
		"Directory holding one working copy per repository")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of repositories processed concurrently")
	cmd.Flags().Duration("fetch-timeout", config.DefaultFetchTimeout,
		"Timeout for each clone")
	cmd.Flags().Int("depth", config.DefaultCloneDepth,
		"Clone depth (0 clones full history)")
	cmd.Flags().Int("retries", 0,
		"Additional clone attempts after a transient failure")
	cmd.Flags().Float64("clone-rate", 0,
		"Maximum clones started per second (0 is unlimited)")
	cmd.Flags().Bool("ssh", false,
		"Clone GitHub repositories over SSH using the SSH agent")
	cmd.Flags().Bool("insecure-host-key", false,
		"Skip SSH host key verification")
	cmd.Flags().String("token", "",
		"HTTPS access token (default: $"+config.TokenEnv+")")

	// Scan flags
	cmd.Flags().Int64("max-file-size", config.DefaultMaxFileSize,
		"Skip files larger than this many bytes")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, _ []string) error {
	if err := loadEnvFile(cmd); err != nil {
		return err
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)

	// Set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cmd.OutOrStdout(), cfg, logger, useColor(cmd))
}

// loadEnvFile loads the env file when present. A missing default file is
// fine; a missing file named explicitly is an error.
func loadEnvFile(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !cmd.Flags().Changed("env-file") {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ListFile, err = flags.GetString("list"); err != nil {
		return nil, err
	}
	if cfg.RulesFile, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.OutputBase, err = flags.GetString("name"); err != nil {
		return nil, err
	}
	if cfg.ResultsDir, err = flags.GetString("results-dir"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.CloneDir, err = flags.GetString("clone-dir"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = flags.GetDuration("fetch-timeout"); err != nil {
		return nil, err
	}
	if cfg.CloneDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Retries, err = flags.GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.CloneRate, err = flags.GetFloat64("clone-rate"); err != nil {
		return nil, err
	}
	if cfg.UseSSH, err = flags.GetBool("ssh"); err != nil {
		return nil, err
	}
	if cfg.InsecureHostKey, err = flags.GetBool("insecure-host-key"); err != nil {
		return nil, err
	}
	if cfg.Token, err = flags.GetString("token"); err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv(config.TokenEnv)
	}
	if cfg.MaxFileSize, err = flags.GetInt64("max-file-size"); err != nil {
		return nil, err
	}
	cfg.Verbose = getBoolFlag(cmd, "verbose")

	return cfg, nil
}

// loadRules returns the rule document for the run.
// An explicit --config that does not exist is an error; otherwise a
// discovered file is used, falling back to the bundled sample rules.
func loadRules(rulesPath string) (*config.ScanConfig, error) {
	if path := config.FindRulesFile(rulesPath); path != "" {
		return config.LoadRules(path)
	}
	if rulesPath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, rulesPath)
	}
	return config.DefaultRules()
}

// configSummary records which rules a run used.
func configSummary(rules *config.ScanConfig) model.ConfigSummary {
	names := rules.CategoryNames()
	descriptions := make(map[string]string, len(names))
	for _, name := range names {
		if d := rules.Categories[name].Description; d != "" {
			descriptions[name] = d
		}
	}
	return model.ConfigSummary{
		Source:         rules.Source,
		Categories:     names,
		Descriptions:   descriptions,
		PatternCount:   rules.PatternCount(),
		FileExtensions: rules.FileExtensions,
		BuiltinSecrets: rules.BuiltinSecrets.Enabled,
	}
}

// runScan executes the scan: read inputs, process every repository, then
// write the reports once.
func runScan(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, colored bool) error {
	rules, err := loadRules(cfg.RulesFile)
	if err != nil {
		return err
	}

	entries, err := repolist.Read(cfg.ListFile)
	if err != nil {
		return err
	}

	m, err := matcher.New(rules,
		matcher.WithMaxFileSize(cfg.MaxFileSize),
		matcher.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	fetchOpts := []fetcher.Option{
		fetcher.WithLogger(logger),
		fetcher.WithTimeout(cfg.FetchTimeout),
		fetcher.WithDepth(cfg.CloneDepth),
		fetcher.WithRetries(cfg.Retries),
		fetcher.WithRateLimit(cfg.CloneRate),
		fetcher.WithToken(cfg.Token),
	}
	if cfg.UseSSH {
		fetchOpts = append(fetchOpts, fetcher.WithSSH(cfg.InsecureHostKey))
	}
	f := fetcher.New(cfg.CloneDir, fetchOpts...)

	logger.Info("starting scan",
		"repositories", len(entries),
		"rules", rules.Source,
		"categories", len(rules.Categories),
		"batch", cfg.BatchSize,
		"clone_dir", f.Root(),
	)
	fmt.Fprintf(out, "Scanning %d repositories with %d categories from %s\n",
		len(entries), len(rules.Categories), rules.Source)

	scanReport := model.NewScanReport(configSummary(rules))
	agg := model.NewAggregator(scanReport)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(f, m, pipeline.WithLogger(logger))
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithProgress(progressPrinter(out)),
	)

	runErr := bp.ProcessBatch(ctx, entries, agg)
	final := agg.Finalize()

	paths, err := report.WriteFiles(final, cfg.ResultsDir, cfg.OutputBase, report.FileOptions{
		Markdown: cfg.MarkdownReport,
	})
	if err != nil {
		return err
	}

	if _, err := report.NewSimpleWriter(out, report.WithColor(colored), report.WithVerbose(cfg.Verbose)).Write(final); err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(out, "Report written: %s\n", p)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("scan interrupted after %d of %d repositories: %w",
				final.Processed, len(entries), runErr)
		}
		return runErr
	}
	return nil
}

// progressPrinter prints one line per finished repository.
func progressPrinter(out io.Writer) pipeline.ProgressFunc {
	return func(r *model.RepositoryResult, done, total int) {
		if r.Failed() {
			fmt.Fprintf(out, "[%d/%d] %s: skipped (%s)\n", done, total, r.Entry.DisplayName(), r.Reason)
			return
		}
		fmt.Fprintf(out, "[%d/%d] %s: %s, %d match(es) in %d file(s)\n",
			done, total, r.Entry.DisplayName(), r.Status, len(r.Matches), r.FilesScanned)
	}
}
