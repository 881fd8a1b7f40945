package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultOutputBase is the base file name of the generated reports.
	// The JSON, CSV and markdown reports share it and differ only in extension.
	DefaultOutputBase = "content_scan_report"

	// DefaultCloneDir is where working copies are cloned, relative to the
	// current directory. Re-running against the same directory reuses them.
	DefaultCloneDir = "repos/cloned"

	// DefaultResultsDir is where reports are written.
	DefaultResultsDir = "results"

	// DefaultBatchSize of 1 processes repositories sequentially.
	// Larger values clone and scan that many repositories concurrently.
	DefaultBatchSize = 1

	// DefaultFetchTimeout bounds a single clone so an unreachable host
	// cannot stall the whole run. A timeout is treated as a fetch failure.
	DefaultFetchTimeout = 5 * time.Minute

	// DefaultCloneDepth of 1 fetches only the latest commit.
	// Content scanning reads the working tree, so history is not needed.
	DefaultCloneDepth = 1

	// DefaultMaxFileSize skips files larger than 10MB.
	// Such files are almost always generated data or bundled assets.
	DefaultMaxFileSize = 10 * 1024 * 1024

	// AppName is the application name used for XDG directory paths.
	AppName = "reposcan"

	// TokenEnv is the environment variable consulted for an HTTPS clone token
	// when --token is not given.
	TokenEnv = "REPOSCAN_GIT_TOKEN"
)

// Config holds all run options for a scan.
// It is populated from CLI flags and passed down explicitly; nothing in the
// scanning packages reads global state.
type Config struct {
	// ListFile is the path to the repository list (txt, csv, tsv or json).
	ListFile string

	// RulesFile is the path to the rule document.
	// Empty means the file is discovered by FindRulesFile, falling back to
	// the bundled sample rules.
	RulesFile string

	// OutputBase is the report file name without extension.
	OutputBase string

	// CloneDir is the directory that holds one working copy per repository.
	CloneDir string

	// ResultsDir is the directory reports are written to. It is created if absent.
	ResultsDir string

	// BatchSize is the number of repositories processed concurrently.
	BatchSize int

	// FetchTimeout bounds each clone operation.
	FetchTimeout time.Duration

	// CloneDepth limits fetched history. Zero clones the full history.
	CloneDepth int

	// Retries is the number of additional clone attempts after a failure.
	// Authentication and not-found errors are never retried.
	Retries int

	// CloneRate limits how many clones start per second. Zero is unlimited.
	CloneRate float64

	// UseSSH rewrites https://github.com/ URLs to SSH and authenticates
	// through the SSH agent.
	UseSSH bool

	// InsecureHostKey disables SSH host key verification.
	InsecureHostKey bool

	// Token is an HTTPS access token used as basic auth password.
	Token string

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64

	// MarkdownReport additionally writes a markdown summary report.
	MarkdownReport bool

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputBase:   DefaultOutputBase,
		CloneDir:     DefaultCloneDir,
		ResultsDir:   DefaultResultsDir,
		BatchSize:    DefaultBatchSize,
		FetchTimeout: DefaultFetchTimeout,
		CloneDepth:   DefaultCloneDepth,
		MaxFileSize:  DefaultMaxFileSize,
	}
}

// XDGConfigDir returns the XDG config directory for reposcan.
// On Linux: ~/.config/reposcan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if c.ListFile == "" {
		return ErrNoListFile
	}

	if c.OutputBase == "" {
		return ErrInvalidOutputBase
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.CloneDepth < 0 {
		return ErrInvalidCloneDepth
	}

	if c.Retries < 0 {
		return ErrInvalidRetries
	}

	if c.CloneRate < 0 {
		return ErrInvalidCloneRate
	}

	if c.MaxFileSize <= 0 {
		return ErrInvalidMaxFileSize
	}

	return nil
}
