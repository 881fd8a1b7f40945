package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and checked with errors.Is.
var (
	// ErrNoListFile is returned when no repository list file is given.
	ErrNoListFile = errors.New("no repository list specified: use --list")

	// ErrInvalidOutputBase is returned when the report base name is empty.
	ErrInvalidOutputBase = errors.New("invalid output name: must not be empty")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid fetch timeout: must be positive")

	// ErrInvalidCloneDepth is returned when the clone depth is negative.
	ErrInvalidCloneDepth = errors.New("invalid clone depth: must be non-negative")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidCloneRate is returned when the clone rate is negative.
	// Use 0 for no limit.
	ErrInvalidCloneRate = errors.New("invalid clone rate: must be non-negative")

	// ErrInvalidMaxFileSize is returned when the file size cap is not positive.
	ErrInvalidMaxFileSize = errors.New("invalid max file size: must be positive")
)

// Rule document errors. Both abort the run before any repository is processed.
var (
	// ErrConfigNotFound is returned when the rule document does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidRules is returned when the rule document cannot be decoded,
	// lacks a required key, or contains a pattern that does not compile.
	ErrInvalidRules = errors.New("invalid configuration")
)
