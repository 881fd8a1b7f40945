package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/reposcan/internal/fetcher"
	"github.com/nao1215/reposcan/internal/matcher"
	"github.com/nao1215/reposcan/internal/model"
)

// Fetcher obtains a working copy for a repository entry.
// *fetcher.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, entry model.RepositoryEntry) (fetcher.Result, error)
}

// Scanner searches a working copy.
// *matcher.Matcher implements it.
type Scanner interface {
	Scan(ctx context.Context, root string) (*matcher.Result, error)
}

// FetchStep ensures the working copy exists.
// A fetch failure marks the result failed and stops the pipeline for
// this repository only.
type FetchStep struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// FetchStepOption configures a FetchStep.
type FetchStepOption func(*FetchStep)

// WithFetchLogger sets a custom logger for the fetch step.
func WithFetchLogger(logger *slog.Logger) FetchStepOption {
	return func(s *FetchStep) {
		s.logger = logger
	}
}

// NewFetchStep creates a fetch step.
func NewFetchStep(f Fetcher, opts ...FetchStepOption) *FetchStep {
	s := &FetchStep{
		fetcher: f,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the fetch step.
func (s *FetchStep) Do(ctx context.Context, result *model.RepositoryResult) error {
	res, err := s.fetcher.Fetch(ctx, result.Entry)
	if err != nil {
		result.Fail(err.Error())
		return err
	}

	result.LocalPath = res.Path
	result.Status = res.Status
	s.logger.Debug("working copy ready",
		"repository", result.Entry.URL,
		"path", res.Path,
		"status", res.Status,
	)
	return nil
}

// ScanStep searches the working copy and stores the matches.
// Repositories without a working copy are skipped.
type ScanStep struct {
	scanner Scanner
	logger  *slog.Logger
}

// ScanStepOption configures a ScanStep.
type ScanStepOption func(*ScanStep)

// WithScanLogger sets a custom logger for the scan step.
func WithScanLogger(logger *slog.Logger) ScanStepOption {
	return func(s *ScanStep) {
		s.logger = logger
	}
}

// NewScanStep creates a scan step.
func NewScanStep(sc Scanner, opts ...ScanStepOption) *ScanStep {
	s := &ScanStep{
		scanner: sc,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ScanStep) Name() string {
	return "scan"
}

// Do executes the scan step.
// Per-file problems become warnings. A walk failure of the whole tree is
// also recorded as a warning: the working copy was obtained, so the
// repository is not a fetch failure.
func (s *ScanStep) Do(ctx context.Context, result *model.RepositoryResult) error {
	if !result.Status.OK() {
		return nil
	}

	out, err := s.scanner.Scan(ctx, result.LocalPath)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("scan failed",
			"repository", result.Entry.URL,
			"error", err,
		)
		result.AddWarning("scan failed: " + err.Error())
		return nil
	}

	result.Matches = append(result.Matches, out.Matches...)
	result.FilesScanned += out.FilesScanned
	for _, fe := range out.Errors {
		s.logger.Warn("skipped file",
			"repository", result.Entry.URL,
			"file", fe.Path,
			"error", fe.Err,
		)
		result.AddWarning(fe.Error())
	}
	return nil
}

// DefaultPipeline creates a pipeline that fetches and then scans.
// This is the standard pipeline used by `reposcan scan`.
func DefaultPipeline(f Fetcher, sc Scanner, pipelineOpts ...Option) *Pipeline {
	p := New(pipelineOpts...)
	p.AddSteps(
		NewFetchStep(f, WithFetchLogger(p.logger)),
		NewScanStep(sc, WithScanLogger(p.logger)),
	)
	return p
}
