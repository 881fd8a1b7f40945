package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/reposcan/internal/model"
)

// Step is one stage of processing a single repository.
//
// Design decision: Steps are an interface rather than plain functions so a
// step can hold its collaborators (a fetcher, a matcher) and report a name
// for logs.
type Step interface {
	// Do advances result. A returned error means later steps have nothing
	// to work on; problems that still leave a usable result are recorded
	// on result and Do returns nil.
	Do(ctx context.Context, result *model.RepositoryResult) error

	// Name identifies the step in logs.
	Name() string
}

// Pipeline runs a fixed sequence of steps against one repository result.
// A Pipeline is not shared between repositories; BatchProcessor builds a
// new one per entry.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0, 2)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order against result.
//
// Cancellation is checked before each step; a cancelled run marks result
// failed. A step error also marks result failed (unless the step already
// did), stops the run and is returned: a repository that could not be
// fetched has nothing to scan.
func (p *Pipeline) Execute(ctx context.Context, result *model.RepositoryResult) error {
	repo := result.Entry.URL
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "repository", repo, "reason", err)
			result.Fail(fmt.Sprintf("cancelled before %s: %v", step.Name(), err))
			return err
		}

		start := time.Now()
		err := step.Do(ctx, result)
		p.logger.Debug("step finished",
			"step", step.Name(),
			"repository", repo,
			"elapsed", time.Since(start),
			"ok", err == nil,
		)
		if err == nil {
			continue
		}

		p.logger.Warn("step failed", "step", step.Name(), "repository", repo, "error", err)
		if !result.Failed() {
			result.Fail(err.Error())
		}
		return err
	}
	return nil
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
