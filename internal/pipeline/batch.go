package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/reposcan/internal/model"
)

// ProgressFunc is called once per repository, in input order, after its
// result has been added to the aggregate. done counts results so far.
type ProgressFunc func(result *model.RepositoryResult, done, total int)

// BatchProcessor handles processing of many repositories.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on a single repository
// 2. It owns the single point where results meet the Aggregator
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each repository.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of repositories in flight.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// progress is notified from the collector goroutine.
	progress ProgressFunc
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of repositories processed at once.
// Default is 1: strictly sequential.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithProgress sets a callback invoked as each result is aggregated.
func WithProgress(fn ProgressFunc) BatchOption {
	return func(b *BatchProcessor) {
		b.progress = fn
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each repository to create a
// fresh pipeline instance, so pipeline state never leaks between repositories.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every entry through a pipeline and adds each result to
// agg in input order.
//
// With concurrency 1 each repository is fetched, scanned and aggregated
// before the next one starts. With more, repositories run concurrently and
// their results travel over a channel to one collector goroutine, which
// reorders them by input index. The collector is the only caller of
// agg.Add, so the Aggregator needs no locking.
//
// Every entry yields exactly one result. When ctx is cancelled the
// remaining entries are recorded as failed and ctx.Err() is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, entries []model.RepositoryEntry, agg *model.Aggregator) error {
	bp.logger.Info("starting batch processing",
		"total_repositories", len(entries),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	if bp.concurrency == 1 {
		for i, entry := range entries {
			bp.add(agg, bp.runOne(ctx, i, entry), len(entries))
		}
	} else {
		bp.processConcurrent(ctx, entries, agg)
	}

	bp.logger.Info("batch processing complete",
		"total_repositories", len(entries),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}

func (bp *BatchProcessor) processConcurrent(ctx context.Context, entries []model.RepositoryEntry, agg *model.Aggregator) {
	results := make(chan *model.RepositoryResult)
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		pending := make(map[int]*model.RepositoryResult)
		next := 0
		for r := range results {
			pending[r.Index] = r
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				bp.add(agg, ready, len(entries))
				next++
			}
		}
	}()

	// Goroutines never return an error: a failed repository is recorded in
	// its result and must not cancel the others.
	var g errgroup.Group
	g.SetLimit(bp.concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			results <- bp.runOne(ctx, i, entry)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Workers always return nil

	close(results)
	<-collected
}

// runOne processes a single entry.
func (bp *BatchProcessor) runOne(ctx context.Context, index int, entry model.RepositoryEntry) *model.RepositoryResult {
	result := model.NewRepositoryResult(index, entry)
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		result.Fail("cancelled: " + err.Error())
		return result
	}

	p := bp.pipelineFactory()
	bp.logger.Debug("processing repository",
		"repository", entry.URL,
		"index", index+1,
		"steps", p.StepNames(),
	)
	if err := p.Execute(ctx, result); err != nil {
		bp.logger.Debug("repository failed",
			"repository", entry.URL,
			"error", err,
		)
	}
	return result
}

func (bp *BatchProcessor) add(agg *model.Aggregator, result *model.RepositoryResult, total int) {
	agg.Add(result)
	if bp.progress != nil {
		bp.progress(result, agg.Len(), total)
	}
}
