package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/pagemirror/internal/model"
	"golang.org/x/sync/errgroup"
)

// Factory builds the pipeline and the run for one start URL.
type Factory func(target string) (*Pipeline, *model.Run)

// BatchProcessor mirrors several start URLs concurrently.
// Each target gets its own pipeline and run, so one failing target never
// affects the others.
type BatchProcessor struct {
	factory Factory

	// concurrency is the maximum number of targets mirrored at once.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 2,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch mirrors every target and returns the runs in target order.
// A target that was never started because ctx ended has a nil run. The
// returned error is the context error, if any; run failures are recorded
// in the runs themselves.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.Run, error) {
	runs := make([]*model.Run, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(run *model.Run, index int) {
		runs[index] = run
	})
	return runs, err
}

// ProcessBatchWithCallback mirrors every target and calls callback with
// each finished run. The callback may be called concurrently.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(run *model.Run, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			bp.logger.Info("mirroring target",
				"url", target,
				"index", i+1,
				"total", len(targets),
			)

			pipeline, run := bp.factory(target)
			if err := pipeline.Execute(ctx, run); err != nil {
				bp.logger.Warn("mirror failed",
					"url", target,
					"error", err,
				)
			} else {
				bp.logger.Info("mirror completed", "url", target)
			}

			callback(run, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}
