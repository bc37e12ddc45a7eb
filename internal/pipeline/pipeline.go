package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/pagemirror/internal/model"
)

// Step is a single stage of a run.
type Step interface {
	// Do executes the step, updating run as needed.
	Do(ctx context.Context, run *model.Run) error

	// Name returns a human-readable name for logging.
	Name() string
}

// Pipeline executes steps in order for a run.
type Pipeline struct {
	// steps are the main steps; the first failure stops them.
	steps []Step

	// finalizers run after the main steps, whatever their outcome.
	finalizers []Step

	logger *slog.Logger

	// continueOnError keeps executing main steps after a failure.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep adds a main step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps adds multiple main steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalizer adds a step that runs after the main steps and after the
// run has been finished.
func (p *Pipeline) AddFinalizer(step Step) {
	p.finalizers = append(p.finalizers, step)
}

// Execute runs the main steps, finishes the run with the first error
// and then runs every finalizer. It returns the main error, or the
// joined finalizer errors when the main steps succeeded.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	err := p.runSteps(ctx, run)
	run.Finish(err)

	// Finalizers record and report the run even when it was cancelled.
	fctx := context.WithoutCancel(ctx)
	var ferrs []error
	for _, step := range p.finalizers {
		if ferr := step.Do(fctx, run); ferr != nil {
			p.logger.Error("finalizer failed",
				"step", step.Name(),
				"run", run.ID,
				"error", ferr,
			)
			ferrs = append(ferrs, ferr)
		}
	}

	if err != nil {
		return err
	}
	return errors.Join(ferrs...)
}

func (p *Pipeline) runSteps(ctx context.Context, run *model.Run) error {
	var firstErr error
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			if firstErr != nil {
				return firstErr
			}
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"url", run.StartURL,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", run.StartURL,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"url", run.StartURL,
		)
	}
	return firstErr
}

// StepCount returns the number of main steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps, finalizers last.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps)+len(p.finalizers))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalizers {
		names = append(names, step.Name())
	}
	return names
}
