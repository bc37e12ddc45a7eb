package pipeline

import (
	"io"
	"log/slog"

	"github.com/nao1215/pagemirror/internal/config"
	"github.com/nao1215/pagemirror/internal/database"
	"github.com/nao1215/pagemirror/internal/model"
)

// Deps are the collaborators shared by every run of an invocation.
type Deps struct {
	// Logger receives all run logs.
	Logger *slog.Logger

	// Out receives the text report. Nil disables it.
	Out io.Writer

	// DB is the cache database, or nil when caching is disabled.
	DB *database.CacheDB

	// Version is written into watermarks and JSON reports.
	Version string

	// Verbose lists every resource in the text report.
	Verbose bool
}

// NewMirrorFactory returns a Factory that builds the standard mirroring
// pipeline for each target of base.
func NewMirrorFactory(base *config.Config, deps Deps) Factory {
	return func(target string) (*Pipeline, *model.Run) {
		return NewMirrorPipeline(base.ForTarget(target), deps)
	}
}

// NewMirrorPipeline builds the pipeline of a single-run configuration:
// prepare and mirror, then history (when a database is configured) and
// the report.
func NewMirrorPipeline(cfg *config.Config, deps Deps) (*Pipeline, *model.Run) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	run := model.NewRun(cfg.StartURL, cfg.ProjectName, cfg.ProjectPath())

	mirrorOpts := []MirrorStepOption{
		WithMirrorLogger(logger),
		WithMirrorVersion(deps.Version),
	}
	if deps.DB != nil && cfg.CacheEnabled {
		mirrorOpts = append(mirrorOpts, WithMirrorCache(deps.DB))
	}

	p := New(WithLogger(logger))
	p.AddSteps(
		NewPrepareStep(cfg),
		NewMirrorStep(cfg, mirrorOpts...),
	)
	if deps.DB != nil {
		p.AddFinalizer(NewHistoryStep(deps.DB))
	}
	p.AddFinalizer(NewReportStep(cfg, deps.Out,
		WithReportVersion(deps.Version),
		WithReportVerbose(deps.Verbose),
	))
	return p, run
}
