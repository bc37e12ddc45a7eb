package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/pagemirror/internal/config"
	"github.com/nao1215/pagemirror/internal/crawl"
	"github.com/nao1215/pagemirror/internal/database"
	"github.com/nao1215/pagemirror/internal/index"
	"github.com/nao1215/pagemirror/internal/model"
	"github.com/nao1215/pagemirror/internal/policy"
	"github.com/nao1215/pagemirror/internal/report"
	"github.com/nao1215/pagemirror/internal/resource"
	"github.com/nao1215/pagemirror/internal/scheduler"
	"github.com/nao1215/pagemirror/internal/storage"
	"github.com/nao1215/pagemirror/internal/transport"
	"github.com/nao1215/pagemirror/internal/urlpath"
)

// PrepareStep validates the run configuration and creates the project
// folder. A configuration error stops the run before any request.
type PrepareStep struct {
	cfg *config.Config
}

// NewPrepareStep creates a PrepareStep for cfg.
func NewPrepareStep(cfg *config.Config) *PrepareStep {
	return &PrepareStep{cfg: cfg}
}

// Name returns the step name.
func (s *PrepareStep) Name() string {
	return "prepare"
}

// Do validates the configuration and creates the project folder.
func (s *PrepareStep) Do(_ context.Context, _ *model.Run) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.ProjectPath(), 0750); err != nil {
		return fmt.Errorf("failed to create project folder: %w", err)
	}
	return nil
}

// MirrorStep mirrors the start URL, and in crawl mode the linked pages,
// into the project folder. It wires the transport, access policy, disk
// store, path resolver, scheduler and crawler for a single run.
type MirrorStep struct {
	cfg     *config.Config
	db      *database.CacheDB
	version string
	logger  *slog.Logger
}

// MirrorStepOption configures a MirrorStep.
type MirrorStepOption func(*MirrorStep)

// WithMirrorCache enables the persistent asset cache.
func WithMirrorCache(db *database.CacheDB) MirrorStepOption {
	return func(s *MirrorStep) {
		s.db = db
	}
}

// WithMirrorVersion sets the version written into page watermarks.
func WithMirrorVersion(version string) MirrorStepOption {
	return func(s *MirrorStep) {
		if version != "" {
			s.version = version
		}
	}
}

// WithMirrorLogger sets the logger for the mirror step.
func WithMirrorLogger(logger *slog.Logger) MirrorStepOption {
	return func(s *MirrorStep) {
		s.logger = logger
	}
}

// NewMirrorStep creates a MirrorStep for cfg.
func NewMirrorStep(cfg *config.Config, opts ...MirrorStepOption) *MirrorStep {
	s := &MirrorStep{
		cfg:     cfg,
		version: "dev",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *MirrorStep) Name() string {
	return "mirror"
}

// Do runs the mirror. Only a failure of the start page is returned;
// every other problem is recorded in run.
func (s *MirrorStep) Do(ctx context.Context, run *model.Run) error {
	cfg := s.cfg
	logger := s.logger.With("project", cfg.ProjectName)

	layout, err := urlpath.ParseLayout(cfg.TreeLayout)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	client, err := transport.New(
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithMaxBodySize(cfg.MaxBodySize),
		transport.WithProxy(cfg.ProxyAddress),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	pol := policy.New(client,
		policy.WithBypass(cfg.BypassAccessPolicy),
		policy.WithDelay(cfg.Delay),
		policy.WithUserAgent(cfg.UserAgent),
		policy.WithLogger(logger),
	)

	resolver, err := urlpath.NewResolver(urlpath.DefaultCacheSize)
	if err != nil {
		return err
	}

	registry, err := s.registry()
	if err != nil {
		return err
	}

	strategy, err := scheduler.NewStrategy(cfg.ConcurrencyMode, cfg.Workers, cfg.QueueSize)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	schedOpts := []scheduler.Option{
		scheduler.WithRegistry(registry),
		scheduler.WithIndex(index.New()),
		scheduler.WithStrategy(strategy),
		scheduler.WithBlockCrossDomain(cfg.BlockCrossDomain),
		scheduler.WithRecorder(run),
		scheduler.WithLogger(logger),
	}
	if s.db != nil {
		schedOpts = append(schedOpts, scheduler.WithCache(database.NewAssetCache(s.db, cfg.ProjectName, logger)))
	}
	sched := scheduler.New(schedOpts...)
	defer func() {
		if err := sched.Close(cfg.CloseTimeout); err != nil {
			logger.Warn("resources still running at close", "error", err)
		}
	}()

	sess := &resource.Session{
		Transport: client,
		Policy:    pol,
		Store:     storage.NewDisk(cfg.Overwrite),
		Handler:   sched,
		Resolver:  resolver,
		Logger:    logger,
		UserAgent: cfg.UserAgent,
		Header:    s.header,
		Version:   s.version,
	}

	rootCtx, err := resource.NewContext(cfg.StartURL, cfg.ProjectPath(), layout)
	if err != nil {
		return err
	}
	root := resource.New(rootCtx, resource.KindHTML, sess, 0)

	logger.Info("mirror started",
		"url", cfg.StartURL,
		"mode", strategy.Name(),
		"crawl", cfg.Crawl,
	)

	if cfg.Crawl {
		site := cfg.Site(hostname(rootCtx.URL))
		crawler := crawl.New(sched,
			crawl.WithMaxDepth(cfg.MaxDepth),
			crawl.WithMaxPages(cfg.MaxPages),
			crawl.WithIgnorePatterns(site.IgnorePatterns),
			crawl.WithFollowPatterns(site.FollowPatterns),
			crawl.WithLogger(logger),
		)
		err = crawler.Run(ctx, root)
	} else if err = sched.HandleRoot(ctx, root); err == nil {
		err = sched.Wait(ctx)
	}
	if err != nil {
		return err
	}

	logger.Info("mirror finished",
		"url", cfg.StartURL,
		"resources", len(run.Snapshot()),
		"indexed", sched.Index().Len(),
	)
	return nil
}

// registry builds the tag registry with the configured overrides.
func (s *MirrorStep) registry() (*scheduler.Registry, error) {
	r := scheduler.NewRegistry(s.cfg.Crawl)
	for tag, name := range s.cfg.TagKinds {
		kind, err := resource.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: tag %q: %w", config.ErrConfiguration, tag, err)
		}
		r.Set(tag, kind)
	}
	r.Disable(s.cfg.DisabledTags...)
	return r, nil
}

// header returns the configured headers for the host of rawURL.
func (s *MirrorStep) header(rawURL string) http.Header {
	host := hostname(rawURL)
	if host == "" {
		return nil
	}
	return s.cfg.Site(host).Header()
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// HistoryStep stores the run summary in the cache database.
type HistoryStep struct {
	db *database.CacheDB
}

// NewHistoryStep creates a HistoryStep.
func NewHistoryStep(db *database.CacheDB) *HistoryStep {
	return &HistoryStep{db: db}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do saves the run summary.
func (s *HistoryStep) Do(ctx context.Context, run *model.Run) error {
	return s.db.SaveRun(ctx, run.Summarize())
}

// ReportStep writes the run report: the text summary to the terminal
// and, for the json and markdown formats, a report file.
type ReportStep struct {
	cfg     *config.Config
	out     io.Writer
	version string
	verbose bool
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportVersion sets the version recorded in JSON reports.
func WithReportVersion(version string) ReportStepOption {
	return func(s *ReportStep) {
		s.version = version
	}
}

// WithReportVerbose lists every resource in the text report.
func WithReportVerbose(verbose bool) ReportStepOption {
	return func(s *ReportStep) {
		s.verbose = verbose
	}
}

// NewReportStep creates a ReportStep writing the text summary to out.
func NewReportStep(cfg *config.Config, out io.Writer, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{cfg: cfg, out: out}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the reports.
func (s *ReportStep) Do(_ context.Context, run *model.Run) error {
	var writers []report.Writer
	if s.out != nil {
		writers = append(writers, report.NewSimpleWriter(s.out,
			report.WithVerbose(s.verbose),
			report.WithShowEmpty(s.verbose),
		))
	}

	format := strings.ToLower(s.cfg.ReportFormat)
	if name := report.FileName(format); name != "" {
		path := s.cfg.ReportFile
		if path == "" {
			path = filepath.Join(s.cfg.ProjectPath(), name)
		}
		f, err := report.CreateFile(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if format == config.FormatJSON {
			writers = append(writers, report.NewJSONWriter(f, report.WithPrettyPrint(), report.WithVersion(s.version)))
		} else {
			writers = append(writers, report.NewMarkdownWriter(f))
		}
	}

	if len(writers) == 0 {
		return nil
	}
	if _, err := report.NewMultiWriter(writers...).Write(run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
