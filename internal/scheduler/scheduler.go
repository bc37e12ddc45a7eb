package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/pagemirror/internal/index"
	"github.com/nao1215/pagemirror/internal/model"
	"github.com/nao1215/pagemirror/internal/resource"
	"github.com/nao1215/pagemirror/internal/urlpath"
)

// Frontier admits pages discovered while crawling. Offer returns false
// when the page must not be mirrored; an admitted page is dispatched by
// the frontier's owner, not by Handle.
type Frontier interface {
	Offer(r *resource.Resource) bool
}

// Cache remembers assets mirrored by earlier runs.
type Cache interface {
	// Lookup returns the path an earlier run saved rawURL to, if that file
	// still exists.
	Lookup(ctx context.Context, rawURL string) (string, bool)

	// Store remembers a saved asset.
	Store(ctx context.Context, e model.Entry) error
}

// Recorder receives the outcome of every processed resource.
type Recorder interface {
	Record(e model.Entry)
}

// Scheduler owns the tag registry, the dedup index and the concurrency
// strategy of one run. It implements resource.Handler.
type Scheduler struct {
	registry         *Registry
	index            *index.Index
	strategy         Strategy
	blockCrossDomain bool
	cache            Cache
	recorder         Recorder
	logger           *slog.Logger

	// frontier is set by the crawl orchestrator; nil in single-page mode.
	frontier Frontier
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRegistry sets the tag registry.
func WithRegistry(r *Registry) Option {
	return func(s *Scheduler) {
		s.registry = r
	}
}

// WithIndex sets the dedup index, for sharing it between schedulers.
func WithIndex(idx *index.Index) Option {
	return func(s *Scheduler) {
		s.index = idx
	}
}

// WithStrategy sets the concurrency strategy. The default is Synchronous.
func WithStrategy(st Strategy) Option {
	return func(s *Scheduler) {
		s.strategy = st
	}
}

// WithBlockCrossDomain rejects pages outside the start URL's site and
// directory.
func WithBlockCrossDomain(block bool) Option {
	return func(s *Scheduler) {
		s.blockCrossDomain = block
	}
}

// WithCache enables skipping assets mirrored by earlier runs.
func WithCache(c Cache) Option {
	return func(s *Scheduler) {
		s.cache = c
	}
}

// WithRecorder sets where outcomes are recorded.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = NewRegistry(false)
	}
	if s.index == nil {
		s.index = index.New()
	}
	if s.strategy == nil {
		s.strategy = NewSynchronous()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SetFrontier routes discovered pages to f instead of dispatching them.
// It must be called before the run starts.
func (s *Scheduler) SetFrontier(f Frontier) {
	s.frontier = f
}

// Index returns the dedup index.
func (s *Scheduler) Index() *index.Index {
	return s.index
}

// Strategy returns the concurrency strategy.
func (s *Scheduler) Strategy() Strategy {
	return s.strategy
}

// KindFor returns the kind for references found under tag.
func (s *Scheduler) KindFor(tag string) resource.Kind {
	return s.registry.KindFor(tag)
}

// fetchableSchemes are the only schemes ValidateURL accepts.
var fetchableSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// ValidateURL reports whether a reference as written in a document should
// be followed. Fragments alone, empty references and non-HTTP schemes
// (data:, javascript:, mailto:, tel:, ...) are rejected.
func (s *Scheduler) ValidateURL(rawURL string) bool {
	raw := strings.TrimSpace(rawURL)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return u.Host != "" || u.Path != "" || u.RawQuery != ""
	}
	return fetchableSchemes[strings.ToLower(u.Scheme)]
}

// ValidateResource reports whether r should be processed at all.
func (s *Scheduler) ValidateResource(r *resource.Resource) bool {
	if r == nil || r.Kind() == resource.KindVoid {
		return false
	}
	u, err := url.Parse(r.URL())
	if err != nil || u.Host == "" {
		return false
	}
	if s.blockCrossDomain && r.Kind() == resource.KindHTML && r.Depth() > 0 {
		base, err := url.Parse(r.Context().BaseURL)
		if err != nil || !urlpath.WithinBase(base, u) {
			return false
		}
	}
	return true
}

// Handle takes a discovered resource through dedup, validation and
// dispatch. When Handle returns, r.Resolve gives its final reference.
func (s *Scheduler) Handle(ctx context.Context, r *resource.Resource) {
	if r == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic while handling resource", "url", r.URL(), "panic", rec)
			r.Detach()
		}
	}()

	if path, ok := s.index.Lookup(r.URL()); ok {
		r.BindPath(path)
		return
	}
	if !s.ValidateResource(r) {
		r.Detach()
		return
	}

	switch r.Kind() {
	case resource.KindAbsoluteURL:
		return
	case resource.KindBase64:
		// Base64 bodies are inlined by the parent, so they must be
		// complete before Handle returns.
		s.process(ctx, r)
		return
	}

	path, err := r.Filepath()
	if err != nil {
		s.logger.Warn("cannot map resource to a file", "url", r.URL(), "error", err)
		r.Detach()
		return
	}

	if existing, won := s.index.Reserve(r.URL(), path); !won {
		r.BindPath(existing)
		return
	}
	if r.Kind() == resource.KindHTML && r.Depth() > 0 && s.frontier != nil {
		// Only the winner of the reservation is offered, so a page is
		// queued at most once and never behind a claim it lost.
		if !s.frontier.Offer(r) {
			s.index.Release(r.URL(), path)
			r.Detach()
		}
		return
	}
	if s.reuse(ctx, r, path) {
		return
	}
	s.Dispatch(ctx, r)
}

// HandleRoot processes the start page on the calling goroutine and
// returns its failure. Children are dispatched as usual.
func (s *Scheduler) HandleRoot(ctx context.Context, r *resource.Resource) error {
	path, err := r.Filepath()
	if err != nil {
		return err
	}
	s.index.Reserve(r.URL(), path)
	defer r.Close()

	if err := r.Fetch(ctx); err != nil {
		s.record(ctx, r, statusOf(err), err)
		return err
	}
	s.index.Record(r.Aliases(), path)

	if err := r.Retrieve(ctx); err != nil {
		s.record(ctx, r, model.StatusFailed, err)
		return err
	}
	s.record(ctx, r, resultStatus(r.Result()), nil)
	return nil
}

// Dispatch submits a reserved resource to the strategy.
func (s *Scheduler) Dispatch(ctx context.Context, r *resource.Resource) {
	s.strategy.Submit(ctx, func(ctx context.Context) {
		s.process(ctx, r)
	})
}

// Wait blocks until every dispatched resource has been processed.
func (s *Scheduler) Wait(ctx context.Context) error {
	return s.strategy.Wait(ctx)
}

// Close joins outstanding work, cancelling it after timeout.
func (s *Scheduler) Close(timeout time.Duration) error {
	return s.strategy.Close(timeout)
}

// reuse skips assets that need no download: files kept from an earlier
// run because overwriting is off, and assets the cache knows about.
func (s *Scheduler) reuse(ctx context.Context, r *resource.Resource, path string) bool {
	if !r.Kind().Leaf() {
		return false
	}
	if r.KeepsExistingFile() {
		s.record(ctx, r, model.StatusSkipped, nil)
		return true
	}
	if s.cache == nil {
		return false
	}
	if cached, ok := s.cache.Lookup(ctx, r.URL()); ok && cached == path {
		s.record(ctx, r, model.StatusCached, nil)
		return true
	}
	return false
}

func (s *Scheduler) process(ctx context.Context, r *resource.Resource) {
	defer r.Close()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic while processing resource", "url", r.URL(), "panic", rec)
			s.record(ctx, r, model.StatusFailed, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := context.Cause(ctx); err != nil {
		s.record(ctx, r, model.StatusFailed, err)
		return
	}

	if err := r.Fetch(ctx); err != nil {
		status := statusOf(err)
		if status == model.StatusDenied {
			s.logger.Info("access denied", "url", r.URL())
		} else {
			s.logger.Warn("failed to fetch resource", "url", r.URL(), "kind", r.Kind().String(), "error", err)
			if perr := r.WritePlaceholder(err); perr != nil {
				s.logger.Warn("failed to write placeholder", "url", r.URL(), "error", perr)
			}
		}
		s.record(ctx, r, status, err)
		return
	}
	if r.Kind().Saves() {
		if path, err := r.Filepath(); err == nil {
			s.index.Record(r.Aliases(), path)
		}
	}

	if err := r.Retrieve(ctx); err != nil {
		s.logger.Warn("failed to retrieve resource", "url", r.URL(), "kind", r.Kind().String(), "error", err)
		if perr := r.WritePlaceholder(err); perr != nil {
			s.logger.Warn("failed to write placeholder", "url", r.URL(), "error", perr)
		}
		s.record(ctx, r, model.StatusFailed, err)
		return
	}
	s.logger.Debug("mirrored resource", "url", r.URL(), "kind", r.Kind().String(), "bytes", r.Result().Bytes)
	s.record(ctx, r, resultStatus(r.Result()), nil)
}

func (s *Scheduler) record(ctx context.Context, r *resource.Resource, status model.Status, err error) {
	res := r.Result()
	entry := model.Entry{
		URL:        r.URL(),
		Kind:       r.Kind().String(),
		Status:     status,
		StatusCode: res.StatusCode,
		Bytes:      res.Bytes,
		Digest:     res.Digest,
		Depth:      r.Depth(),
	}
	if r.Kind().Saves() {
		entry.Path, _ = r.Filepath() //nolint:errcheck // unmapped resources are recorded without a path
	}
	if err != nil {
		entry.Error = err.Error()
	} else if res.Placeholder {
		entry.Error = fmt.Sprintf("HTTP %d", res.StatusCode)
	}

	if s.recorder != nil {
		s.recorder.Record(entry)
	}
	if s.cache != nil && status == model.StatusSaved && r.Kind().Saves() {
		if err := s.cache.Store(context.WithoutCancel(ctx), entry); err != nil {
			s.logger.Warn("failed to update asset cache", "url", r.URL(), "error", err)
		}
	}
}

func statusOf(err error) model.Status {
	if errors.Is(err, resource.ErrAccessDenied) {
		return model.StatusDenied
	}
	return model.StatusFailed
}

func resultStatus(res resource.Result) model.Status {
	switch {
	case res.Placeholder:
		return model.StatusPlaceholder
	case res.Skipped:
		return model.StatusSkipped
	default:
		return model.StatusSaved
	}
}
