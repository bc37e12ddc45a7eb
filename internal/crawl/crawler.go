package crawl

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/nao1215/pagemirror/internal/resource"
	"github.com/nao1215/pagemirror/internal/scheduler"
	"github.com/nao1215/pagemirror/internal/urlpath"
)

// Crawler walks a site breadth-first. It implements scheduler.Frontier.
type Crawler struct {
	sched *scheduler.Scheduler

	// maxDepth limits how many links are followed from the start page.
	maxDepth int

	// maxPages limits the number of pages admitted, the start page included.
	maxPages int

	// ignorePatterns are URL path globs that are never crawled.
	ignorePatterns []string

	// followPatterns, when set, are the only URL path globs crawled.
	followPatterns []string

	logger *slog.Logger

	mu       sync.Mutex
	start    *url.URL
	visited  map[string]bool
	queue    []*resource.Resource
	admitted int
	refused  int
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxDepth sets the maximum crawl depth. 0 mirrors only the start
// page; a negative depth is unlimited.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) {
		c.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages. A non-positive value is
// unlimited.
func WithMaxPages(maxPages int) Option {
	return func(c *Crawler) {
		c.maxPages = maxPages
	}
}

// WithIgnorePatterns sets URL path patterns that are never crawled.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts the crawl to URL paths matching at least one
// pattern. An empty slice allows every path.
func WithFollowPatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.followPatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler driving sched and registers it as the scheduler's
// frontier.
func New(sched *scheduler.Scheduler, opts ...Option) *Crawler {
	c := &Crawler{
		sched:    sched,
		maxDepth: 5,
		maxPages: 1000,
		visited:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	sched.SetFrontier(c)
	return c
}

// Run mirrors root and every page reachable from it within the limits.
// Only failures of root itself and cancellation are returned.
func (c *Crawler) Run(ctx context.Context, root *resource.Resource) error {
	start, err := url.Parse(root.URL())
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.start = start
	c.visited[visitKey(root.URL())] = true
	c.admitted++
	c.mu.Unlock()

	c.logger.Info("crawl started", "url", root.URL(), "max_depth", c.maxDepth, "max_pages", c.maxPages)
	if err := c.sched.HandleRoot(ctx, root); err != nil {
		return err
	}

	for {
		batch := c.take()
		if len(batch) == 0 {
			if err := c.sched.Wait(ctx); err != nil {
				return err
			}
			if batch = c.take(); len(batch) == 0 {
				break
			}
		}
		for _, page := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.logger.Debug("crawling page", "url", page.URL(), "depth", page.Depth())
			c.sched.Dispatch(ctx, page)
		}
	}

	stats := c.Stats()
	c.logger.Info("crawl finished", "pages", stats.PagesAdmitted, "refused", stats.PagesRefused)
	return nil
}

// Offer admits a discovered page. It returns true when the page will be,
// or already was, mirrored.
func (c *Crawler) Offer(r *resource.Resource) bool {
	key := visitKey(r.URL())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.visited[key] {
		return true
	}
	if !c.admits(r) {
		c.refused++
		return false
	}
	c.visited[key] = true
	c.admitted++
	c.queue = append(c.queue, r)
	return true
}

// admits must be called with c.mu held.
func (c *Crawler) admits(r *resource.Resource) bool {
	if c.maxPages > 0 && c.admitted >= c.maxPages {
		return false
	}
	if c.maxDepth >= 0 && r.Depth() > c.maxDepth {
		return false
	}
	u, err := url.Parse(r.URL())
	if err != nil || !urlpath.SameSite(c.start, u) {
		return false
	}
	return c.shouldCrawl(u)
}

func (c *Crawler) take() []*resource.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := c.queue
	c.queue = nil
	return batch
}

// Stats returns current crawl statistics.
func (c *Crawler) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		PagesAdmitted: c.admitted,
		PagesRefused:  c.refused,
		PagesQueued:   len(c.queue),
	}
}

// Stats contains crawl statistics.
type Stats struct {
	// PagesAdmitted is the number of pages accepted, the start page included.
	PagesAdmitted int

	// PagesRefused counts offers turned down by a limit or pattern.
	PagesRefused int

	// PagesQueued is the number of admitted pages not dispatched yet.
	PagesQueued int
}

// visitKey normalizes a page URL for the visited set.
func visitKey(rawURL string) string {
	key, err := urlpath.Normalize(rawURL)
	if err != nil {
		return rawURL
	}
	return key
}
