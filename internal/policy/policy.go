package policy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/pagemirror/internal/transport"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// maxRobotsSize caps the robots.txt body that is parsed.
const maxRobotsSize = 512 * 1024

// Fetcher performs the robots.txt requests.
type Fetcher interface {
	Request(ctx context.Context, method, rawURL string, header http.Header) (*transport.Response, error)
}

// Policy evaluates robots.txt rules and throttles requests per host.
// It is safe for concurrent use.
type Policy struct {
	fetcher   Fetcher
	bypass    bool
	delay     time.Duration
	userAgent string
	logger    *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	robots   map[string]*robotstxt.RobotsData
	limiters map[string]*rate.Limiter
}

// Option configures a Policy.
type Option func(*Policy)

// WithBypass disables robots.txt evaluation. The configured delay still
// applies.
func WithBypass(bypass bool) Option {
	return func(p *Policy) {
		p.bypass = bypass
	}
}

// WithDelay sets the minimum interval between two requests to one host.
func WithDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.delay = d
		}
	}
}

// WithUserAgent sets the agent whose Crawl-delay is honored by Wait.
func WithUserAgent(ua string) Option {
	return func(p *Policy) {
		p.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// New creates a Policy that fetches robots.txt files with fetcher.
func New(fetcher Fetcher, opts ...Option) *Policy {
	p := &Policy{
		fetcher:  fetcher,
		robots:   make(map[string]*robotstxt.RobotsData),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// IsAllowed reports whether userAgent may fetch rawURL.
// Unparseable URLs are allowed; the transport reports them.
func (p *Policy) IsAllowed(ctx context.Context, rawURL, userAgent string) bool {
	if p.bypass {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	data := p.robotsFor(ctx, u)
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, userAgent)
}

// CrawlDelay returns the Crawl-delay the host of rawURL asks of userAgent.
func (p *Policy) CrawlDelay(ctx context.Context, rawURL, userAgent string) (time.Duration, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0, false
	}
	data := p.robotsFor(ctx, u)
	if data == nil {
		return 0, false
	}
	group := data.FindGroup(userAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return 0, false
	}
	return group.CrawlDelay, true
}

// Wait blocks until a request to the host of rawURL may be sent.
func (p *Policy) Wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	limiter := p.limiterFor(ctx, u)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (p *Policy) limiterFor(ctx context.Context, u *url.URL) *rate.Limiter {
	host := strings.ToLower(u.Host)

	p.mu.Lock()
	limiter, ok := p.limiters[host]
	p.mu.Unlock()
	if ok {
		return limiter
	}

	interval := p.delay
	if !p.bypass {
		if d, ok := p.CrawlDelay(ctx, u.String(), p.userAgent); ok && d > interval {
			interval = d
		}
	}
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.limiters[host]; ok {
		return existing
	}
	p.limiters[host] = limiter
	return limiter
}

func (p *Policy) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)

	p.mu.Lock()
	data, ok := p.robots[key]
	p.mu.Unlock()
	if ok {
		return data
	}

	// The result is shared by every waiter and cached for the run, so it
	// must not depend on whether the first caller is cancelled.
	fetchCtx := context.WithoutCancel(ctx)
	v, _, _ := p.group.Do(key, func() (any, error) {
		data := p.fetchRobots(fetchCtx, key)
		p.mu.Lock()
		p.robots[key] = data
		p.mu.Unlock()
		return data, nil
	})
	data, _ = v.(*robotstxt.RobotsData)
	return data
}

// fetchRobots returns nil when every path is allowed.
func (p *Policy) fetchRobots(ctx context.Context, origin string) *robotstxt.RobotsData {
	robotsURL := origin + "/robots.txt"
	resp, err := p.fetcher.Request(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		p.logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		p.logger.Debug("robots.txt server error, allowing all", "url", robotsURL, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		p.logger.Debug("failed to read robots.txt", "url", robotsURL, "error", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		p.logger.Debug("failed to parse robots.txt", "url", robotsURL, "error", err)
		return nil
	}
	return data
}
