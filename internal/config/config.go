package config

import (
	"fmt"
	"maps"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/pagemirror/internal/urlpath"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pagemirror"

	// DefaultOutputFolder is the directory projects are written below.
	DefaultOutputFolder = "."

	// DefaultConcurrencyMode runs resources one at a time on the calling
	// goroutine.
	DefaultConcurrencyMode = ModeSync

	// DefaultTreeLayout mirrors the URL hierarchy on disk.
	DefaultTreeLayout = "hierarchical"

	// DefaultWorkers is the number of pool workers or spawned goroutines.
	// Most servers handle a handful of parallel connections per client
	// without throttling.
	DefaultWorkers = 8

	// DefaultQueueSize is the pool queue length. When the queue is full the
	// submitting goroutine runs the resource itself.
	DefaultQueueSize = 256

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultCloseTimeout is how long Close waits for outstanding
	// resources before cancelling them.
	DefaultCloseTimeout = 10 * time.Second

	// DefaultMaxDepth bounds how far crawl mode follows page links.
	DefaultMaxDepth = 5

	// DefaultMaxPages bounds the pages crawl mode mirrors per target.
	DefaultMaxPages = 1000

	// DefaultBatchSize is the number of targets mirrored concurrently.
	DefaultBatchSize = 2

	// DefaultUserAgent identifies pagemirror in HTTP requests and is the
	// agent matched against robots.txt groups.
	DefaultUserAgent = "pagemirror/1.0 (+https://github.com/nao1215/pagemirror)"

	// DefaultMaxBodySize limits the size of a single response body.
	DefaultMaxBodySize = 64 * 1024 * 1024 // 64MB

	// DefaultReportFormat prints the human-readable summary.
	DefaultReportFormat = FormatText
)

// Concurrency modes.
const (
	ModeSync  = "sync"
	ModeSpawn = "spawn"
	ModePool  = "pool"
)

// Report formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Config holds every option of a mirroring run.
// It is populated from CLI flags and the configuration file and passed
// by pointer into constructors; nothing reads configuration from globals,
// so several runs can coexist in one process.
type Config struct {
	// StartURL is the page a single run begins with.
	StartURL string

	// Targets lists the start URLs of a batch invocation. ForTarget turns
	// the batch configuration into one run configuration per target.
	Targets []string

	// OutputFolder is the directory that receives one folder per project.
	OutputFolder string

	// ProjectName names the project folder below OutputFolder. When empty
	// it is derived from the start URL's host.
	ProjectName string

	// Debug enables debug logging.
	Debug bool

	// Overwrite replaces files that already exist in the project folder.
	// When false, existing files are kept and reported as skipped.
	Overwrite bool

	// BypassAccessPolicy disables robots.txt evaluation.
	BypassAccessPolicy bool

	// CacheEnabled keeps a sqlite record of mirrored assets so later runs
	// do not re-download files that are still on disk.
	CacheEnabled bool

	// CacheDir is the directory holding the cache database. Defaults to
	// the XDG data directory.
	CacheDir string

	// Delay is the minimum time between two requests to the same host.
	// A larger robots.txt Crawl-delay wins.
	Delay time.Duration

	// ConcurrencyMode selects how resources run: sync, spawn or pool.
	ConcurrencyMode string

	// Workers bounds the concurrency of the spawn and pool modes.
	Workers int

	// QueueSize is the pool queue length.
	QueueSize int

	// TreeLayout arranges the mirrored files: hierarchical or linear.
	TreeLayout string

	// Crawl follows page links and mirrors linked pages too. When false
	// only the start page and its assets are saved.
	Crawl bool

	// BlockCrossDomain restricts crawled pages to the start URL's
	// directory on the same site.
	BlockCrossDomain bool

	// MaxDepth bounds page-link depth in crawl mode. Negative is unlimited.
	MaxDepth int

	// MaxPages bounds the pages admitted in crawl mode. Zero or negative
	// is unlimited.
	MaxPages int

	// BatchSize is the number of targets mirrored concurrently.
	BatchSize int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// CloseTimeout is how long closing the scheduler waits for outstanding
	// resources.
	CloseTimeout time.Duration

	// UserAgent is sent with every request and matched against robots.txt.
	UserAgent string

	// MaxBodySize caps a single response body in bytes. Zero uses the
	// transport default.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// DisabledTags lists tags whose links are left untouched.
	DisabledTags []string

	// TagKinds overrides the resource kind created for a tag, for example
	// {"iframe": "generic"}.
	TagKinds map[string]string

	// ReportFormat selects the run report: text, json or markdown.
	ReportFormat string

	// ReportFile is the output path of the json or markdown report. When
	// empty the report is written into the project folder.
	ReportFile string

	// ConfigFilePath is the path of the configuration file. When empty
	// FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings of the configuration file.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputFolder:    DefaultOutputFolder,
		ConcurrencyMode: DefaultConcurrencyMode,
		Workers:         DefaultWorkers,
		QueueSize:       DefaultQueueSize,
		TreeLayout:      DefaultTreeLayout,
		MaxDepth:        DefaultMaxDepth,
		MaxPages:        DefaultMaxPages,
		BatchSize:       DefaultBatchSize,
		Timeout:         DefaultTimeout,
		CloseTimeout:    DefaultCloseTimeout,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		ReportFormat:    DefaultReportFormat,
	}
}

// XDGDataDir returns the XDG data directory for pagemirror.
// On Linux: ~/.local/share/pagemirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pagemirror.
// On Linux: ~/.config/pagemirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ProjectPath returns the directory the run's files are written to.
func (c *Config) ProjectPath() string {
	return filepath.Join(c.OutputFolder, c.ProjectName)
}

// CacheDirectory returns the directory of the cache database.
func (c *Config) CacheDirectory() string {
	if c.CacheDir == "" {
		return XDGDataDir()
	}
	return c.CacheDir
}

// AllTargets returns StartURL followed by Targets, without duplicates.
func (c *Config) AllTargets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range append([]string{c.StartURL}, c.Targets...) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ForTarget returns a copy of c configured for a single run of target.
// The project name defaults to the target's host. In a batch of several
// targets a configured project name and report file are suffixed with
// the host so runs never share them. Site settings for the target's
// host are merged in.
func (c *Config) ForTarget(target string) *Config {
	out := *c
	out.StartURL = target
	out.Targets = nil
	out.TagKinds = maps.Clone(c.TagKinds)
	out.DisabledTags = append([]string(nil), c.DisabledTags...)

	host := hostOf(target)
	batch := len(c.AllTargets()) > 1 && host != ""
	switch {
	case out.ProjectName == "":
		out.ProjectName = host
	case batch:
		out.ProjectName = out.ProjectName + "-" + host
	}
	if batch && out.ReportFile != "" {
		ext := filepath.Ext(out.ReportFile)
		out.ReportFile = strings.TrimSuffix(out.ReportFile, ext) + "-" + host + ext
	}

	if c.SiteConfigs != nil {
		site := c.Site(siteHost(target))
		if site.Depth != 0 {
			out.MaxDepth = site.Depth
		}
		for tag, kind := range site.TagKinds {
			if out.TagKinds == nil {
				out.TagKinds = make(map[string]string)
			}
			out.TagKinds[tag] = kind
		}
	}
	return &out
}

// Site returns the configuration file settings for host, or the zero
// value when no file is loaded.
func (c *Config) Site(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as an error wrapping ErrConfiguration.
// A batch configuration (Targets set, StartURL empty) is validated
// without the per-run project checks; ForTarget followed by Validate
// checks each run.
func (c *Config) Validate() error {
	targets := c.AllTargets()
	if len(targets) == 0 {
		return ErrNoStartURL
	}
	for _, t := range targets {
		if !isHTTPURL(t) {
			return fmt.Errorf("%w: %q", ErrInvalidStartURL, t)
		}
	}

	if strings.TrimSpace(c.OutputFolder) == "" {
		return ErrNoOutputFolder
	}

	if c.StartURL != "" && len(c.Targets) == 0 && strings.TrimSpace(c.ProjectName) == "" {
		return ErrNoProjectName
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.CloseTimeout < 0 {
		return ErrInvalidCloseTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	switch strings.ToLower(c.ConcurrencyMode) {
	case "", ModeSync:
	case ModeSpawn, ModePool:
		if c.Workers <= 0 {
			return ErrInvalidWorkers
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConcurrencyMode, c.ConcurrencyMode)
	}

	if c.QueueSize < 0 {
		return ErrInvalidQueueSize
	}

	if _, err := urlpath.ParseLayout(c.TreeLayout); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownTreeLayout, c.TreeLayout)
	}

	switch strings.ToLower(c.ReportFormat) {
	case "", FormatText, FormatJSON, FormatMarkdown:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownReportFormat, c.ReportFormat)
	}

	if c.Delay < 0 {
		return ErrInvalidDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// hostOf returns the lowercased host of raw with a port kept as
// "_port", so it can name a folder.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && host != "" {
		host += "_" + port
	}
	return host
}

func siteHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
