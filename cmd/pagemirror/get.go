package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/pagemirror/internal/config"
	"github.com/nao1215/pagemirror/internal/database"
	pmlog "github.com/nao1215/pagemirror/internal/log"
	"github.com/nao1215/pagemirror/internal/model"
	"github.com/nao1215/pagemirror/internal/pipeline"
	"github.com/spf13/cobra"
)

// errTargetsFailed is returned when at least one target could not be
// mirrored.
var errTargetsFailed = errors.New("mirroring failed")

// NewGetCmd creates the get command.
func NewGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [url...]",
		Short: "Mirror web pages and the files they reference",
		Long: `Get downloads each URL with its stylesheets, scripts, images and other
referenced files into <output>/<project>, rewriting every reference to the
local copy.

Each URL becomes its own project. The project name defaults to the URL's
host; with several URLs a given --project is suffixed with the host.

Examples:
  # Mirror a single page and its assets
  pagemirror get https://example.com/

  # Crawl the site two links deep into ./mirrors
  pagemirror get --crawl --depth 2 -O mirrors https://example.com/docs/

  # Mirror every URL listed in a file, three at a time
  pagemirror get --list urls.txt --batch 3

  # Skip assets an earlier run already saved and write a JSON report
  pagemirror get --cache --format json https://example.com/

Configuration file (.pagemirror) example:
  defaults:
    depth: 3
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      ignorePatterns:
        - "/logout*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runGetCmd,
	}

	// Target flags
	cmd.Flags().StringP("list", "l", "",
		"File with one URL per line (blank lines and # comments are ignored)")
	cmd.Flags().StringP("output-folder", "O", config.DefaultOutputFolder,
		"Directory that receives the project folders")
	cmd.Flags().StringP("project", "n", "",
		"Project folder name (default: the URL's host)")

	// Mirror behavior flags
	cmd.Flags().Bool("crawl", false,
		"Follow links to other pages and mirror them too")
	cmd.Flags().Bool("block-cross-domain", false,
		"Only crawl pages below the start URL's directory on the same site")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum page-link depth in crawl mode (negative for unlimited)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages per target in crawl mode (0 for unlimited)")
	cmd.Flags().Bool("overwrite", false,
		"Replace files that already exist in the project folder")
	cmd.Flags().Bool("bypass-robots", false,
		"Ignore robots.txt")
	cmd.Flags().Duration("delay", 0,
		"Minimum delay between two requests to the same host")
	cmd.Flags().String("layout", config.DefaultTreeLayout,
		"Project tree layout: hierarchical or linear")
	cmd.Flags().StringSlice("disable-tag", nil,
		"Leave links of these tags untouched (repeatable)")
	cmd.Flags().StringToString("tag-kind", nil,
		"Override the resource kind of a tag, e.g. iframe=absolute")

	// Concurrency flags
	cmd.Flags().String("mode", config.DefaultConcurrencyMode,
		"Concurrency mode: sync, spawn or pool")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent downloads in spawn and pool modes")
	cmd.Flags().Int("queue-size", config.DefaultQueueSize,
		"Pool queue length")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets mirrored concurrently")

	// Transport flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Duration("close-timeout", config.DefaultCloseTimeout,
		"How long to wait for outstanding downloads when a run ends")
	cmd.Flags().StringP("user-agent", "A", config.DefaultUserAgent,
		"User-Agent header, also matched against robots.txt")
	cmd.Flags().String("max-body-size", humanize.IBytes(config.DefaultMaxBodySize),
		"Maximum size of a single response body (e.g. 10MB)")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port)")

	// Cache flags
	cmd.Flags().Bool("cache", false,
		"Remember mirrored assets and skip them in later runs")
	cmd.Flags().String("cache-dir", "",
		"Directory of the cache database (default: XDG data directory)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pagemirror in current or home directory)")
	cmd.Flags().Bool("debug", false,
		"Enable debug logging")
	cmd.Flags().String("log-format", "text",
		"Log format: text or json")

	// Report flags
	cmd.Flags().StringP("format", "f", config.DefaultReportFormat,
		"Report format: text, json or markdown")
	cmd.Flags().StringP("report-file", "o", "",
		"Write the json or markdown report to this path (creates directories if needed)")

	return cmd
}

// runGetCmd executes the get command.
func runGetCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logFormat, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return err
	}
	verbose := getVerboseFlag(cmd) || cfg.Debug
	logger, err := setupLogger(cmd.ErrOrStderr(), logFormat, verbose)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runGet(ctx, cfg, cmd.OutOrStdout(), logger, verbose)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. Every URL is placed in Targets; each run's own
// configuration is derived with ForTarget.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.OutputFolder, err = flags.GetString("output-folder"); err != nil {
		return nil, err
	}
	if cfg.ProjectName, err = flags.GetString("project"); err != nil {
		return nil, err
	}
	if cfg.Crawl, err = flags.GetBool("crawl"); err != nil {
		return nil, err
	}
	if cfg.BlockCrossDomain, err = flags.GetBool("block-cross-domain"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Overwrite, err = flags.GetBool("overwrite"); err != nil {
		return nil, err
	}
	if cfg.BypassAccessPolicy, err = flags.GetBool("bypass-robots"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.TreeLayout, err = flags.GetString("layout"); err != nil {
		return nil, err
	}
	if cfg.DisabledTags, err = flags.GetStringSlice("disable-tag"); err != nil {
		return nil, err
	}
	if cfg.TagKinds, err = flags.GetStringToString("tag-kind"); err != nil {
		return nil, err
	}
	if cfg.ConcurrencyMode, err = flags.GetString("mode"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = flags.GetInt("queue-size"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CloseTimeout, err = flags.GetDuration("close-timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.CacheEnabled, err = flags.GetBool("cache"); err != nil {
		return nil, err
	}
	if cfg.CacheDir, err = flags.GetString("cache-dir"); err != nil {
		return nil, err
	}
	if cfg.Debug, err = flags.GetBool("debug"); err != nil {
		return nil, err
	}
	if cfg.ReportFormat, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	maxBody, err := flags.GetString("max-body-size")
	if err != nil {
		return nil, err
	}
	size, err := humanize.ParseBytes(maxBody)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid max body size %q: %w", config.ErrConfiguration, maxBody, err)
	}
	cfg.MaxBodySize = int64(size) //nolint:gosec // sizes beyond int64 are not meaningful

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	listPath, err := flags.GetString("list")
	if err != nil {
		return nil, err
	}
	targets := append([]string(nil), args...)
	if listPath != "" {
		listed, err := readTargetList(listPath)
		if err != nil {
			return nil, err
		}
		targets = append(targets, listed...)
	}
	if len(targets) == 0 {
		return nil, errors.New("no targets provided (specify one or more URLs as arguments or with --list)")
	}
	cfg.Targets = targets

	return cfg, nil
}

// loadSiteConfigs loads the configuration file. A path given explicitly
// must exist; without one, a missing file yields an empty configuration.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	sites, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return sites, nil
}

// readTargetList reads one URL per line, ignoring blank lines and lines
// starting with #.
func readTargetList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open target list: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	return targets, nil
}

// setupLogger creates a redacting structured logger.
func setupLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return pmlog.NewLogger(w, verbose), nil
	case "json":
		return pmlog.NewJSONLogger(w, verbose), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (use text or json)", format)
	}
}

// lockedWriter serializes writes of concurrently finishing runs.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// runGet mirrors every target of cfg and prints one report per run.
func runGet(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger, verbose bool) error {
	targets := cfg.AllTargets()
	logger.Info("starting mirror",
		"targets", targets,
		"batchSize", cfg.BatchSize,
		"crawl", cfg.Crawl,
		"cache", cfg.CacheEnabled,
	)

	var db *database.CacheDB
	if cfg.CacheEnabled {
		var err error
		db, err = database.Open(cfg.CacheDirectory(), database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open cache database: %w", err)
		}
		defer db.Close()
		logger.Info("cache database opened", "path", db.Path())
	}

	w := &lockedWriter{w: out}
	deps := pipeline.Deps{
		Logger:  logger,
		Out:     w,
		DB:      db,
		Version: getVersion(),
		Verbose: verbose,
	}

	if len(targets) > 1 {
		fmt.Fprintf(w, "Mirroring %d targets (concurrency: %d)...\n\n", len(targets), cfg.BatchSize)
	}
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(
		pipeline.NewMirrorFactory(cfg, deps),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	runs, err := bp.ProcessBatch(ctx, targets)

	if len(targets) > 1 {
		fmt.Fprintf(w, "\nMirrored %d targets in %s\n", len(targets), time.Since(startTime).Round(time.Millisecond))
	}
	if err != nil {
		return err
	}
	return failedRuns(runs)
}

// failedRuns returns an error naming the runs that ended with a root
// failure, or nil.
func failedRuns(runs []*model.Run) error {
	var failed []string
	for _, run := range runs {
		if run != nil && run.Error != "" {
			failed = append(failed, fmt.Sprintf("%s: %s", run.StartURL, run.Error))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d targets:\n  %s",
		errTargetsFailed, len(failed), len(runs), strings.Join(failed, "\n  "))
}
