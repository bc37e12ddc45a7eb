package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/pagemirror/internal/config"
	"github.com/nao1215/pagemirror/internal/database"
	"github.com/nao1215/pagemirror/internal/model"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [project]",
		Short: "List earlier mirroring runs",
		Long: `History lists the runs recorded in the cache database, newest first.
Runs are recorded when get is called with --cache.

Examples:
  # Show the last 20 runs of every project
  pagemirror history

  # Show every run of one project
  pagemirror history example.com --limit 0`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of runs to show (0 for all)")
	cmd.Flags().String("cache-dir", "",
		"Directory of the cache database (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	dir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return err
	}
	if dir == "" {
		dir = config.XDGDataDir()
	}

	var project string
	if len(args) > 0 {
		project = args[0]
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(filepath.Join(dir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No runs recorded yet (run get with --cache).")
		return nil
	}

	db, err := database.Open(dir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), project, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	writeHistory(out, runs)

	if project != "" {
		n, err := db.CountAssets(cmd.Context(), project)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s assets cached for %s\n", humanize.Comma(int64(n)), project)
	}
	return nil
}

// writeHistory prints one line per run.
func writeHistory(w io.Writer, runs []database.RunRecord) {
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "FAILED: " + r.Error
		}
		fmt.Fprintf(w, "%s  %-20s %s\n", r.StartedAt.Local().Format(time.DateTime), r.Project, r.StartURL)
		fmt.Fprintf(w, "    %s resources, %s in %s  [%s]  %s\n",
			humanize.Comma(int64(r.Total)),
			humanize.Bytes(uint64(max(r.Bytes, 0))), //nolint:gosec // clamped to non-negative
			r.Duration.Round(time.Millisecond),
			formatCounts(r.Counts),
			status,
		)
	}
}

// formatCounts renders outcome counts in display order, skipping zeros.
func formatCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	seen := make(map[string]bool, len(counts))
	for _, st := range model.AllStatuses {
		name := st.String()
		seen[name] = true
		if n := counts[name]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", name, n))
		}
	}
	var rest []string
	for name, n := range counts {
		if !seen[name] && n > 0 {
			rest = append(rest, fmt.Sprintf("%s=%d", name, n))
		}
	}
	slices.Sort(rest)
	return strings.Join(append(parts, rest...), " ")
}
