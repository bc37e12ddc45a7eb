package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/pagemirror/internal/model"
)

// Writer defines the interface for run report output.
type Writer interface {
	// Write outputs the report of a finished run.
	Write(run *model.Run) (int, error)

	// WriteSummary outputs only the summary of a run.
	WriteSummary(s model.Summary) (int, error)
}

// MultiWriter writes reports to multiple writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a writer that writes to all provided writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write writes the report to all writers, stopping at the first error.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary writes the summary to all writers, stopping at the first error.
func (m *MultiWriter) WriteSummary(s model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(s)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// FileName returns the default report file name for a format, or ""
// for formats that are printed to the terminal.
func FileName(format string) string {
	switch strings.ToLower(format) {
	case "json":
		return "pagemirror-report.json"
	case "markdown":
		return "pagemirror-report.md"
	default:
		return ""
	}
}

// CreateFile creates path and its parent directories for a report.
func CreateFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // report path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, nil
}

// formatBytes renders a byte count for people.
func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// formatDuration rounds a duration for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

// statusText describes the overall outcome of a run.
func statusText(s model.Summary) string {
	switch {
	case s.Error != "":
		return "FAILED - " + s.Error
	case len(s.Problems) > 0:
		return fmt.Sprintf("Complete with %s problem(s)", humanize.Comma(int64(len(s.Problems))))
	default:
		return "Complete"
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
