package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/pagemirror/internal/model"
)

// SimpleWriter outputs reports in a human-readable text format.
// This is the default output format for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty includes sections even when they have no content.
	showEmpty bool

	// verbose lists every processed resource, not only problems.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures whether to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables the listing of every resource.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a new SimpleWriter that writes to the given output.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run report. In verbose mode every entry is listed.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	s := run.Summarize()
	var sb strings.Builder
	w.writeReport(&sb, s)
	if w.verbose {
		w.writeEntries(&sb, run.Snapshot())
	}
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs the run summary.
func (w *SimpleWriter) WriteSummary(s model.Summary) (int, error) {
	var sb strings.Builder
	w.writeReport(&sb, s)
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeReport(sb *strings.Builder, s model.Summary) {
	w.writeHeader(sb, s)
	w.writeOutcomes(sb, s)
	w.writeKinds(sb, s)
	w.writeProblems(sb, s)
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        PAGEMIRROR REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Start URL:  %s\n", s.StartURL)
	fmt.Fprintf(sb, "Project:    %s\n", s.Project)
	fmt.Fprintf(sb, "Run ID:     %s\n", s.RunID)
	fmt.Fprintf(sb, "Started:    %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:   %s\n", formatDuration(s.Duration))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(s))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeOutcomes(sb *strings.Builder, s model.Summary) {
	writeSection(sb, "RESOURCES")

	for _, st := range model.AllStatuses {
		n := s.Count(st)
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-12s %s\n", strings.ToUpper(st.String())+":", humanize.Comma(int64(n)))
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  %-12s %s resources, %s written\n", "TOTAL:", humanize.Comma(int64(s.Total)), formatBytes(s.Bytes))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeKinds(sb *strings.Builder, s model.Summary) {
	if len(s.Kinds) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "BY KIND")

	kinds := make([]string, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(sb, "  %-12s %s\n", k+":", humanize.Comma(int64(s.Kinds[k])))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeProblems(sb *strings.Builder, s model.Summary) {
	if len(s.Problems) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "PROBLEMS")

	if len(s.Problems) == 0 {
		sb.WriteString("  No problems\n\n")
		return
	}
	for _, e := range s.Problems {
		fmt.Fprintf(sb, "  [%s] %s\n", e.Status, e.URL)
		if e.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", e.Error)
		}
		if e.Path != "" {
			fmt.Fprintf(sb, "    Path:  %s\n", e.Path)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeEntries(sb *strings.Builder, entries []model.Entry) {
	writeSection(sb, "ALL RESOURCES")

	sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	for _, e := range entries {
		fmt.Fprintf(sb, "  %-11s %-12s %8s  %s\n", e.Status, e.Kind, formatBytes(e.Bytes), e.URL)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by pagemirror\n")
	sb.WriteString("https://github.com/nao1215/pagemirror\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
