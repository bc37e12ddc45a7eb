package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/pagemirror/internal/model"
)

// maxProblemRows bounds the problem table; the remaining problems are
// only counted.
const maxProblemRows = 200

// MarkdownWriter outputs run reports in GitHub Flavored Markdown.
// The report renders nicely on GitHub and in Markdown viewers, with an
// outcome table, a mermaid pie chart of resource kinds and alerts for
// failed runs.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a new MarkdownWriter.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	return w.WriteSummary(run.Summarize())
}

// WriteSummary outputs the run summary as Markdown.
func (w *MarkdownWriter) WriteSummary(s model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeOutcomes(md, s)
	w.writeKinds(md, s)
	w.writeProblems(md, s)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s model.Summary) {
	md.H1("pagemirror Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + s.StartURL + "`"},
			{"Project", s.Project},
			{"Run ID", "`" + s.RunID + "`"},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", formatDuration(s.Duration)},
			{"Status", w.getStatusText(s)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) getStatusText(s model.Summary) string {
	switch {
	case s.Error != "":
		return "❌ Failed - " + s.Error
	case len(s.Problems) > 0:
		return "⚠️ " + statusText(s)
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, s model.Summary) {
	md.H2("Resources")
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllStatuses)+1)
	for _, st := range model.AllStatuses {
		rows = append(rows, []string{st.String(), humanize.Comma(int64(s.Count(st)))})
	}
	rows = append(rows, []string{"**Total**", "**" + humanize.Comma(int64(s.Total)) + "** (" + formatBytes(s.Bytes) + ")"})

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, s)
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s model.Summary) {
	switch {
	case s.Error != "":
		md.Cautionf("The run failed: %s", s.Error)
	case s.Count(model.StatusFailed) > 0:
		md.Warningf("%d resource(s) could not be retrieved.", s.Count(model.StatusFailed))
	case s.Count(model.StatusDenied) > 0:
		md.Importantf("%d resource(s) were excluded by robots.txt.", s.Count(model.StatusDenied))
	case s.Count(model.StatusPlaceholder) > 0:
		md.Note("Some resources answered with an HTTP error and were saved as placeholders.")
	default:
		md.Tip("Every resource was mirrored.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeKinds(md *markdown.Markdown, s model.Summary) {
	if len(s.Kinds) == 0 {
		return
	}
	md.H2("Resource Kinds")
	md.PlainText("")

	kinds := make([]string, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Resources by Kind"),
		piechart.WithShowData(true),
	)
	for _, k := range kinds {
		chart.LabelAndIntValue(k, uint64(s.Kinds[k])) //nolint:gosec // counts are never negative
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeProblems(md *markdown.Markdown, s model.Summary) {
	md.H2("Problems")
	md.PlainText("")

	if len(s.Problems) == 0 {
		md.PlainText("No problems.")
		md.PlainText("")
		return
	}

	problems := s.Problems
	if len(problems) > maxProblemRows {
		problems = problems[:maxProblemRows]
	}

	rows := make([][]string, len(problems))
	for i, e := range problems {
		code := "-"
		if e.StatusCode != 0 {
			code = strconv.Itoa(e.StatusCode)
		}
		errText := e.Error
		if errText == "" {
			errText = "-"
		}
		rows[i] = []string{
			e.Status.String(),
			e.Kind,
			code,
			truncateString(e.URL, 80),
			truncateString(errText, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Kind", "HTTP", "URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	if rest := len(s.Problems) - len(problems); rest > 0 {
		md.PlainTextf("...and %d more.", rest)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pagemirror](https://github.com/nao1215/pagemirror)*")
}
