package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/pagemirror/internal/model"
)

// JSONWriter outputs reports in JSON format.
// Write emits the summary together with every entry; WriteSummary emits
// the summary alone.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printing with indentation.
	indent bool

	// indentPrefix is the prefix for each line when indenting.
	indentPrefix string

	// indentString is the indentation string (e.g., "  " or "\t").
	indentString string

	// version is the pagemirror version recorded in full reports.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with 2-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the pagemirror version in full reports.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a new JSONWriter that writes to the given output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the document written by JSONWriter.Write.
type JSONReport struct {
	// Version is the pagemirror version that produced the report.
	Version string `json:"version,omitempty"`

	// Summary contains the aggregated counts.
	Summary model.Summary `json:"summary"`

	// Entries lists every processed resource.
	Entries []model.Entry `json:"entries"`
}

// Write outputs the full run report.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	return w.writeJSON(JSONReport{
		Version: w.version,
		Summary: run.Summarize(),
		Entries: run.Snapshot(),
	})
}

// WriteSummary outputs the run summary.
func (w *JSONWriter) WriteSummary(s model.Summary) (int, error) {
	return w.writeJSON(s)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
