// Package report provides run report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a pie chart
//
// Report data lives in the model package; writers only render a
// model.Run or its model.Summary, so new formats never touch the run
// bookkeeping.
package report
