// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - JSONWriter: nested document, repositories then categories then matches
//   - CSVWriter: one row per match for spreadsheets and grep
//   - MarkdownWriter: a shareable summary without matched line content
//   - SimpleWriter: the colored completion summary printed by `scan`
//
// WriteFiles persists a finished report exactly once. ReadJSON and ReadCSV
// load reports back for `convert` and `compare`.
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) to follow the single responsibility
// principle. This allows adding new output formats without modifying
// the core data structures.
package report
