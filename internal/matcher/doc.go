// Package matcher searches a working copy for the patterns of a rule document.
//
// The scan walks the tree in lexical order, filters files by extension and
// exclusion globs, skips binary and oversized files, and matches every line
// against every pattern of every category. A line that also matches an
// ignore pattern is never reported.
//
// Design decision: Patterns are matched in-process with go-re2 instead of
// invoking an external search tool. RE2 keeps matching linear in the input
// size, so a hostile pattern or file cannot stall a scan, and results do
// not depend on which tool version is installed on the host.
package matcher
