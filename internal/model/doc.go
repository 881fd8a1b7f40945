// Package model defines the core data structures used throughout reposcan.
//
// This package contains the following main types:
//   - RepositoryEntry: One repository identifier read from the list file
//   - RepositoryResult: The fetch status and matches of one repository
//   - MatchRecord: One reported occurrence of a category pattern
//   - ScanReport: The run-level aggregate written to the report files
//   - Aggregator: Accumulates results into a ScanReport
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The fetcher, matcher, pipeline and report packages all use
// these types, so centralizing them prevents import cycles.
package model
