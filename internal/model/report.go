package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ConfigSummary records which rules a run used.
type ConfigSummary struct {
	// Source is the rule document path, or "(bundled)".
	Source string `json:"source"`

	// Categories lists the category names in report order.
	Categories []string `json:"categories"`

	// Descriptions maps a category name to its description.
	Descriptions map[string]string `json:"descriptions,omitempty"`

	// PatternCount is the total number of configured patterns.
	PatternCount int `json:"pattern_count"`

	// FileExtensions are the scanned file suffixes.
	FileExtensions []string `json:"file_extensions"`

	// BuiltinSecrets is true when the gitleaks rules were enabled.
	BuiltinSecrets bool `json:"builtin_secrets"`
}

// ScanReport is the aggregate of one run.
// It is built incrementally by an Aggregator and written exactly once.
//
// Design decision: Repositories is an ordered list rather than a map keyed
// by identifier. The input list may contain the same identifier twice and
// each occurrence must be reported on its own.
type ScanReport struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is set by Finalize.
	FinishedAt time.Time `json:"finished_at"`

	// Config summarizes the rules used.
	Config ConfigSummary `json:"config"`

	// Repositories holds one result per list entry, in list order.
	Repositories []*RepositoryResult `json:"repositories"`

	// Totals maps every configured category to its match count across
	// all repositories. Categories without matches are present with 0.
	Totals map[string]int `json:"totals"`

	// Processed counts repositories that were fetched and scanned.
	Processed int `json:"processed"`

	// Failed counts repositories whose fetch failed.
	Failed int `json:"failed"`
}

// NewScanReport creates an empty report for a run using the given rules.
func NewScanReport(summary ConfigSummary) *ScanReport {
	totals := make(map[string]int, len(summary.Categories))
	for _, name := range summary.Categories {
		totals[name] = 0
	}
	return &ScanReport{
		RunID:        uuid.NewString(),
		StartedAt:    time.Now(),
		Config:       summary,
		Repositories: make([]*RepositoryResult, 0),
		Totals:       totals,
	}
}

// TotalMatches returns the number of matches across all categories.
func (r *ScanReport) TotalMatches() int {
	total := 0
	for _, n := range r.Totals {
		total += n
	}
	return total
}

// Categories returns the category names in report order: the configured
// order first, then any category only seen in results.
func (r *ScanReport) Categories() []string {
	names := slices.Clone(r.Config.Categories)
	extra := make([]string, 0)
	for name := range r.Totals {
		if !slices.Contains(names, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(names, extra...)
}

// Duration returns the run wall time, or zero before Finalize.
func (r *ScanReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Aggregator accumulates repository results into a ScanReport.
//
// An Aggregator is not safe for concurrent use. Callers that process
// repositories in parallel must funnel results through a single goroutine.
type Aggregator struct {
	report *ScanReport
}

// NewAggregator creates an aggregator that fills report.
func NewAggregator(report *ScanReport) *Aggregator {
	return &Aggregator{report: report}
}

// Add appends a result and updates the totals.
// A failed result is recorded but contributes no matches.
func (a *Aggregator) Add(result *RepositoryResult) {
	if result.Failed() {
		result.Matches = make([]MatchRecord, 0)
		a.report.Failed++
	} else {
		a.report.Processed++
	}
	for _, m := range result.Matches {
		a.report.Totals[m.Category]++
	}
	a.report.Repositories = append(a.report.Repositories, result)
}

// Len returns the number of results added so far.
func (a *Aggregator) Len() int {
	return len(a.report.Repositories)
}

// Finalize stamps the finish time and returns the report.
func (a *Aggregator) Finalize() *ScanReport {
	a.report.FinishedAt = time.Now()
	return a.report
}
