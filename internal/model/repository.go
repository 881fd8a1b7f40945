package model

import "time"

// RepositoryEntry is a single repository identifier from the list file.
// Name and Description are only filled from tabular or JSON lists.
type RepositoryEntry struct {
	// URL is the clone identifier: an https or ssh URL, or a local path.
	URL string `json:"url"`

	// Name is an optional display name.
	Name string `json:"name,omitempty"`

	// Description is optional free text from the list.
	Description string `json:"description,omitempty"`
}

// DisplayName returns Name when present, otherwise the URL.
func (e RepositoryEntry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.URL
}

// FetchStatus describes how the working copy of a repository was obtained.
type FetchStatus string

const (
	// FetchCloned means the repository was freshly cloned in this run.
	FetchCloned FetchStatus = "cloned"

	// FetchReused means an existing working copy was found and reused.
	FetchReused FetchStatus = "reused"

	// FetchFailed means no working copy could be obtained.
	FetchFailed FetchStatus = "failed"
)

// OK reports whether a working copy is available for scanning.
func (s FetchStatus) OK() bool {
	return s == FetchCloned || s == FetchReused
}

// String returns the status name.
func (s FetchStatus) String() string {
	return string(s)
}

// MatchRecord is one reported occurrence of a category pattern at a
// specific file and line.
type MatchRecord struct {
	// Category is the configured category name the pattern belongs to.
	Category string `json:"category"`

	// File is the slash-separated path relative to the repository root.
	File string `json:"file"`

	// Line is the 1-indexed line number.
	Line int `json:"line"`

	// Text is the matching line with surrounding whitespace trimmed.
	Text string `json:"text"`

	// Pattern is the configured pattern that matched, or the gitleaks
	// rule ID for built-in findings.
	Pattern string `json:"pattern"`

	// MatchedText is the substring of the line that matched.
	MatchedText string `json:"matched_text,omitempty"`
}

// RepositoryResult is the outcome of fetching and scanning one repository.
// It is owned by a single pipeline run until handed to the Aggregator.
type RepositoryResult struct {
	// Index is the position of the entry in the input list.
	Index int `json:"-"`

	// Entry is the list entry this result belongs to.
	Entry RepositoryEntry `json:"entry"`

	// LocalPath is the working copy directory. Empty when the fetch failed.
	LocalPath string `json:"local_path,omitempty"`

	// Status is how the working copy was obtained.
	Status FetchStatus `json:"status"`

	// Reason explains a failed fetch.
	Reason string `json:"reason,omitempty"`

	// Matches are the match records in scan order.
	Matches []MatchRecord `json:"matches"`

	// Warnings are per-file scan problems, e.g. unreadable files.
	// A warning never fails the repository.
	Warnings []string `json:"warnings,omitempty"`

	// FilesScanned counts the files whose content was searched.
	FilesScanned int `json:"files_scanned"`

	// Duration is the wall time spent fetching and scanning.
	Duration time.Duration `json:"duration"`
}

// NewRepositoryResult creates a result for the entry at position index.
func NewRepositoryResult(index int, entry RepositoryEntry) *RepositoryResult {
	return &RepositoryResult{
		Index:   index,
		Entry:   entry,
		Matches: make([]MatchRecord, 0),
	}
}

// Fail marks the result as a failed fetch.
// Any matches are discarded so a failed repository never contributes to totals.
func (r *RepositoryResult) Fail(reason string) {
	r.Status = FetchFailed
	r.Reason = reason
	r.LocalPath = ""
	r.Matches = make([]MatchRecord, 0)
}

// Failed reports whether the fetch failed.
func (r *RepositoryResult) Failed() bool {
	return r.Status == FetchFailed
}

// AddWarning records a recoverable scan problem.
func (r *RepositoryResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// CategoryCounts returns the number of matches per category.
func (r *RepositoryResult) CategoryCounts() map[string]int {
	counts := make(map[string]int)
	for _, m := range r.Matches {
		counts[m.Category]++
	}
	return counts
}

// MatchesByCategory groups the matches by category, keeping scan order
// within each group.
func (r *RepositoryResult) MatchesByCategory() map[string][]MatchRecord {
	groups := make(map[string][]MatchRecord)
	for _, m := range r.Matches {
		groups[m.Category] = append(groups[m.Category], m)
	}
	return groups
}
