package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/nao1215/reposcan/internal/model"
)

// DiffEntry is a match that appears in only one of two reports.
type DiffEntry struct {
	Repository string `json:"repository"`
	model.MatchRecord
}

// Diff classifies the matches of two runs over the same repositories.
type Diff struct {
	// New are matches present only in the newer report.
	New []DiffEntry `json:"new"`

	// Resolved are matches present only in the older report.
	Resolved []DiffEntry `json:"resolved"`

	// Unchanged counts matches present in both.
	Unchanged int `json:"unchanged"`

	// Unavailable lists repositories that failed to fetch in either run.
	// Their matches are left out because nothing can be said about them.
	Unavailable []string `json:"unavailable,omitempty"`
}

// matchKey identifies a match across runs. The line number is left out
// because unrelated edits above a finding move it.
type matchKey struct {
	repository, category, file, pattern, text string
}

func keyOf(repo string, m model.MatchRecord) matchKey {
	return matchKey{repo, m.Category, m.File, m.Pattern, m.Text}
}

// Compare reports which matches appeared or disappeared between old and
// cur. Identical matches are counted, so a secret pasted twice and removed
// once shows one resolved entry.
func Compare(old, cur *model.ScanReport) *Diff {
	d := &Diff{
		New:         make([]DiffEntry, 0),
		Resolved:    make([]DiffEntry, 0),
		Unavailable: unavailable(old, cur),
	}
	skip := func(repo string) bool { return slices.Contains(d.Unavailable, repo) }

	remaining := make(map[matchKey]int)
	for _, r := range old.Repositories {
		if skip(r.Entry.URL) {
			continue
		}
		for _, m := range r.Matches {
			remaining[keyOf(r.Entry.URL, m)]++
		}
	}

	for _, r := range cur.Repositories {
		if skip(r.Entry.URL) {
			continue
		}
		for _, m := range r.Matches {
			k := keyOf(r.Entry.URL, m)
			if remaining[k] > 0 {
				remaining[k]--
				d.Unchanged++
				continue
			}
			d.New = append(d.New, DiffEntry{Repository: r.Entry.URL, MatchRecord: m})
		}
	}

	for _, r := range old.Repositories {
		if skip(r.Entry.URL) {
			continue
		}
		for _, m := range r.Matches {
			k := keyOf(r.Entry.URL, m)
			if remaining[k] > 0 {
				remaining[k]--
				d.Resolved = append(d.Resolved, DiffEntry{Repository: r.Entry.URL, MatchRecord: m})
			}
		}
	}
	return d
}

func unavailable(reports ...*model.ScanReport) []string {
	out := make([]string, 0)
	for _, report := range reports {
		for _, r := range report.Repositories {
			if r.Failed() && !slices.Contains(out, r.Entry.URL) {
				out = append(out, r.Entry.URL)
			}
		}
	}
	return out
}

// Changed reports whether any match was added or resolved.
func (d *Diff) Changed() bool {
	return len(d.New) > 0 || len(d.Resolved) > 0
}

// WriteDiffJSON writes d as indented JSON.
func WriteDiffJSON(w io.Writer, d *Diff) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// WriteDiffText writes a human-readable diff. New matches are prefixed
// with "+" and resolved ones with "-". Matched line content is not shown.
func WriteDiffText(w io.Writer, d *Diff, colored bool) error {
	add := color.New(color.FgRed)
	del := color.New(color.FgGreen)
	for _, c := range []*color.Color{add, del} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "New: %d  Resolved: %d  Unchanged: %d\n", len(d.New), len(d.Resolved), d.Unchanged)
	if !d.Changed() {
		sb.WriteString("No matches were added or resolved.\n")
	}
	for _, e := range d.New {
		sb.WriteString(add.Sprintf("+ %s %s:%d [%s]", e.Repository, e.File, e.Line, e.Category) + "\n")
	}
	for _, e := range d.Resolved {
		sb.WriteString(del.Sprintf("- %s %s:%d [%s]", e.Repository, e.File, e.Line, e.Category) + "\n")
	}
	for _, repo := range d.Unavailable {
		fmt.Fprintf(&sb, "? %s (not fetched in both runs)\n", repo)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
