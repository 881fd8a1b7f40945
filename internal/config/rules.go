package config

import (
	"slices"
	"strings"

	regexp "github.com/wasilibs/go-re2"
)

// Pattern match modes for a category.
const (
	// ModeRegex treats each pattern as a regular expression. This is the default.
	ModeRegex = "regex"

	// ModeLiteral matches each pattern as plain text; regex metacharacters
	// in the pattern have no special meaning.
	ModeLiteral = "literal"

	// ModeWord matches each pattern as plain text on word boundaries,
	// so "ass" does not match "class".
	ModeWord = "word"
)

// DefaultBuiltinCategory is the category name used for findings of the
// built-in secret rules when the document does not name one.
const DefaultBuiltinCategory = "leaked_secrets"

// Category is a named group of patterns representing one kind of content to flag.
type Category struct {
	// Description is a human-readable explanation shown in reports.
	Description string `json:"description" yaml:"description" toml:"description"`

	// Patterns are searched for on every line, in order.
	Patterns []string `json:"patterns" yaml:"patterns" toml:"patterns"`

	// Mode selects how patterns are interpreted: regex (default), literal or word.
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode"`

	// IgnoreCase makes every pattern of the category case-insensitive.
	IgnoreCase bool `json:"ignore_case,omitempty" yaml:"ignore_case,omitempty" toml:"ignore_case"`

	// Builtin marks the category fed by the built-in secret rules.
	// It is set by the loader, never read from the document.
	Builtin bool `json:"-" yaml:"-" toml:"-"`
}

// Expressions returns the regular expression source for each pattern,
// with the category's mode and case folding applied.
func (c Category) Expressions() []string {
	exprs := make([]string, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		switch c.Mode {
		case ModeLiteral:
			p = regexp.QuoteMeta(p)
		case ModeWord:
			p = `\b` + regexp.QuoteMeta(p) + `\b`
		}
		if c.IgnoreCase {
			p = "(?i)" + p
		}
		exprs = append(exprs, p)
	}
	return exprs
}

// BuiltinSecrets enables the gitleaks default rule set as an extra category.
type BuiltinSecrets struct {
	// Enabled turns the built-in rules on.
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`

	// Category is the category name findings are reported under.
	Category string `json:"category,omitempty" yaml:"category,omitempty" toml:"category"`

	// Description is shown for the category in reports.
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description"`
}

// ScanConfig is the rule document: what to look for and where.
// It is immutable once loaded and shared read-only by every scan.
type ScanConfig struct {
	// Categories maps a category name to its patterns.
	Categories map[string]Category `json:"categories" yaml:"categories" toml:"categories"`

	// FileExtensions lists the file name suffixes that are scanned, e.g. ".js".
	FileExtensions []string `json:"file_extensions" yaml:"file_extensions" toml:"file_extensions"`

	// ExcludeDirs lists directory names (or globs) skipped at any depth.
	ExcludeDirs []string `json:"exclude_dirs" yaml:"exclude_dirs" toml:"exclude_dirs"`

	// ExcludeFiles lists file names or relative path globs that are skipped.
	ExcludeFiles []string `json:"exclude_files" yaml:"exclude_files" toml:"exclude_files"`

	// IgnoreLinePatterns suppress a match when they also match the line.
	// They are case-sensitive regular expressions.
	IgnoreLinePatterns []string `json:"ignore_line_patterns" yaml:"ignore_line_patterns" toml:"ignore_line_patterns"`

	// BuiltinSecrets optionally adds the gitleaks default rules.
	BuiltinSecrets BuiltinSecrets `json:"builtin_secrets" yaml:"builtin_secrets" toml:"builtin_secrets"`

	// Source records where the document was loaded from, for report metadata.
	Source string `json:"-" yaml:"-" toml:"-"`
}

// CategoryNames returns the category names in sorted order.
// Scanning and reporting iterate categories in this order so output is stable.
func (sc *ScanConfig) CategoryNames() []string {
	names := make([]string, 0, len(sc.Categories))
	for name := range sc.Categories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// PatternCount returns the total number of patterns across all categories.
func (sc *ScanConfig) PatternCount() int {
	total := 0
	for _, c := range sc.Categories {
		total += len(c.Patterns)
	}
	return total
}

// normalize fills in defaults and canonicalizes file extensions.
func (sc *ScanConfig) normalize() {
	for i, ext := range sc.FileExtensions {
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		sc.FileExtensions[i] = ext
	}
	sc.FileExtensions = slices.DeleteFunc(sc.FileExtensions, func(s string) bool { return s == "" })

	for name, c := range sc.Categories {
		if c.Mode == "" {
			c.Mode = ModeRegex
		}
		sc.Categories[name] = c
	}

	if sc.BuiltinSecrets.Enabled {
		if sc.BuiltinSecrets.Category == "" {
			sc.BuiltinSecrets.Category = DefaultBuiltinCategory
		}
		desc := sc.BuiltinSecrets.Description
		if desc == "" {
			desc = "Secrets detected by the gitleaks default rule set"
		}
		c := sc.Categories[sc.BuiltinSecrets.Category]
		c.Builtin = true
		if c.Description == "" {
			c.Description = desc
		}
		if c.Mode == "" {
			c.Mode = ModeRegex
		}
		sc.Categories[sc.BuiltinSecrets.Category] = c
	}
}
