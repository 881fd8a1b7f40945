package matcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar"
	"github.com/gabriel-vasile/mimetype"
	regexp "github.com/wasilibs/go-re2"

	"github.com/nao1215/reposcan/internal/config"
	"github.com/nao1215/reposcan/internal/model"
)

const (
	// sniffSize is how much of a file is inspected to decide if it is binary.
	sniffSize = 3072

	// maxLineSize caps a single line. Longer lines stop the file's scan
	// with a warning; minified bundles are the usual cause.
	maxLineSize = 1024 * 1024
)

// compiledPattern is one category pattern ready for matching.
type compiledPattern struct {
	source string
	re     *regexp.Regexp
}

// compiledCategory holds the compiled patterns of one category.
type compiledCategory struct {
	name     string
	patterns []compiledPattern
	builtin  bool
}

// Result is the outcome of scanning one working copy.
type Result struct {
	// Matches are the match records in scan order.
	Matches []model.MatchRecord

	// Errors are per-file problems that did not stop the scan.
	Errors []*FileError

	// FilesScanned counts files whose content was searched.
	FilesScanned int
}

// Matcher searches working copies for configured patterns.
// It is immutable after New and safe for concurrent use.
type Matcher struct {
	categories   []compiledCategory
	ignore       []*regexp.Regexp
	extensions   []string
	excludeDirs  []string
	excludeFiles []string
	maxFileSize  int64
	secrets      bool
	logger       *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(m *Matcher) {
		m.maxFileSize = n
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// New compiles the rules into a Matcher.
// Categories are evaluated in sorted name order and patterns in document order.
func New(rules *config.ScanConfig, opts ...Option) (*Matcher, error) {
	m := &Matcher{
		extensions:   make([]string, 0, len(rules.FileExtensions)),
		excludeDirs:  rules.ExcludeDirs,
		excludeFiles: rules.ExcludeFiles,
		maxFileSize:  config.DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	for _, ext := range rules.FileExtensions {
		m.extensions = append(m.extensions, strings.ToLower(ext))
	}

	for _, name := range rules.CategoryNames() {
		cat := rules.Categories[name]
		cc := compiledCategory{name: name, builtin: cat.Builtin}
		for i, expr := range cat.Expressions() {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("%w: category %q: pattern %q: %w", config.ErrInvalidRules, name, cat.Patterns[i], err)
			}
			cc.patterns = append(cc.patterns, compiledPattern{source: cat.Patterns[i], re: re})
		}
		if cat.Builtin {
			m.secrets = true
		}
		m.categories = append(m.categories, cc)
	}

	for _, p := range rules.IgnoreLinePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: ignore pattern %q: %w", config.ErrInvalidRules, p, err)
		}
		m.ignore = append(m.ignore, re)
	}

	if m.secrets {
		// Fail at construction rather than on the first repository.
		if _, err := loadSecretRules(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Scan walks root and returns every match.
// Per-file problems are collected in Result.Errors; an error is returned
// only when root itself cannot be walked or ctx is cancelled.
func (m *Matcher) Scan(ctx context.Context, root string) (*Result, error) {
	res := &Result{Matches: make([]model.MatchRecord, 0)}

	var secrets *secretDetector
	if m.secrets {
		d, err := newSecretDetector()
		if err != nil {
			return nil, err
		}
		secrets = d
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if walkErr != nil {
			if path == root {
				return walkErr
			}
			res.Errors = append(res.Errors, &FileError{Path: rel, Err: walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && m.skipDir(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !m.wantFile(d.Name(), rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			res.Errors = append(res.Errors, &FileError{Path: rel, Err: err})
			return nil
		}
		if info.Size() > m.maxFileSize {
			res.Errors = append(res.Errors, &FileError{
				Path: rel,
				Err:  fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size()),
			})
			return nil
		}

		scanned, err := m.scanFile(path, rel, secrets, res)
		if err != nil {
			res.Errors = append(res.Errors, &FileError{Path: rel, Err: err})
		}
		if scanned {
			res.FilesScanned++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// skipDir reports whether a directory is excluded.
// .git is always skipped.
func (m *Matcher) skipDir(name, rel string) bool {
	if name == ".git" {
		return true
	}
	return matchAny(m.excludeDirs, name, rel)
}

// wantFile reports whether a file passes the extension and exclusion filters.
func (m *Matcher) wantFile(name, rel string) bool {
	lower := strings.ToLower(name)
	ok := false
	for _, ext := range m.extensions {
		if strings.HasSuffix(lower, ext) {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}
	return !matchAny(m.excludeFiles, name, rel)
}

// matchAny reports whether any glob matches the base name or the
// relative path.
func matchAny(globs []string, name, rel string) bool {
	for _, g := range globs {
		if g == name || g == rel {
			return true
		}
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// scanFile searches one file line by line. It reports whether the content
// was searched; binary files are skipped silently.
func (m *Matcher) scanFile(path, rel string, secrets *secretDetector, res *Result) (bool, error) {
	f, err := os.Open(path) //nolint:gosec // Path comes from walking the working copy
	if err != nil {
		return false, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)
	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return false, err
	}
	if isBinary(head) {
		m.logger.Debug("skipping binary file", "file", rel)
		return false, nil
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		res.Matches = append(res.Matches, m.matchLine(rel, lineNo, line, secrets)...)
	}
	if err := scanner.Err(); err != nil {
		return true, fmt.Errorf("line %d: %w", lineNo+1, err)
	}
	return true, nil
}

// matchLine returns the records for one line.
// Each (category, pattern) pair that matches yields one record, and an
// ignore pattern on the line suppresses all of them.
func (m *Matcher) matchLine(rel string, lineNo int, line string, secrets *secretDetector) []model.MatchRecord {
	var records []model.MatchRecord
	text := strings.TrimSpace(line)

	for _, cat := range m.categories {
		for _, p := range cat.patterns {
			loc := p.re.FindStringIndex(line)
			if loc == nil {
				continue
			}
			records = append(records, model.MatchRecord{
				Category:    cat.name,
				File:        rel,
				Line:        lineNo,
				Text:        text,
				Pattern:     p.source,
				MatchedText: line[loc[0]:loc[1]],
			})
		}
		if cat.builtin && secrets != nil {
			for _, f := range secrets.findLine(line) {
				records = append(records, model.MatchRecord{
					Category:    cat.name,
					File:        rel,
					Line:        lineNo,
					Text:        text,
					Pattern:     f.ruleID,
					MatchedText: f.match,
				})
			}
		}
	}

	if len(records) > 0 && m.ignored(line) {
		return nil
	}
	return records
}

// ignored reports whether the line matches an ignore pattern.
func (m *Matcher) ignored(line string) bool {
	for _, re := range m.ignore {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// isBinary reports whether the sniffed head of a file is not text.
// Any type descending from text/plain counts as text; an empty file is text.
// Source files can begin with a binary signature by accident ("MZ" for
// one), so a head mimetype rejects is still text when it is valid UTF-8
// without NUL or other non-whitespace control bytes.
func isBinary(head []byte) bool {
	for mt := mimetype.Detect(head); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return false
		}
	}
	return !looksLikeText(head)
}

// looksLikeText checks head byte by byte. A rune cut off at the end of
// the sniffed head is allowed.
func looksLikeText(head []byte) bool {
	for i := 0; i < len(head); {
		r, size := utf8.DecodeRune(head[i:])
		if r == utf8.RuneError && size <= 1 {
			return !utf8.FullRune(head[i:])
		}
		if r < 0x20 || r == 0x7f {
			switch r {
			case '\t', '\n', '\r', '\v', '\f', 0x1b:
			default:
				return false
			}
		}
		i += size
	}
	return true
}
