package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/nao1215/reposcan/internal/config"
	"github.com/nao1215/reposcan/internal/model"
	"github.com/nao1215/reposcan/internal/repolist"
	"github.com/nao1215/reposcan/internal/report"
)

const testRules = `categories:
  api_keys:
    description: API keys and tokens
    patterns:
      - 'SECRET_TOKEN'
  profanity:
    mode: word
    ignore_case: true
    patterns: [darn]
file_extensions: [.js]
exclude_dirs: [node_modules]
ignore_line_patterns: ['ignore-scan']
`

// newSourceRepo creates a local repository with one commit containing files.
func newSourceRepo(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatal(err)
		}
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return dir
}

// scanFixture holds the paths of a ready-to-scan workspace.
type scanFixture struct {
	list, rules, cloneDir, resultsDir string
}

func newScanFixture(t *testing.T, repos ...string) scanFixture {
	t.Helper()

	dir := t.TempDir()
	fx := scanFixture{
		list:       filepath.Join(dir, "repos.txt"),
		rules:      filepath.Join(dir, "rules.yaml"),
		cloneDir:   filepath.Join(dir, "cloned"),
		resultsDir: filepath.Join(dir, "results"),
	}
	if err := os.WriteFile(fx.list, []byte(strings.Join(repos, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fx.rules, []byte(testRules), 0o600); err != nil {
		t.Fatal(err)
	}
	return fx
}

func (fx scanFixture) args(extra ...string) []string {
	args := []string{
		"scan",
		"-l", fx.list,
		"-c", fx.rules,
		"--clone-dir", fx.cloneDir,
		"--results-dir", fx.resultsDir,
		"--env-file", "",
		"-n", "run",
		"--depth", "0", // local clones do not support shallow fetches
	}
	return append(args, extra...)
}

func configJS() string {
	lines := make([]string, 0, 13)
	for i := 1; i <= 11; i++ {
		lines = append(lines, "// line")
	}
	lines = append(lines, `const SECRET_TOKEN = "abc123";`)
	lines = append(lines, `const SECRET_TOKEN_OLD = 1; // ignore-scan`)
	return strings.Join(lines, "\n") + "\n"
}

// TestScanCmd tests the scan command end to end against local repositories.
func TestScanCmd(t *testing.T) {
	t.Parallel()

	t.Run("scans, aggregates and writes reports", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{
			"config.js":                 configJS(),
			"README.md":                 "SECRET_TOKEN in docs is not scanned\n",
			"node_modules/lib/index.js": "SECRET_TOKEN\n",
			"src/app.js":                "// Darn it\n",
		})
		missing := filepath.Join(t.TempDir(), "does-not-exist")
		fx := newScanFixture(t, src, missing)

		stdout, _, err := executeCmd(t, fx.args("-m")...)
		if err != nil {
			t.Fatalf("expected exit 0 despite failed fetch, got %v", err)
		}
		for _, want := range []string{"[1/2]", "[2/2]", "skipped", "SCAN COMPLETE", "run.json", "run.csv", "run.md"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected %q in output\n%s", want, stdout)
			}
		}

		got, err := report.ReadJSON(filepath.Join(fx.resultsDir, "run.json"))
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if got.Processed != 1 || got.Failed != 1 {
			t.Errorf("expected 1 processed and 1 failed, got %d/%d", got.Processed, got.Failed)
		}
		if got.Totals["api_keys"] != 1 || got.Totals["profanity"] != 1 {
			t.Errorf("unexpected totals %v", got.Totals)
		}

		first := got.Repositories[0]
		if first.Status != model.FetchCloned {
			t.Errorf("expected cloned, got %s", first.Status)
		}
		var found bool
		for _, m := range first.Matches {
			if m.Category == "api_keys" {
				found = true
				if m.File != "config.js" || m.Line != 12 || m.Text != `const SECRET_TOKEN = "abc123";` {
					t.Errorf("unexpected match %+v", m)
				}
			}
		}
		if !found {
			t.Error("expected api_keys match")
		}
		if second := got.Repositories[1]; !second.Failed() || len(second.Matches) != 0 || second.Reason == "" {
			t.Errorf("expected failed second repository, got %+v", second)
		}

		csvData, err := os.ReadFile(filepath.Join(fx.resultsDir, "run.csv"))
		if err != nil {
			t.Fatal(err)
		}
		if lines := strings.Split(strings.TrimSpace(string(csvData)), "\n"); len(lines) != 3 {
			t.Errorf("expected header and 2 rows, got %d", len(lines))
		}
	})

	t.Run("second run reuses the working copy", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"config.js": configJS()})
		fx := newScanFixture(t, src)

		if _, _, err := executeCmd(t, fx.args()...); err != nil {
			t.Fatalf("first run: %v", err)
		}
		if _, _, err := executeCmd(t, fx.args()...); err != nil {
			t.Fatalf("second run: %v", err)
		}

		got, err := report.ReadJSON(filepath.Join(fx.resultsDir, "run.json"))
		if err != nil {
			t.Fatal(err)
		}
		if got.Repositories[0].Status != model.FetchReused || got.Totals["api_keys"] != 1 {
			t.Errorf("expected reused with 1 match, got %+v", got.Repositories[0])
		}
	})

	t.Run("duplicate entries are reported twice", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"config.js": configJS()})
		fx := newScanFixture(t, src, src)

		if _, _, err := executeCmd(t, fx.args("-b", "2")...); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := report.ReadJSON(filepath.Join(fx.resultsDir, "run.json"))
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Repositories) != 2 || got.Totals["api_keys"] != 2 {
			t.Errorf("expected two results with 2 matches, got %d results, totals %v", len(got.Repositories), got.Totals)
		}
	})

	t.Run("json list from list-org is accepted", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"config.js": configJS()})
		fx := newScanFixture(t)
		fx.list = filepath.Join(filepath.Dir(fx.rules), "repos.json")
		f, err := os.Create(fx.list)
		if err != nil {
			t.Fatal(err)
		}
		if err := repolist.WriteJSON(f, []model.RepositoryEntry{{URL: src, Name: "app"}}); err != nil {
			t.Fatal(err)
		}
		_ = f.Close()

		stdout, _, err := executeCmd(t, fx.args()...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "[1/1] app: cloned") {
			t.Errorf("expected display name in progress\n%s", stdout)
		}
	})
}

// TestScanCmdErrors tests setup failures that must exit non-zero.
func TestScanCmdErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing list flag", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCmd(t, "scan", "--env-file", "")
		if !errors.Is(err, config.ErrNoListFile) {
			t.Errorf("expected ErrNoListFile, got %v", err)
		}
	})

	t.Run("list file not found", func(t *testing.T) {
		t.Parallel()

		fx := newScanFixture(t)
		fx.list = filepath.Join(t.TempDir(), "nope.txt")
		_, _, err := executeCmd(t, fx.args()...)
		if !errors.Is(err, repolist.ErrListNotFound) {
			t.Errorf("expected ErrListNotFound, got %v", err)
		}
	})

	t.Run("explicit rules file not found", func(t *testing.T) {
		t.Parallel()

		fx := newScanFixture(t, "x")
		fx.rules = filepath.Join(t.TempDir(), "missing.yaml")
		_, _, err := executeCmd(t, fx.args()...)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid rules", func(t *testing.T) {
		t.Parallel()

		fx := newScanFixture(t, "x")
		if err := os.WriteFile(fx.rules, []byte("categories:\n  bad:\n    patterns: ['(']\nfile_extensions: [.js]\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, _, err := executeCmd(t, fx.args()...)
		if !errors.Is(err, config.ErrInvalidRules) {
			t.Errorf("expected ErrInvalidRules, got %v", err)
		}
	})

	t.Run("invalid batch size", func(t *testing.T) {
		t.Parallel()

		fx := newScanFixture(t, "x")
		_, _, err := executeCmd(t, fx.args("-b", "0")...)
		if !errors.Is(err, config.ErrInvalidBatchSize) {
			t.Errorf("expected ErrInvalidBatchSize, got %v", err)
		}
	})

	t.Run("unwritable results dir", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"config.js": configJS()})
		fx := newScanFixture(t, src)
		if err := os.WriteFile(fx.resultsDir, []byte("file, not dir"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, _, err := executeCmd(t, fx.args()...)
		if !errors.Is(err, report.ErrWrite) {
			t.Errorf("expected ErrWrite, got %v", err)
		}
	})

	t.Run("explicit env file not found", func(t *testing.T) {
		t.Parallel()

		fx := newScanFixture(t, "x")
		args := append(fx.args(), "--env-file", filepath.Join(t.TempDir(), "missing.env"))
		if _, _, err := executeCmd(t, args...); err == nil {
			t.Error("expected error")
		}
	})
}

// TestBuildConfig tests flag to Config mapping.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()
	if err := cmd.ParseFlags([]string{"-l", "r.txt", "-b", "3", "--depth", "0", "--ssh", "--clone-rate", "0.5"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListFile != "r.txt" || cfg.BatchSize != 3 || cfg.CloneDepth != 0 || !cfg.UseSSH || cfg.CloneRate != 0.5 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.OutputBase != config.DefaultOutputBase || cfg.CloneDir != config.DefaultCloneDir || cfg.ResultsDir != config.DefaultResultsDir {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

// TestBuildConfigTokenFromEnv tests the token environment fallback.
// It cannot run in parallel because it sets the environment.
func TestBuildConfigTokenFromEnv(t *testing.T) {
	t.Setenv(config.TokenEnv, "from-env")

	cmd := NewScanCmd()
	if err := cmd.ParseFlags([]string{"-l", "r.txt"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Token != "from-env" {
		t.Errorf("expected token from env, got %q", cfg.Token)
	}

	cmd = NewScanCmd()
	if err := cmd.ParseFlags([]string{"-l", "r.txt", "--token", "from-flag"}); err != nil {
		t.Fatal(err)
	}
	if cfg, _ = buildConfig(cmd); cfg.Token != "from-flag" {
		t.Errorf("expected flag to win, got %q", cfg.Token)
	}
}

// TestLoadRules tests rule discovery fallbacks.
func TestLoadRules(t *testing.T) {
	t.Parallel()

	t.Run("explicit path", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "r.yaml")
		if err := os.WriteFile(path, []byte(testRules), 0o600); err != nil {
			t.Fatal(err)
		}
		rules, err := loadRules(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		summary := configSummary(rules)
		if summary.Source != path || len(summary.Categories) != 2 || summary.Descriptions["api_keys"] != "API keys and tokens" {
			t.Errorf("unexpected summary %+v", summary)
		}
		if summary.PatternCount != 2 || len(summary.FileExtensions) != 1 {
			t.Errorf("unexpected counts %+v", summary)
		}
	})
}
