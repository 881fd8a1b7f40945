package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/nao1215/reposcan/internal/model"
)

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
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("failed to add file: %v", err)
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

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "cloned"), WithDepth(0), WithTimeout(time.Minute))
}

// TestFetch tests cloning, reuse and failure handling.
func TestFetch(t *testing.T) {
	t.Parallel()

	t.Run("clones then reuses the working copy", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"config.js": "const x = 1;\n"})
		f := newTestFetcher(t)
		entry := model.RepositoryEntry{URL: src}

		first, err := f.Fetch(context.Background(), entry)
		if err != nil {
			t.Fatalf("first fetch failed: %v", err)
		}
		if first.Status != model.FetchCloned {
			t.Errorf("expected cloned, got %s", first.Status)
		}
		if _, err := os.Stat(filepath.Join(first.Path, "config.js")); err != nil {
			t.Errorf("expected cloned file to exist: %v", err)
		}

		second, err := f.Fetch(context.Background(), entry)
		if err != nil {
			t.Fatalf("second fetch failed: %v", err)
		}
		if second.Status != model.FetchReused {
			t.Errorf("expected reused, got %s", second.Status)
		}
		if second.Path != first.Path {
			t.Errorf("expected same path, got %q and %q", first.Path, second.Path)
		}
	})

	t.Run("failed clone returns ErrFetch and leaves nothing behind", func(t *testing.T) {
		t.Parallel()

		f := newTestFetcher(t)
		missing := filepath.Join(t.TempDir(), "does-not-exist")

		_, err := f.Fetch(context.Background(), model.RepositoryEntry{URL: missing})
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
		if _, statErr := os.Stat(f.PathFor(missing)); !errors.Is(statErr, os.ErrNotExist) {
			t.Errorf("expected partial directory to be removed, stat error: %v", statErr)
		}
	})

	t.Run("existing non-repository directory is not overwritten", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"a.txt": "a"})
		f := newTestFetcher(t)
		dir := f.PathFor(src)
		if err := os.MkdirAll(dir, 0750); err != nil {
			t.Fatal(err)
		}
		keep := filepath.Join(dir, "keep.txt")
		if err := os.WriteFile(keep, []byte("mine"), 0600); err != nil {
			t.Fatal(err)
		}

		_, err := f.Fetch(context.Background(), model.RepositoryEntry{URL: src})
		if !errors.Is(err, ErrNotWorkingCopy) || !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrNotWorkingCopy wrapped in ErrFetch, got %v", err)
		}
		data, readErr := os.ReadFile(keep)
		if readErr != nil || string(data) != "mine" {
			t.Errorf("expected existing content to be untouched, got %q (%v)", data, readErr)
		}
	})

	t.Run("repository without a resolvable HEAD is not reused", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"a.txt": "a"})
		f := newTestFetcher(t)
		dir := f.PathFor(src)
		if _, err := git.PlainInit(dir, false); err != nil {
			t.Fatalf("failed to init repository: %v", err)
		}

		res, err := f.Fetch(context.Background(), model.RepositoryEntry{URL: src})
		if !errors.Is(err, ErrNotWorkingCopy) || !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrNotWorkingCopy wrapped in ErrFetch, got %v", err)
		}
		if res.Status == model.FetchReused {
			t.Error("expected the broken working copy not to be reused")
		}
		if _, statErr := os.Stat(filepath.Join(dir, ".git")); statErr != nil {
			t.Errorf("expected existing repository to be left in place: %v", statErr)
		}
	})

	t.Run("empty existing directory is cloned into", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"a.txt": "a"})
		f := newTestFetcher(t)
		if err := os.MkdirAll(f.PathFor(src), 0750); err != nil {
			t.Fatal(err)
		}

		res, err := f.Fetch(context.Background(), model.RepositoryEntry{URL: src})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status != model.FetchCloned {
			t.Errorf("expected cloned, got %s", res.Status)
		}
	})

	t.Run("concurrent duplicates clone once", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"a.txt": "a"})
		f := newTestFetcher(t)
		entry := model.RepositoryEntry{URL: src}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			statuses []model.FetchStatus
		)
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := f.Fetch(context.Background(), entry)
				if err != nil {
					t.Errorf("fetch failed: %v", err)
					return
				}
				mu.Lock()
				statuses = append(statuses, res.Status)
				mu.Unlock()
			}()
		}
		wg.Wait()

		cloned, reused := 0, 0
		for _, s := range statuses {
			switch s {
			case model.FetchCloned:
				cloned++
			case model.FetchReused:
				reused++
			}
		}
		if cloned != 1 || reused != 1 {
			t.Errorf("expected one clone and one reuse, got %v", statuses)
		}
	})

	t.Run("cancelled context fails without retry", func(t *testing.T) {
		t.Parallel()

		src := newSourceRepo(t, map[string]string{"a.txt": "a"})
		f := New(filepath.Join(t.TempDir(), "cloned"), WithDepth(0), WithRetries(3))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		_, err := f.Fetch(ctx, model.RepositoryEntry{URL: src})
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
		if time.Since(start) > 10*time.Second {
			t.Error("expected cancellation to stop retries")
		}
	})
}

// TestEndpoint tests URL rewriting and authentication selection.
func TestEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("token is used for https", func(t *testing.T) {
		t.Parallel()

		f := New(t.TempDir(), WithToken("secret"))
		url, auth, err := f.endpoint("https://github.com/a/b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if url != "https://github.com/a/b" {
			t.Errorf("unexpected url %q", url)
		}
		if auth == nil || !strings.Contains(auth.String(), tokenUser) {
			t.Errorf("expected basic auth with %q, got %v", tokenUser, auth)
		}
	})

	t.Run("no token means no auth", func(t *testing.T) {
		t.Parallel()

		f := New(t.TempDir())
		_, auth, err := f.endpoint("https://github.com/a/b")
		if err != nil || auth != nil {
			t.Errorf("expected no auth, got %v (%v)", auth, err)
		}
	})

	t.Run("local paths ignore the token", func(t *testing.T) {
		t.Parallel()

		f := New(t.TempDir(), WithToken("secret"))
		_, auth, err := f.endpoint("/srv/git/repo")
		if err != nil || auth != nil {
			t.Errorf("expected no auth, got %v (%v)", auth, err)
		}
	})
}
