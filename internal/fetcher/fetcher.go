package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh"
	"golang.org/x/time/rate"

	"github.com/nao1215/reposcan/internal/model"
)

// Sentinel errors for fetching.
var (
	// ErrFetch wraps every failure to obtain a working copy.
	ErrFetch = errors.New("fetch failed")

	// ErrNotWorkingCopy is returned when the target directory exists but is
	// not a git working copy. The directory is left untouched.
	ErrNotWorkingCopy = errors.New("directory exists but is not a git working copy")
)

// tokenUser is the basic auth user name sent with an access token.
// GitHub, GitLab and Gitea all accept a token as password with any user.
const tokenUser = "x-access-token"

// Result describes an obtained working copy.
type Result struct {
	// Path is the working copy directory.
	Path string

	// Status is FetchCloned or FetchReused.
	Status model.FetchStatus
}

// Fetcher clones repositories into a root directory.
// It is safe for concurrent use.
type Fetcher struct {
	root            string
	timeout         time.Duration
	depth           int
	retries         int
	limiter         *rate.Limiter
	token           string
	useSSH          bool
	insecureHostKey bool
	logger          *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithTimeout bounds each clone attempt.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithDepth limits the fetched history. Zero clones everything.
func WithDepth(depth int) Option {
	return func(f *Fetcher) {
		f.depth = depth
	}
}

// WithRetries sets how many times a failed clone is retried with
// exponential backoff. Authentication and not-found errors are never retried.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		f.retries = n
	}
}

// WithRateLimit limits how many clones start per second.
// Zero or less disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(f *Fetcher) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithToken authenticates https clones with an access token.
func WithToken(token string) Option {
	return func(f *Fetcher) {
		f.token = token
	}
}

// WithSSH rewrites https://github.com/ identifiers to SSH and
// authenticates through the SSH agent. insecureHostKey disables host key
// verification against known_hosts.
func WithSSH(insecureHostKey bool) Option {
	return func(f *Fetcher) {
		f.useSSH = true
		f.insecureHostKey = insecureHostKey
	}
}

// New creates a Fetcher that clones into root.
func New(root string, opts ...Option) *Fetcher {
	f := &Fetcher{
		root:    root,
		timeout: 5 * time.Minute,
		depth:   1,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Root returns the clone root directory.
func (f *Fetcher) Root() string {
	return f.root
}

// PathFor returns the working copy directory for an identifier.
func (f *Fetcher) PathFor(identifier string) string {
	return filepath.Join(f.root, LocalDirName(identifier))
}

// Fetch ensures a working copy of entry exists and returns its location.
//
// An existing working copy is reused without contacting the remote.
// A directory that exists but is not a working copy is never overwritten.
// When a clone fails, anything it left on disk is removed and an error
// wrapping ErrFetch is returned.
func (f *Fetcher) Fetch(ctx context.Context, entry model.RepositoryEntry) (Result, error) {
	dir := f.PathFor(entry.URL)

	// Two entries with the same identifier share a directory; the second
	// waits for the first and then reuses its copy.
	unlock := f.lock(dir)
	defer unlock()

	present, err := checkWorkingCopy(dir)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrFetch, entry.URL, err)
	}
	if present {
		f.logger.Debug("reusing working copy", "url", entry.URL, "path", dir)
		return Result{Path: dir, Status: model.FetchReused}, nil
	}

	if err := os.MkdirAll(f.root, 0750); err != nil {
		return Result{}, fmt.Errorf("%w: failed to create clone directory: %w", ErrFetch, err)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("%w: %s: %w", ErrFetch, entry.URL, err)
		}
	}

	start := time.Now()
	if err := f.clone(ctx, entry.URL, dir); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			f.logger.Warn("failed to remove partial clone", "path", dir, "error", rmErr)
		}
		return Result{}, fmt.Errorf("%w: %s: %w", ErrFetch, entry.URL, err)
	}

	f.logger.Debug("cloned repository",
		"url", entry.URL,
		"path", dir,
		"duration", time.Since(start),
	)
	return Result{Path: dir, Status: model.FetchCloned}, nil
}

// lock acquires the per-directory mutex and returns its release function.
func (f *Fetcher) lock(dir string) func() {
	f.mu.Lock()
	m, ok := f.locks[dir]
	if !ok {
		m = &sync.Mutex{}
		f.locks[dir] = m
	}
	f.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// checkWorkingCopy reports whether dir holds a git working copy.
// A missing or empty directory is reported as absent so it can be cloned
// into. A repository whose HEAD does not resolve, or any other content,
// is ErrNotWorkingCopy.
func checkWorkingCopy(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s", ErrNotWorkingCopy, dir)
	}

	repo, err := git.PlainOpen(dir)
	if err == nil {
		// A repository without a resolvable HEAD has nothing to scan.
		if _, err := repo.Head(); err != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrNotWorkingCopy, dir, err)
		}
		return true, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return false, fmt.Errorf("%w: %s: %w", ErrNotWorkingCopy, dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	if len(entries) > 0 {
		return false, fmt.Errorf("%w: %s", ErrNotWorkingCopy, dir)
	}
	return false, nil
}

// clone runs the clone with timeout and retry policy applied.
func (f *Fetcher) clone(ctx context.Context, identifier, dir string) error {
	url, auth, err := f.endpoint(identifier)
	if err != nil {
		return err
	}

	opts := &git.CloneOptions{
		URL:          url,
		Auth:         auth,
		Depth:        f.depth,
		SingleBranch: true,
		Tags:         git.NoTags,
	}

	attempt := func() error {
		cloneCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		_, err := git.PlainCloneContext(cloneCtx, dir, false, opts)
		if err == nil {
			return nil
		}
		_ = os.RemoveAll(dir)

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(cloneCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("clone timed out after %s: %w", f.timeout, err)
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxElapsedTime = 0

	return backoff.RetryNotify(
		attempt,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(f.retries, 0))), ctx), //nolint:gosec // retries is validated non-negative
		func(err error, wait time.Duration) {
			f.logger.Warn("clone failed, retrying",
				"url", url,
				"wait", wait,
				"error", err,
			)
		},
	)
}

// endpoint returns the clone URL and authentication for an identifier.
func (f *Fetcher) endpoint(identifier string) (string, transport.AuthMethod, error) {
	url := identifier

	if f.useSSH {
		url = sshURL(identifier)
		if strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://") {
			auth, err := gitssh.NewSSHAgentAuth("git")
			if err != nil {
				return "", nil, fmt.Errorf("ssh agent: %w", err)
			}
			if f.insecureHostKey {
				auth.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // Explicitly requested with --insecure-host-key
			}
			return url, auth, nil
		}
	}

	if f.token != "" && strings.HasPrefix(url, "https://") {
		return url, &githttp.BasicAuth{Username: tokenUser, Password: f.token}, nil
	}
	return url, nil, nil
}

// isPermanent reports whether retrying err cannot succeed.
func isPermanent(err error) bool {
	return errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) ||
		errors.Is(err, transport.ErrRepositoryNotFound) ||
		errors.Is(err, transport.ErrEmptyRemoteRepository) ||
		errors.Is(err, transport.ErrInvalidAuthMethod)
}
