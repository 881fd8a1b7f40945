package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gogithub "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/nao1215/reposcan/internal/model"
)

// Sentinel errors for listing.
var (
	// ErrOrgRequired is returned when no organization name is given.
	ErrOrgRequired = errors.New("organization name is required")

	// ErrList wraps every failure to list repositories.
	ErrList = errors.New("failed to list organization repositories")
)

// DefaultLimit is the maximum number of repositories returned when the
// caller does not set one.
const DefaultLimit = 1000

// pageSize is the largest page the repositories API serves.
const pageSize = 100

// Lister lists organization repositories through the GitHub REST API.
type Lister struct {
	client          *gogithub.Client
	logger          *slog.Logger
	retries         int
	retryWait       time.Duration
	includeArchived bool
	includeForks    bool
}

type settings struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Lister.
type Option func(*Lister, *settings)

// WithToken authenticates API calls. Without a token only public
// repositories are visible and the rate limit is low.
func WithToken(token string) Option {
	return func(_ *Lister, s *settings) {
		s.token = token
	}
}

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(base string) Option {
	return func(_ *Lister, s *settings) {
		s.baseURL = base
	}
}

// WithHTTPClient sets the underlying HTTP client, e.g. to bound request
// time. WithToken wraps it.
func WithHTTPClient(c *http.Client) Option {
	return func(_ *Lister, s *settings) {
		s.httpClient = c
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lister, _ *settings) {
		l.logger = logger
	}
}

// WithRetries sets how often a failed page request is retried.
func WithRetries(n int, wait time.Duration) Option {
	return func(l *Lister, _ *settings) {
		l.retries = max(n, 0)
		l.retryWait = wait
	}
}

// WithArchived includes archived repositories. They are skipped by default.
func WithArchived(include bool) Option {
	return func(l *Lister, _ *settings) {
		l.includeArchived = include
	}
}

// WithForks includes forks. They are skipped by default.
func WithForks(include bool) Option {
	return func(l *Lister, _ *settings) {
		l.includeForks = include
	}
}

// New creates a Lister.
func New(ctx context.Context, opts ...Option) (*Lister, error) {
	l := &Lister{
		logger:    slog.Default(),
		retries:   3,
		retryWait: time.Second,
	}
	s := &settings{}
	for _, opt := range opts {
		opt(l, s)
	}

	httpClient := s.httpClient
	if s.token != "" {
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.token})
		httpClient = oauth2.NewClient(ctx, ts)
		if s.httpClient != nil {
			// oauth2 reuses only the transport of the given client.
			httpClient.Timeout = s.httpClient.Timeout
		}
	}
	l.client = gogithub.NewClient(httpClient)

	if s.baseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(s.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid API base URL %q: %w", s.baseURL, err)
		}
		l.client.BaseURL = base
	}
	return l, nil
}

// ListOrgRepos returns up to limit repositories of org, sorted by full name.
// limit <= 0 means DefaultLimit.
func (l *Lister) ListOrgRepos(ctx context.Context, org string, limit int) ([]model.RepositoryEntry, error) {
	org = strings.TrimSpace(org)
	if org == "" {
		return nil, ErrOrgRequired
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	opts := &gogithub.RepositoryListByOrgOptions{
		Type:        "all",
		Sort:        "full_name",
		ListOptions: gogithub.ListOptions{PerPage: min(pageSize, limit)},
	}

	entries := make([]model.RepositoryEntry, 0)
	for {
		repos, resp, err := l.page(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrList, org, err)
		}

		for _, repo := range repos {
			if repo.GetArchived() && !l.includeArchived {
				continue
			}
			if repo.GetFork() && !l.includeForks {
				continue
			}
			entries = append(entries, entryFor(repo))
			if len(entries) == limit {
				return entries, nil
			}
		}

		l.logger.Debug("listed repository page",
			"org", org,
			"page", opts.Page,
			"total", len(entries),
		)
		if resp.NextPage == 0 {
			return entries, nil
		}
		opts.Page = resp.NextPage
	}
}

// page fetches one page, retrying server errors and rate limits.
func (l *Lister) page(ctx context.Context, org string, opts *gogithub.RepositoryListByOrgOptions) ([]*gogithub.Repository, *gogithub.Response, error) {
	var (
		repos []*gogithub.Repository
		resp  *gogithub.Response
	)

	attempt := func() error {
		var err error
		repos, resp, err = l.client.Repositories.ListByOrg(ctx, org, opts)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(resp, err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.retryWait
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(
		attempt,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(l.retries)), ctx), //nolint:gosec // retries is clamped non-negative
		func(err error, wait time.Duration) {
			l.logger.Warn("listing failed, retrying",
				"org", org,
				"wait", wait,
				"error", err,
			)
		},
	)
	return repos, resp, err
}

// retryable reports whether a failed request may succeed soon.
// The primary rate limit resets on the hour, so it is not retried.
func retryable(resp *gogithub.Response, err error) bool {
	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}
	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	if resp == nil || resp.Response == nil {
		// Transport error without a response.
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError
}

// entryFor converts an API repository into a list entry.
func entryFor(repo *gogithub.Repository) model.RepositoryEntry {
	u := repo.GetCloneURL()
	if u == "" {
		u = repo.GetHTMLURL()
	}
	return model.RepositoryEntry{
		URL:         u,
		Name:        repo.GetName(),
		Description: repo.GetDescription(),
	}
}
