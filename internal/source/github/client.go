// Package github implements source.Source on top of the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"

	"github.com/sprite-ai/relnotes/internal/conventional"
	"github.com/sprite-ai/relnotes/internal/logger"
	"github.com/sprite-ai/relnotes/internal/model"
	"github.com/sprite-ai/relnotes/internal/source"
)

const perPage = 100

// Config holds the GitHub connection settings.
type Config struct {
	Token   string
	Org     string // owner used for repositories given without one
	BaseURL string // GitHub Enterprise API URL; empty for github.com

	MaxPages         int           // release and commit pages fetched per call
	MaxCommits       int           // cap for an initial release's history
	MaxPRLookups     int           // commits per call whose pull request is looked up; -1 disables
	MaxRetries       uint          // attempts per API call
	InitialBackoff   time.Duration // first retry delay
	MaxRateLimitWait time.Duration // give up instead of sleeping longer than this

	HTTPClient *http.Client
}

func (c *Config) setDefaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.MaxCommits <= 0 {
		c.MaxCommits = 1000
	}
	if c.MaxPRLookups == 0 {
		c.MaxPRLookups = 200
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxRateLimitWait <= 0 {
		c.MaxRateLimitWait = 2 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}

// Client is a source.Source backed by go-github.
type Client struct {
	gh  *gh.Client
	cfg Config
	log *logger.Logger
}

var _ source.Source = (*Client)(nil)

// New creates a GitHub source.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.setDefaults()
	if log == nil {
		log = logger.Nop()
	}

	client := gh.NewClient(cfg.HTTPClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" && cfg.BaseURL != "https://api.github.com" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
	}

	return &Client{gh: client, cfg: cfg, log: log.With("source", "github")}, nil
}

func (c *Client) split(repo string) (owner, name string, err error) {
	if o, n, ok := strings.Cut(repo, "/"); ok && o != "" && n != "" {
		return o, n, nil
	}
	if c.cfg.Org == "" {
		return "", "", fmt.Errorf("repository %q has no owner and no org is configured", repo)
	}
	return c.cfg.Org, repo, nil
}

// ListReleases returns the published (non-draft) releases of repo.
func (c *Client) ListReleases(ctx context.Context, repo string) ([]model.ReleaseFact, error) {
	owner, name, err := c.split(repo)
	if err != nil {
		return nil, source.Wrap(repo, "listing releases", err)
	}

	var facts []model.ReleaseFact
	opts := &gh.ListOptions{PerPage: perPage}
	for page := 0; ; page++ {
		if page == c.cfg.MaxPages {
			c.log.Warn("release listing truncated", "repo", repo, "max_pages", c.cfg.MaxPages, "releases", len(facts))
			break
		}
		rels, resp, err := call(ctx, c, func() ([]*gh.RepositoryRelease, *gh.Response, error) {
			return c.gh.Repositories.ListReleases(ctx, owner, name, opts)
		})
		if err != nil {
			return nil, source.Wrap(repo, "listing releases", err)
		}
		for _, r := range rels {
			if r.GetDraft() {
				continue
			}
			facts = append(facts, model.ReleaseFact{
				Tag:       r.GetTagName(),
				CreatedAt: r.GetCreatedAt().Time,
				Notes:     r.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.log.Debug("listed releases", "repo", repo, "count", len(facts))
	return facts, nil
}

// CommitsBetween returns the commits in fromTag..toTag, oldest first.
func (c *Client) CommitsBetween(ctx context.Context, repo, fromTag, toTag string) ([]model.CommitFact, error) {
	owner, name, err := c.split(repo)
	if err != nil {
		return nil, source.Wrap(repo, "listing commits", err)
	}

	log := c.log.With("repo", repo)
	var commits []*gh.RepositoryCommit
	if fromTag != "" {
		commits, err = c.compare(ctx, log, owner, name, fromTag, toTag)
	} else {
		commits, err = c.history(ctx, log, owner, name, toTag)
	}
	if err != nil {
		return nil, source.Wrap(repo, "listing commits", err)
	}

	facts := make([]model.CommitFact, 0, len(commits))
	for _, rc := range commits {
		facts = append(facts, toCommitFact(rc))
	}
	if err := c.fillPullRequests(ctx, log, owner, name, facts); err != nil {
		return nil, source.Wrap(repo, "listing commits", err)
	}
	c.log.Debug("listed commits", "repo", repo, "from", fromTag, "to", toTag, "count", len(facts))
	return facts, nil
}

// compare pages through base...head. GitHub returns these oldest first.
func (c *Client) compare(ctx context.Context, log *logger.Logger, owner, name, base, head string) ([]*gh.RepositoryCommit, error) {
	var out []*gh.RepositoryCommit
	opts := &gh.ListOptions{PerPage: perPage}
	for page := 0; ; page++ {
		if page == c.cfg.MaxPages {
			log.Warn("commit comparison truncated", "base", base, "head", head, "max_pages", c.cfg.MaxPages, "commits", len(out))
			break
		}
		cmp, resp, err := call(ctx, c, func() (*gh.CommitsComparison, *gh.Response, error) {
			return c.gh.Repositories.CompareCommits(ctx, owner, name, base, head, opts)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, cmp.Commits...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// history lists commits reachable from head, newest first from the API, and
// returns them oldest first.
func (c *Client) history(ctx context.Context, log *logger.Logger, owner, name, head string) ([]*gh.RepositoryCommit, error) {
	var out []*gh.RepositoryCommit
	opts := &gh.CommitsListOptions{SHA: head, ListOptions: gh.ListOptions{PerPage: perPage}}
	truncated := false
	for page := 0; ; page++ {
		if page == c.cfg.MaxPages || len(out) >= c.cfg.MaxCommits {
			truncated = true
			break
		}
		batch, resp, err := call(ctx, c, func() ([]*gh.RepositoryCommit, *gh.Response, error) {
			return c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if len(out) > c.cfg.MaxCommits {
		out = out[:c.cfg.MaxCommits]
		truncated = true
	}
	if truncated {
		log.Warn("commit history truncated", "head", head, "max_commits", c.cfg.MaxCommits, "commits", len(out))
	}
	slices.Reverse(out)
	return out, nil
}

// fillPullRequests asks GitHub for the pull request of commits whose message
// names none, preferring the one whose merge commit is the commit itself.
// A failed lookup stops further lookups but keeps the commits.
func (c *Client) fillPullRequests(ctx context.Context, log *logger.Logger, owner, name string, facts []model.CommitFact) error {
	if c.cfg.MaxPRLookups < 0 {
		return nil
	}
	lookups := 0
	for i := range facts {
		f := &facts[i]
		if f.PullRequest != 0 || f.SHA == "" {
			continue
		}
		if lookups == c.cfg.MaxPRLookups {
			log.Warn("pull request lookups capped", "max_pr_lookups", c.cfg.MaxPRLookups)
			return nil
		}
		lookups++
		prs, _, err := call(ctx, c, func() ([]*gh.PullRequest, *gh.Response, error) {
			return c.gh.PullRequests.ListPullRequestsWithCommit(ctx, owner, name, f.SHA, nil)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("pull request lookup failed; skipping the rest", "sha", f.ShortSHA(), "error", err)
			return nil
		}
		f.PullRequest = pickPullRequest(prs, f.SHA)
		if f.PullRequest != 0 {
			f.Issues = slices.DeleteFunc(f.Issues, func(n int) bool { return n == f.PullRequest })
		}
	}
	return nil
}

func pickPullRequest(prs []*gh.PullRequest, sha string) int {
	var merged int
	for _, pr := range prs {
		if pr.GetMergeCommitSHA() == sha {
			return pr.GetNumber()
		}
		if merged == 0 && pr.MergedAt != nil {
			merged = pr.GetNumber()
		}
	}
	if merged != 0 {
		return merged
	}
	if len(prs) > 0 {
		return prs[0].GetNumber()
	}
	return 0
}

func toCommitFact(rc *gh.RepositoryCommit) model.CommitFact {
	msg := rc.GetCommit().GetMessage()
	author := rc.GetAuthor().GetLogin()
	if author == "" {
		author = rc.GetCommit().GetAuthor().GetName()
	}
	pr, issues := conventional.References(msg)
	return model.CommitFact{
		SHA:         rc.GetSHA(),
		Message:     msg,
		Author:      author,
		Date:        rc.GetCommit().GetAuthor().GetDate().Time,
		PullRequest: pr,
		Issues:      issues,
	}
}
