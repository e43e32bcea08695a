// Package collect gathers facts from a source.Source and feeds them to the
// aggregation engine.
package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/relnotes/internal/aggregate"
	"github.com/sprite-ai/relnotes/internal/logger"
	"github.com/sprite-ai/relnotes/internal/model"
	"github.com/sprite-ai/relnotes/internal/source"
)

// Policy decides what happens when fetching a repository fails.
type Policy string

const (
	// PolicyAbort fails the whole run on the first fetch error.
	PolicyAbort Policy = "abort"
	// PolicyExclude drops the failing repository and carries on.
	PolicyExclude Policy = "exclude"
)

// ParsePolicy validates a policy name. The empty string means abort.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyExclude:
		return PolicyExclude, nil
	}
	return "", fmt.Errorf("unknown fetch error policy %q (want abort or exclude)", s)
}

// EventKind describes a progress event.
type EventKind string

const (
	EventFetched EventKind = "fetched"
	EventSkipped EventKind = "skipped"
)

// Event reports that one repository finished fetching.
type Event struct {
	Kind     EventKind `json:"kind"`
	Repo     string    `json:"repo"`
	Released bool      `json:"released"`
	Commits  int       `json:"commits"`
	Error    string    `json:"error,omitempty"`
	Done     int       `json:"done"`
	Total    int       `json:"total"`
}

// Options configures Run.
type Options struct {
	Concurrency int
	Policy      Policy
	SkipCommits bool // only resolve releases; used by check
	Progress    func(Event)
	Logger      *logger.Logger
	Clock       func() time.Time
}

// SkippedRepo is a repository excluded under PolicyExclude.
type SkippedRepo struct {
	Repo string `json:"repo"`
	Err  error  `json:"-"`
}

func (s SkippedRepo) Error() string {
	return s.Err.Error()
}

// Result is the outcome of a collection run.
type Result struct {
	Release *model.AggregatedRelease
	Skipped []SkippedRepo
}

// Run fetches release and commit facts for repos concurrently and aggregates
// them for target. Components keep the order of repos, minus any repository
// excluded by the policy.
func Run(ctx context.Context, src source.Source, target string, repos []string, opts Options) (*Result, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Policy == "" {
		opts.Policy = PolicyAbort
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	inputs := make([]aggregate.Input, len(repos))
	errs := make([]error, len(repos))

	var mu sync.Mutex
	done := 0
	report := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		done++
		ev.Done, ev.Total = done, len(repos)
		log.Debug("repository fetched", "repo", ev.Repo, "kind", ev.Kind, "done", ev.Done, "total", ev.Total)
		if opts.Progress != nil {
			opts.Progress(ev)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, repo := range repos {
		g.Go(func() error {
			in, released, err := fetch(gctx, src, repo, target, opts.SkipCommits)
			if err != nil {
				if opts.Policy == PolicyAbort || errors.Is(err, context.Canceled) || gctx.Err() != nil {
					return err
				}
				log.Warn("excluding repository", "repo", repo, "error", err)
				errs[i] = err
				report(Event{Kind: EventSkipped, Repo: repo, Error: err.Error()})
				return nil
			}
			inputs[i] = in
			report(Event{Kind: EventFetched, Repo: repo, Released: released, Commits: len(in.Commits)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	included := make([]string, 0, len(repos))
	byRepo := make(map[string]aggregate.Input, len(repos))
	for i, repo := range repos {
		if errs[i] != nil {
			res.Skipped = append(res.Skipped, SkippedRepo{Repo: repo, Err: errs[i]})
			continue
		}
		included = append(included, repo)
		byRepo[repo] = inputs[i]
	}

	engineOpts := []aggregate.Option{aggregate.WithConcurrency(opts.Concurrency)}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, aggregate.WithClock(opts.Clock))
	}
	rel, err := aggregate.New(engineOpts...).Aggregate(ctx, target, included, byRepo)
	if err != nil {
		return nil, err
	}
	res.Release = rel
	return res, nil
}

// fetch reads one repository's facts. Commits are only fetched when target
// exists, from the previous release's tag (or the beginning of history).
func fetch(ctx context.Context, src source.Source, repo, target string, skipCommits bool) (aggregate.Input, bool, error) {
	releases, err := src.ListReleases(ctx, repo)
	if err != nil {
		return aggregate.Input{}, false, source.Wrap(repo, "listing releases", err)
	}
	in := aggregate.Input{Releases: releases}

	current, previous, err := aggregate.Resolve(releases, target)
	if errors.Is(err, aggregate.ErrNotFound) {
		return in, false, nil
	}
	if err != nil {
		return aggregate.Input{}, false, source.Wrap(repo, "resolving release", err)
	}
	if skipCommits {
		return in, true, nil
	}

	var from string
	if previous != nil {
		from = previous.Tag
	}
	commits, err := src.CommitsBetween(ctx, repo, from, current.Tag)
	if err != nil {
		return aggregate.Input{}, false, source.Wrap(repo, "listing commits", err)
	}
	in.Commits = commits
	return in, true, nil
}
