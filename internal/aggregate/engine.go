package aggregate

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/relnotes/internal/model"
)

// Input holds the facts gathered for one repository.
type Input struct {
	Releases []model.ReleaseFact `json:"releases"`
	Commits  []model.CommitFact  `json:"commits"`
}

// Engine fans Process out across repositories.
type Engine struct {
	concurrency int
	now         func() time.Time
	process     func(repo, target string, in Input) model.ComponentRelease
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds how many repositories are processed at once.
// Values below 1 are treated as 1.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

// WithClock sets the source of the GeneratedAt timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine. By default it processes repositories one at a time
// and stamps releases with the current UTC time.
func New(opts ...Option) *Engine {
	e := &Engine{
		concurrency: 1,
		now:         func() time.Time { return time.Now().UTC() },
		process: func(repo, target string, in Input) model.ComponentRelease {
			return Process(repo, target, in.Releases, in.Commits)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Aggregate builds the release for target across repos. Components appear in
// the order of repos regardless of which finishes first. Repositories absent
// from inputs are processed with no facts.
//
// The only error is ctx's: a cancelled aggregation returns no release.
func (e *Engine) Aggregate(ctx context.Context, target string, repos []string, inputs map[string]Input) (*model.AggregatedRelease, error) {
	components := make([]model.ComponentRelease, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, repo := range repos {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			components[i] = e.process(repo, target, inputs[repo])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &model.AggregatedRelease{
		Version:     target,
		GeneratedAt: e.now(),
		Components:  components,
		Summary:     Summarize(components),
	}, nil
}
