package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/sprite-ai/relnotes/internal/model"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

func rel(tag string, sec int) model.ReleaseFact {
	return model.ReleaseFact{Tag: tag, CreatedAt: at(sec)}
}

func commit(sha, author, msg string) model.CommitFact {
	return model.CommitFact{SHA: sha, Author: author, Message: msg, Date: base}
}

// --- Resolve ---

func TestResolveBasic(t *testing.T) {
	history := []model.ReleaseFact{rel("v1.0.0", 10), rel("v1.1.0", 20)}

	cur, prev, err := Resolve(history, "v1.1.0")
	if err != nil {
		t.Fatal(err)
	}
	if cur.Tag != "v1.1.0" {
		t.Errorf("current = %s, want v1.1.0", cur.Tag)
	}
	if prev == nil || prev.Tag != "v1.0.0" {
		t.Errorf("previous = %v, want v1.0.0", prev)
	}

	cur, prev, err = Resolve(history, "v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if cur.Tag != "v1.0.0" || prev != nil {
		t.Errorf("initial release: current=%s previous=%v", cur.Tag, prev)
	}
}

func TestResolveNotFound(t *testing.T) {
	history := []model.ReleaseFact{rel("v1.0.0", 10)}
	for _, target := range []string{"v2.0.0", "1.0.0", "V1.0.0"} {
		if _, _, err := Resolve(history, target); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q) err = %v, want ErrNotFound", target, err)
		}
	}
	if _, _, err := Resolve(nil, "v1.0.0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty history err = %v", err)
	}
}

func TestResolveUnsortedInput(t *testing.T) {
	history := []model.ReleaseFact{
		rel("v1.2.0", 30), rel("v1.0.0", 10), rel("v1.3.0", 40), rel("v1.1.0", 20),
	}
	_, prev, err := Resolve(history, "v1.3.0")
	if err != nil {
		t.Fatal(err)
	}
	if prev == nil || prev.Tag != "v1.2.0" {
		t.Errorf("previous = %v, want v1.2.0", prev)
	}
	if history[0].Tag != "v1.2.0" {
		t.Error("Resolve must not reorder the caller's slice")
	}
}

func TestResolvePreviousIsGreatestStrictlyEarlier(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(8)
		history := make([]model.ReleaseFact, n)
		for i := range history {
			history[i] = rel(fmt.Sprintf("t%02d", i), rng.Intn(5))
		}
		target := history[rng.Intn(n)].Tag

		cur, prev, err := Resolve(history, target)
		if err != nil {
			t.Fatal(err)
		}

		var want *model.ReleaseFact
		for i := range history {
			h := history[i]
			if !h.CreatedAt.Before(cur.CreatedAt) {
				continue
			}
			if want == nil || h.CreatedAt.After(want.CreatedAt) ||
				(h.CreatedAt.Equal(want.CreatedAt) && h.Tag > want.Tag) {
				want = &h
			}
		}

		switch {
		case want == nil && prev != nil:
			t.Fatalf("round %d: expected no previous, got %s", round, prev.Tag)
		case want != nil && (prev == nil || prev.Tag != want.Tag):
			t.Fatalf("round %d: previous = %v, want %s", round, prev, want.Tag)
		}
	}
}

func TestResolveTieBreak(t *testing.T) {
	// b and c share a timestamp; tag order decides and is input-order independent.
	a := []model.ReleaseFact{rel("a", 1), rel("c", 5), rel("b", 5), rel("d", 9)}
	b := []model.ReleaseFact{rel("d", 9), rel("b", 5), rel("a", 1), rel("c", 5)}

	for _, history := range [][]model.ReleaseFact{a, b} {
		_, prev, err := Resolve(history, "d")
		if err != nil {
			t.Fatal(err)
		}
		if prev == nil || prev.Tag != "c" {
			t.Errorf("previous of d = %v, want c", prev)
		}

		// Same timestamp is not strictly earlier.
		_, prev, err = Resolve(history, "c")
		if err != nil {
			t.Fatal(err)
		}
		if prev == nil || prev.Tag != "a" {
			t.Errorf("previous of c = %v, want a", prev)
		}
	}

	sa, sb := SortReleases(a), SortReleases(b)
	if !reflect.DeepEqual(sa, sb) {
		t.Errorf("sort not deterministic:\n%v\n%v", sa, sb)
	}
}

// --- Process ---

func TestProcessNoRelease(t *testing.T) {
	history := []model.ReleaseFact{rel("v0.8.0", 5), rel("v0.9.0", 15)}
	c := Process("web", "v1.0.0", history, []model.CommitFact{commit("a", "x", "feat: ignored")})

	nr, ok := c.Status.(model.NoRelease)
	if !ok {
		t.Fatalf("expected NoRelease, got %T", c.Status)
	}
	if nr.LatestVersion != "v0.9.0" {
		t.Errorf("latest = %q, want v0.9.0", nr.LatestVersion)
	}
	if nr.LatestDate == nil || !nr.LatestDate.Equal(at(15)) {
		t.Errorf("latest date = %v", nr.LatestDate)
	}
}

func TestProcessNoHistory(t *testing.T) {
	c := Process("empty", "v1.0.0", nil, nil)
	nr, ok := c.Status.(model.NoRelease)
	if !ok {
		t.Fatalf("expected NoRelease, got %T", c.Status)
	}
	if nr.LatestVersion != "" || nr.LatestDate != nil {
		t.Errorf("expected empty NoRelease, got %+v", nr)
	}
}

func TestProcessReleased(t *testing.T) {
	history := []model.ReleaseFact{
		{Tag: "v1.0.0", CreatedAt: at(10)},
		{Tag: "v1.1.0", CreatedAt: at(20), Notes: "Highlights"},
	}
	commits := []model.CommitFact{
		commit("c3", "yan", "fix: z"),
		commit("c1", "xia", "feat!: a"),
		commit("c2", "xia", "chore: b"),
		commit("c4", "", "docs: c\n\nBREAKING CHANGE: moved"),
	}

	c := Process("api", "v1.1.0", history, commits)
	r, ok := c.Status.(model.Released)
	if !ok {
		t.Fatalf("expected Released, got %T", c.Status)
	}
	if r.Current != "v1.1.0" || r.Previous != "v1.0.0" {
		t.Errorf("versions = %s/%s", r.Current, r.Previous)
	}
	if !r.ReleaseDate.Equal(at(20)) || r.Notes != "Highlights" {
		t.Errorf("date/notes = %v/%q", r.ReleaseDate, r.Notes)
	}

	var order []string
	for _, ec := range r.Commits {
		order = append(order, ec.SHA)
	}
	if !reflect.DeepEqual(order, []string{"c3", "c1", "c2", "c4"}) {
		t.Errorf("commit order changed: %v", order)
	}

	if r.Commits[1].Type != model.TypeOf(model.KindFeature) || !r.Commits[1].Breaking {
		t.Errorf("c1 = %+v", r.Commits[1])
	}
	if r.Commits[1].Subject != "a" {
		t.Errorf("subject = %q", r.Commits[1].Subject)
	}

	want := model.ReleaseStats{
		CommitCount:  4,
		Contributors: []string{"xia", "yan"},
		ByType: map[model.CommitType]int{
			model.TypeOf(model.KindFix):     1,
			model.TypeOf(model.KindFeature): 1,
			model.Other("chore"):            1,
			model.TypeOf(model.KindDocs):    1,
		},
		Breaking: 2,
	}
	if !reflect.DeepEqual(r.Stats, want) {
		t.Errorf("stats = %+v\nwant %+v", r.Stats, want)
	}
}

func TestProcessInitialReleaseNoCommits(t *testing.T) {
	c := Process("lib", "v0.1.0", []model.ReleaseFact{rel("v0.1.0", 1)}, nil)
	r, ok := c.Status.(model.Released)
	if !ok {
		t.Fatalf("expected Released, got %T", c.Status)
	}
	if !r.Initial() {
		t.Error("expected initial release")
	}
	if r.Stats.CommitCount != 0 || len(r.Commits) != 0 {
		t.Errorf("expected no changes, got %+v", r.Stats)
	}
}

// --- Engine ---

func fixedClock() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

func summaryInputs() ([]string, map[string]Input) {
	repos := []string{"A", "B", "C"}
	inputs := map[string]Input{
		"A": {
			Releases: []model.ReleaseFact{rel("v1.0.0", 1), rel("v2.0.0", 2)},
			Commits: []model.CommitFact{
				commit("a1", "x", "feat: one"),
				commit("a2", "y", "fix: two"),
				commit("a3", "x", "docs: three"),
			},
		},
		"B": {
			Releases: []model.ReleaseFact{rel("v1.0.0", 1)},
		},
		"C": {
			Releases: []model.ReleaseFact{rel("v2.0.0", 3)},
			Commits: []model.CommitFact{
				commit("c1", "y", "feat: four"),
				commit("c2", "z", "perf: five"),
			},
		},
	}
	return repos, inputs
}

func TestAggregateSummary(t *testing.T) {
	repos, inputs := summaryInputs()
	e := New(WithClock(fixedClock), WithConcurrency(3))

	got, err := e.Aggregate(context.Background(), "v2.0.0", repos, inputs)
	if err != nil {
		t.Fatal(err)
	}

	s := got.Summary
	if s.TotalRepos != 3 || s.UpdatedRepos != 2 || s.TotalCommits != 5 || s.Contributors != 3 {
		t.Errorf("summary = %+v, want 3/2/5/3", s)
	}
	if !reflect.DeepEqual(s.ContributorNames, []string{"x", "y", "z"}) {
		t.Errorf("contributor names = %v", s.ContributorNames)
	}
	if got.Version != "v2.0.0" || !got.GeneratedAt.Equal(fixedClock()) {
		t.Errorf("header = %s %v", got.Version, got.GeneratedAt)
	}
	if _, ok := got.Components[1].Status.(model.NoRelease); !ok {
		t.Errorf("B should be NoRelease, got %T", got.Components[1].Status)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	repos, inputs := summaryInputs()
	e := New(WithClock(fixedClock), WithConcurrency(2))

	first, err := e.Aggregate(context.Background(), "v2.0.0", repos, inputs)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Aggregate(context.Background(), "v2.0.0", repos, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different releases")
	}
}

func TestAggregatePreservesOrder(t *testing.T) {
	repos := make([]string, 40)
	inputs := make(map[string]Input)
	for i := range repos {
		repos[i] = fmt.Sprintf("repo-%02d", i)
		inputs[repos[i]] = Input{Releases: []model.ReleaseFact{rel("v1", i)}}
	}

	for seed := int64(0); seed < 5; seed++ {
		delays := rand.New(rand.NewSource(seed)).Perm(len(repos))
		e := New(WithConcurrency(8))
		e.process = func(repo, target string, in Input) model.ComponentRelease {
			var idx int
			fmt.Sscanf(repo, "repo-%d", &idx)
			time.Sleep(time.Duration(delays[idx]) * 100 * time.Microsecond)
			return Process(repo, target, in.Releases, in.Commits)
		}

		got, err := e.Aggregate(context.Background(), "v1", repos, inputs)
		if err != nil {
			t.Fatal(err)
		}
		for i, c := range got.Components {
			if c.Repository != repos[i] {
				t.Fatalf("seed %d: component %d = %s, want %s", seed, i, c.Repository, repos[i])
			}
		}
	}
}

func TestAggregateMissingInputs(t *testing.T) {
	e := New()
	got, err := e.Aggregate(context.Background(), "v1", []string{"ghost"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary.TotalRepos != 1 || got.Summary.UpdatedRepos != 0 {
		t.Errorf("summary = %+v", got.Summary)
	}
}

func TestAggregateCancelled(t *testing.T) {
	repos, inputs := summaryInputs()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := New().Aggregate(ctx, "v2.0.0", repos, inputs)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if got != nil {
		t.Error("cancelled aggregation must not return a release")
	}
}

func TestAggregateCancelledMidProcess(t *testing.T) {
	for _, n := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", n), func(t *testing.T) {
			repos, inputs := summaryInputs()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			started := make(chan struct{}, len(repos))
			release := make(chan struct{})
			e := New(WithConcurrency(n))
			e.process = func(repo, target string, in Input) model.ComponentRelease {
				started <- struct{}{}
				<-release
				return Process(repo, target, in.Releases, in.Commits)
			}

			type result struct {
				rel *model.AggregatedRelease
				err error
			}
			done := make(chan result, 1)
			go func() {
				rel, err := e.Aggregate(ctx, "v2.0.0", repos, inputs)
				done <- result{rel, err}
			}()

			<-started
			cancel()
			close(release)

			select {
			case r := <-done:
				if !errors.Is(r.err, context.Canceled) {
					t.Errorf("err = %v, want context.Canceled", r.err)
				}
				if r.rel != nil {
					t.Error("cancelled aggregation must not return a release")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Aggregate did not return after cancel")
			}
		})
	}
}

func TestWithConcurrencyClamps(t *testing.T) {
	e := New(WithConcurrency(0))
	if e.concurrency != 1 {
		t.Errorf("concurrency = %d, want 1", e.concurrency)
	}
}
