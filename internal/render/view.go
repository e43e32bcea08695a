package render

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sprite-ai/relnotes/internal/model"
)

const dateLayout = "2006-01-02"

// ReleaseView is the data handed to markdown templates.
type ReleaseView struct {
	Version    string
	Date       string
	Summary    model.ReleaseSummary
	Components []ComponentView
	Breaking   []CommitView // across all components
	Options    Options
}

// ComponentView is one repository's section.
type ComponentView struct {
	Repository    string
	Released      bool
	Current       string
	Previous      string
	ReleaseDate   string
	Notes         string
	CommitCount   int
	Commits       []CommitView
	Groups        []GroupView
	Breaking      []CommitView
	Contributors  []string
	Stats         []StatView
	LatestVersion string
	LatestDate    string
}

// GroupView is a heading and the commits under it.
type GroupView struct {
	Label   string
	Commits []CommitView
}

// StatView is one per-type counter.
type StatView struct {
	Label string
	Count int
}

// CommitView is a rendered commit line.
type CommitView struct {
	Repository string
	SHA        string
	Subject    string
	Scope      string
	Author     string
	Breaking   bool
	Refs       string // formatted PR and issue references, may be empty
	Line       string // full markdown list entry without the bullet
}

// NewView builds the template data for rel.
func NewView(rel *model.AggregatedRelease, opts Options) ReleaseView {
	v := ReleaseView{
		Version: rel.Version,
		Date:    rel.GeneratedAt.Format(dateLayout),
		Summary: rel.Summary,
		Options: opts,
	}
	for _, c := range rel.Components {
		cv := componentView(c, opts)
		v.Breaking = append(v.Breaking, cv.Breaking...)
		v.Components = append(v.Components, cv)
	}
	return v
}

func componentView(c model.ComponentRelease, opts Options) ComponentView {
	cv := ComponentView{Repository: c.Repository}
	switch s := c.Status.(type) {
	case model.Released:
		cv.Released = true
		cv.Current = s.Current
		cv.Previous = s.Previous
		cv.ReleaseDate = s.ReleaseDate.Format(dateLayout)
		cv.Notes = strings.TrimSpace(s.Notes)
		cv.CommitCount = s.Stats.CommitCount
		cv.Contributors = s.Stats.Contributors
		for _, ec := range s.Commits {
			line := commitView(c.Repository, ec, opts)
			cv.Commits = append(cv.Commits, line)
			if ec.Breaking {
				cv.Breaking = append(cv.Breaking, line)
			}
		}
		cv.Groups = groupCommits(c.Repository, s.Commits, opts)
		for _, t := range orderedTypes(s.Stats.ByType) {
			cv.Stats = append(cv.Stats, StatView{Label: Label(t, opts.Labels), Count: s.Stats.ByType[t]})
		}
	case model.NoRelease:
		cv.LatestVersion = s.LatestVersion
		if s.LatestDate != nil {
			cv.LatestDate = s.LatestDate.Format(dateLayout)
		}
	}
	return cv
}

func commitView(repo string, c model.EnrichedCommit, opts Options) CommitView {
	cv := CommitView{
		Repository: repo,
		SHA:        c.ShortSHA(),
		Subject:    c.Subject,
		Scope:      c.Scope,
		Author:     c.Author,
		Breaking:   c.Breaking,
		Refs:       refs(repo, c.CommitFact, opts),
	}

	var b strings.Builder
	if c.Scope != "" {
		fmt.Fprintf(&b, "**%s:** ", c.Scope)
	}
	b.WriteString(c.Subject)
	if cv.Refs != "" {
		b.WriteString(" ")
		b.WriteString(cv.Refs)
	}
	if cv.SHA != "" {
		fmt.Fprintf(&b, " (`%s`)", cv.SHA)
	}
	if c.Author != "" {
		fmt.Fprintf(&b, " by @%s", c.Author)
	}
	cv.Line = b.String()
	return cv
}

func refs(repo string, c model.CommitFact, opts Options) string {
	var parts []string
	if opts.IncludePRs && c.PullRequest > 0 {
		parts = append(parts, link(opts.LinkBase, repo, "pull", c.PullRequest))
	}
	if opts.IncludeIssues {
		for _, n := range c.Issues {
			parts = append(parts, link(opts.LinkBase, repo, "issues", n))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func link(base, repo, kind string, n int) string {
	if base == "" {
		return fmt.Sprintf("#%d", n)
	}
	return fmt.Sprintf("[#%d](%s/%s/%s/%d)", n, strings.TrimRight(base, "/"), repo, kind, n)
}

// groupCommits buckets commits by type, keeping commit order inside a group.
func groupCommits(repo string, commits []model.EnrichedCommit, opts Options) []GroupView {
	buckets := make(map[model.CommitType][]CommitView)
	for _, c := range commits {
		buckets[c.Type] = append(buckets[c.Type], commitView(repo, c, opts))
	}
	counts := make(map[model.CommitType]int, len(buckets))
	for t, cs := range buckets {
		counts[t] = len(cs)
	}
	var groups []GroupView
	for _, t := range orderedTypes(counts) {
		groups = append(groups, GroupView{Label: Label(t, opts.Labels), Commits: buckets[t]})
	}
	return groups
}

// orderedTypes lists the keys of m in display order: known kinds in taxonomy
// order, then unrecognised tokens alphabetically, then unconventional commits.
func orderedTypes(m map[model.CommitType]int) []model.CommitType {
	types := make([]model.CommitType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	slices.SortFunc(types, compareTypes)
	return types
}

func compareTypes(a, b model.CommitType) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch {
	case a.Raw == b.Raw:
		return 0
	case a.Raw == "":
		return 1
	case b.Raw == "":
		return -1
	}
	return strings.Compare(a.Raw, b.Raw)
}

// Label returns the heading for t, honouring overrides.
func Label(t model.CommitType, overrides map[string]string) string {
	if l, ok := overrides[t.String()]; ok && l != "" {
		return l
	}
	if t.Kind == model.KindOther && t.Raw != "" {
		return fmt.Sprintf("%s (%s)", t.Kind.Label(), t.Raw)
	}
	return t.Kind.Label()
}
