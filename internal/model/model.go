// Package model defines the core data types shared across relnotes.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ReleaseFact is one existing release in a repository, as reported by a source.
type ReleaseFact struct {
	Tag       string    `json:"tag" yaml:"tag"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Notes     string    `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// CommitFact is one commit as reported by a source.
type CommitFact struct {
	SHA         string    `json:"sha" yaml:"sha"`
	Message     string    `json:"message" yaml:"message"`
	Author      string    `json:"author" yaml:"author"`
	Date        time.Time `json:"date" yaml:"date"`
	PullRequest int       `json:"pull_request,omitempty" yaml:"pull_request,omitempty"` // 0 if unknown
	Issues      []int     `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// ShortSHA returns the abbreviated commit hash.
func (c CommitFact) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// Kind is the category a commit falls into.
type Kind int

const (
	KindFeature Kind = iota
	KindFix
	KindDocs
	KindPerformance
	KindRefactor
	KindTest
	KindBuild
	KindCI
	KindOther
)

// taxonomy maps each kind to its conventional-commit token and display label.
// Order matters: renderers list groups in this order.
var taxonomy = [...]struct {
	token string
	label string
}{
	KindFeature:     {"feat", "✨ Features"},
	KindFix:         {"fix", "🐛 Bug Fixes"},
	KindDocs:        {"docs", "📚 Documentation"},
	KindPerformance: {"perf", "⚡ Performance"},
	KindRefactor:    {"refactor", "♻️ Refactoring"},
	KindTest:        {"test", "✅ Tests"},
	KindBuild:       {"build", "📦 Build System"},
	KindCI:          {"ci", "👷 CI/CD"},
	KindOther:       {"other", "📝 Other Changes"},
}

// KindForToken looks up a conventional-commit type token (lowercase).
// The "other" placeholder is not a token.
func KindForToken(token string) (Kind, bool) {
	for k, t := range taxonomy {
		if Kind(k) != KindOther && t.token == token {
			return Kind(k), true
		}
	}
	return KindOther, false
}

// Kinds returns every kind in display order.
func Kinds() []Kind {
	kinds := make([]Kind, len(taxonomy))
	for i := range taxonomy {
		kinds[i] = Kind(i)
	}
	return kinds
}

func (k Kind) valid() bool {
	return k >= KindFeature && k <= KindOther
}

// Token returns the conventional-commit token for the kind.
func (k Kind) Token() string {
	if !k.valid() {
		return "unknown"
	}
	return taxonomy[k].token
}

// Label returns the human-readable group heading for the kind.
func (k Kind) Label() string {
	if !k.valid() {
		return taxonomy[KindOther].label
	}
	return taxonomy[k].label
}

func (k Kind) String() string {
	return k.Token()
}

// CommitType is the derived classification of a commit. Raw holds the
// unrecognised type token for KindOther and is empty otherwise.
type CommitType struct {
	Kind Kind
	Raw  string
}

// TypeOf returns the CommitType for a known kind.
func TypeOf(k Kind) CommitType {
	return CommitType{Kind: k}
}

// Other returns an Other commit type carrying the raw token.
func Other(raw string) CommitType {
	return CommitType{Kind: KindOther, Raw: raw}
}

func (t CommitType) String() string {
	if t.Kind == KindOther && t.Raw != "" {
		return "other:" + t.Raw
	}
	return t.Kind.Token()
}

// MarshalText lets CommitType serve as a JSON map key.
func (t CommitType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (t *CommitType) UnmarshalText(b []byte) error {
	s := string(b)
	if s == "other" {
		*t = Other("")
		return nil
	}
	if raw, ok := strings.CutPrefix(s, "other:"); ok {
		*t = Other(raw)
		return nil
	}
	k, ok := KindForToken(s)
	if !ok {
		return fmt.Errorf("unknown commit type %q", s)
	}
	*t = TypeOf(k)
	return nil
}

// EnrichedCommit is a commit plus its classification.
type EnrichedCommit struct {
	CommitFact
	Type     CommitType `json:"type"`
	Breaking bool       `json:"breaking,omitempty"`
	Scope    string     `json:"scope,omitempty"`
	Subject  string     `json:"subject"` // header description, or the first line when not conventional
}

// ReleaseStats summarises the commits of one component release.
type ReleaseStats struct {
	CommitCount  int                `json:"commit_count"`
	Contributors []string           `json:"contributors"` // sorted, unique
	ByType       map[CommitType]int `json:"by_type"`
	Breaking     int                `json:"breaking_changes"`
}

// ComponentStatus is either Released or NoRelease. Consumers switch on the
// concrete type; no other implementations exist.
type ComponentStatus interface {
	componentStatus()
}

// Released describes a repository that has the target release.
type Released struct {
	Current     string
	Previous    string // empty for an initial release
	ReleaseDate time.Time
	Commits     []EnrichedCommit
	Notes       string
	Stats       ReleaseStats
}

// NoRelease describes a repository without the target release.
type NoRelease struct {
	LatestVersion string
	LatestDate    *time.Time
}

func (Released) componentStatus()  {}
func (NoRelease) componentStatus() {}

// Initial reports whether this is the first release of the repository.
func (r Released) Initial() bool {
	return r.Previous == ""
}

// ComponentRelease is one repository's contribution to an aggregated release.
type ComponentRelease struct {
	Repository string
	Status     ComponentStatus
}

// IsReleased reports whether the component has the target release.
func (c ComponentRelease) IsReleased() bool {
	_, ok := c.Status.(Released)
	return ok
}

// ReleaseSummary holds cross-repository totals.
type ReleaseSummary struct {
	TotalRepos       int      `json:"total_repos"`
	UpdatedRepos     int      `json:"updated_repos"`
	TotalCommits     int      `json:"total_commits"`
	Contributors     int      `json:"contributors"`
	Breaking         int      `json:"breaking_changes"`
	ContributorNames []string `json:"contributor_names"`
}

// AggregatedRelease is the complete, renderer-agnostic release snapshot.
type AggregatedRelease struct {
	Version     string             `json:"version"`
	GeneratedAt time.Time          `json:"generated_at"`
	Components  []ComponentRelease `json:"components"`
	Summary     ReleaseSummary     `json:"summary"`
}
