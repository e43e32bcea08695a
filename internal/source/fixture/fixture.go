// Package fixture serves release and commit facts from a YAML file.
//
//	repos:
//	  api:
//	    releases:
//	      - tag: v1.0.0
//	        created_at: 2024-01-01T00:00:00Z
//	        notes: First release
//	        commits:
//	          - sha: abc123
//	            message: "feat: initial api"
//	            author: alice
//	  web:
//	    error: "connection reset"
//
// Each release lists the commits it introduced. A repository with an error
// fails every fetch with that message.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sprite-ai/relnotes/internal/aggregate"
	"github.com/sprite-ai/relnotes/internal/conventional"
	"github.com/sprite-ai/relnotes/internal/model"
	"github.com/sprite-ai/relnotes/internal/source"
)

// File is the on-disk layout.
type File struct {
	Repos map[string]Repo `yaml:"repos"`
}

type Repo struct {
	Releases []Release `yaml:"releases"`
	Error    string    `yaml:"error,omitempty"`
}

type Release struct {
	Tag       string    `yaml:"tag"`
	CreatedAt time.Time `yaml:"created_at"`
	Notes     string    `yaml:"notes,omitempty"`
	Commits   []Commit  `yaml:"commits,omitempty"`
}

type Commit struct {
	SHA     string    `yaml:"sha"`
	Message string    `yaml:"message"`
	Author  string    `yaml:"author,omitempty"`
	Date    time.Time `yaml:"date,omitempty"`
}

// Source is a source.Source over a parsed facts file.
type Source struct {
	repos map[string]Repo
}

var _ source.Source = (*Source)(nil)

// Load reads and parses a facts file.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading facts: %w", err)
	}
	return Parse(data)
}

// Parse decodes facts from YAML.
func Parse(data []byte) (*Source, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing facts: %w", err)
	}
	for name, r := range f.Repos {
		for i, rel := range r.Releases {
			if rel.Tag == "" {
				return nil, fmt.Errorf("parsing facts: %s release %d has no tag", name, i)
			}
		}
	}
	return &Source{repos: f.Repos}, nil
}

func (s *Source) repo(name string) (Repo, error) {
	r, ok := s.repos[name]
	if !ok {
		return Repo{}, source.ErrRepoNotFound
	}
	if r.Error != "" {
		return Repo{}, errors.New(r.Error)
	}
	return r, nil
}

// ListReleases returns the releases of repo in file order.
func (s *Source) ListReleases(ctx context.Context, repo string) ([]model.ReleaseFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.repo(repo)
	if err != nil {
		return nil, source.Wrap(repo, "listing releases", err)
	}
	facts := make([]model.ReleaseFact, 0, len(r.Releases))
	for _, rel := range r.Releases {
		facts = append(facts, model.ReleaseFact{Tag: rel.Tag, CreatedAt: rel.CreatedAt, Notes: rel.Notes})
	}
	return facts, nil
}

// CommitsBetween returns the commits introduced by the releases after fromTag
// up to and including toTag, in chronological release order.
func (s *Source) CommitsBetween(ctx context.Context, repo, fromTag, toTag string) ([]model.CommitFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.repo(repo)
	if err != nil {
		return nil, source.Wrap(repo, "listing commits", err)
	}

	byTag := make(map[string][]Commit, len(r.Releases))
	facts := make([]model.ReleaseFact, 0, len(r.Releases))
	for _, rel := range r.Releases {
		byTag[rel.Tag] = rel.Commits
		facts = append(facts, model.ReleaseFact{Tag: rel.Tag, CreatedAt: rel.CreatedAt})
	}
	sorted := aggregate.SortReleases(facts)

	to := -1
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Tag == toTag {
			to = i
			break
		}
	}
	if to < 0 {
		return nil, source.Wrap(repo, "listing commits", fmt.Errorf("unknown tag %q", toTag))
	}
	from := -1
	if fromTag != "" {
		for i := to - 1; i >= 0; i-- {
			if sorted[i].Tag == fromTag {
				from = i
				break
			}
		}
	}

	var out []model.CommitFact
	for _, rel := range sorted[from+1 : to+1] {
		for _, c := range byTag[rel.Tag] {
			pr, issues := conventional.References(c.Message)
			out = append(out, model.CommitFact{
				SHA:         c.SHA,
				Message:     c.Message,
				Author:      c.Author,
				Date:        c.Date,
				PullRequest: pr,
				Issues:      issues,
			})
		}
	}
	return out, nil
}
