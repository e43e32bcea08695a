// Package config loads relnotes settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sprite-ai/relnotes/internal/collect"
	"github.com/sprite-ai/relnotes/internal/model"
	"github.com/sprite-ai/relnotes/internal/render"
)

// Source backends.
const (
	SourceGitHub  = "github"
	SourceGit     = "git"
	SourceFixture = "fixture"
)

type Config struct {
	GitHub       GitHub            `yaml:"github"`
	Source       string            `yaml:"source"`
	Repos        Repos             `yaml:"repos"`
	Output       Output            `yaml:"output"`
	Features     Features          `yaml:"features"`
	CommitTypes  map[string]string `yaml:"commit_types"`
	Concurrency  int               `yaml:"concurrency"`
	OnFetchError string            `yaml:"on_fetch_error"`
	Git          Git               `yaml:"git"`
	Fixture      Fixture           `yaml:"fixture"`

	// Token is only read from the environment or flags, never from the file.
	Token string `yaml:"-"`
}

type GitHub struct {
	Org     string `yaml:"org"`
	BaseURL string `yaml:"base_url"`
}

type Repos struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

type Output struct {
	Format   string `yaml:"format"`
	Path     string `yaml:"path"`
	Template string `yaml:"template"`
}

type Features struct {
	CategorizeCommits bool `yaml:"categorize_commits"`
	IncludePRs        bool `yaml:"include_prs"`
	IncludeIssues     bool `yaml:"include_issues"`
	IncludeStats      bool `yaml:"include_stats"`
}

type Git struct {
	Root string `yaml:"root"`
}

type Fixture struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	labels := make(map[string]string)
	for _, k := range model.Kinds() {
		if k != model.KindOther {
			labels[k.Token()] = k.Label()
		}
	}
	return &Config{
		Source: SourceGitHub,
		Output: Output{
			Format: string(render.FormatMarkdown),
			Path:   "releases",
		},
		Features: Features{
			CategorizeCommits: true,
			IncludePRs:        true,
			IncludeIssues:     true,
			IncludeStats:      true,
		},
		CommitTypes:  labels,
		Concurrency:  4,
		OnFetchError: string(collect.PolicyAbort),
		Git:          Git{Root: "."},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("GITHUB_TOKEN"); ok && strings.TrimSpace(v) != "" {
		c.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup("GITHUB_ORG"); ok && strings.TrimSpace(v) != "" {
		c.GitHub.Org = strings.TrimSpace(v)
	}
	if v, ok := lookup("GITHUB_API_URL"); ok && strings.TrimSpace(v) != "" {
		c.GitHub.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup("RELNOTES_CONCURRENCY"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("RELNOTES_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	return nil
}

// Validate checks the values that cannot be fixed up silently.
func (c *Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceGitHub, SourceGit, SourceFixture:
	default:
		errs = append(errs, fmt.Errorf("unknown source %q (want github, git or fixture)", c.Source))
	}
	if c.Source == SourceFixture && c.Fixture.Path == "" {
		errs = append(errs, errors.New("fixture source needs fixture.path"))
	}
	if _, err := render.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := collect.ParsePolicy(c.OnFetchError); err != nil {
		errs = append(errs, err)
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	return errors.Join(errs...)
}

// RepoList returns repos.include minus repos.exclude, in include order and
// without duplicates.
func (c *Config) RepoList() []string {
	var out []string
	for _, r := range c.Repos.Include {
		r = strings.TrimSpace(r)
		if r == "" || slices.Contains(c.Repos.Exclude, r) || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RenderOptions builds renderer options from the output and feature settings.
func (c *Config) RenderOptions() (render.Options, error) {
	format, err := render.ParseFormat(c.Output.Format)
	if err != nil {
		return render.Options{}, err
	}
	return render.Options{
		Format:        format,
		IncludePRs:    c.Features.IncludePRs,
		IncludeIssues: c.Features.IncludeIssues,
		Categorize:    c.Features.CategorizeCommits,
		IncludeStats:  c.Features.IncludeStats,
		Labels:        c.CommitTypes,
		Template:      c.Output.Template,
	}, nil
}
