package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/relnotes/internal/render"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, SourceGitHub, cfg.Source)
	assert.Equal(t, "markdown", cfg.Output.Format)
	assert.Equal(t, "releases", cfg.Output.Path)
	assert.True(t, cfg.Features.CategorizeCommits)
	assert.True(t, cfg.Features.IncludeStats)
	assert.Equal(t, "✨ Features", cfg.CommitTypes["feat"])
	assert.Equal(t, "👷 CI/CD", cfg.CommitTypes["ci"])
	assert.NotContains(t, cfg.CommitTypes, "other")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relnotes.yaml")
	content := `
github:
  org: acme
repos:
  include: [api, web, cli, api]
  exclude: [cli]
output:
  format: html
features:
  include_prs: false
commit_types:
  feat: "Features"
concurrency: 8
on_fetch_error: exclude
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "acme", cfg.GitHub.Org)
	assert.Equal(t, []string{"api", "web"}, cfg.RepoList())
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "exclude", cfg.OnFetchError)
	assert.False(t, cfg.Features.IncludePRs)
	assert.True(t, cfg.Features.IncludeIssues, "unset features keep their defaults")
	assert.Equal(t, "Features", cfg.CommitTypes["feat"])
	assert.Equal(t, "🐛 Bug Fixes", cfg.CommitTypes["fix"], "yaml merges into the default map")

	opts, err := cfg.RenderOptions()
	require.NoError(t, err)
	assert.Equal(t, render.FormatHTML, opts.Format)
	assert.False(t, opts.IncludePRs)
	assert.True(t, opts.Categorize)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repos: [unclosed"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GITHUB_TOKEN":         " ghp_abc ",
		"GITHUB_ORG":           "other",
		"GITHUB_API_URL":       "https://ghe.example.com/api/v3/",
		"RELNOTES_CONCURRENCY": "2",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "ghp_abc", cfg.Token)
	assert.Equal(t, "other", cfg.GitHub.Org)
	assert.Equal(t, "https://ghe.example.com/api/v3/", cfg.GitHub.BaseURL)
	assert.Equal(t, 2, cfg.Concurrency)

	env["RELNOTES_CONCURRENCY"] = "many"
	assert.Error(t, cfg.applyEnv(lookup))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad source", func(c *Config) { c.Source = "svn" }},
		{"fixture without path", func(c *Config) { c.Source = SourceFixture }},
		{"bad format", func(c *Config) { c.Output.Format = "pdf" }},
		{"bad policy", func(c *Config) { c.OnFetchError = "ignore" }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
