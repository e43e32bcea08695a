// Package cli implements the relnotes command line.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/relnotes/internal/collect"
	"github.com/sprite-ai/relnotes/internal/config"
	"github.com/sprite-ai/relnotes/internal/logger"
	"github.com/sprite-ai/relnotes/internal/source"
	"github.com/sprite-ai/relnotes/internal/source/fixture"
	"github.com/sprite-ai/relnotes/internal/source/github"
	"github.com/sprite-ai/relnotes/internal/source/gitlocal"
)

// errMissingRelease makes check exit non-zero without printing an error.
var errMissingRelease = errors.New("release missing from one or more repositories")

var rootCmd = &cobra.Command{
	Use:   "relnotes",
	Short: "Aggregate release notes across repositories",
	Long: `relnotes collects the releases and commits of several repositories,
classifies commits by conventional-commit type and produces one combined
release document for a version tag.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to YAML config file")
	pf.String("token", "", "GitHub token (default $GITHUB_TOKEN)")
	pf.String("org", "", "GitHub organization for bare repository names (default $GITHUB_ORG)")
	pf.String("source", "", "where facts come from: github, git, fixture")
	pf.String("facts", "", "facts file for the fixture source")
	pf.String("git-root", "", "directory holding local checkouts for the git source")
	pf.Int("concurrency", 0, "repositories fetched in parallel")
	pf.String("on-error", "", "fetch failure policy: abort, exclude")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(generateCmd, checkCmd, listCmd, serveCmd, browseCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errMissingRelease) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// newLogger builds the command logger; tests swap it for an observer.
var newLogger = logger.New

// app is the per-invocation state shared by commands.
type app struct {
	cfg *config.Config
	log *logger.Logger
}

// setup loads the config file and environment, then applies any flags the
// user set explicitly.
func setup(cmd *cobra.Command) (*app, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("token") {
		cfg.Token, _ = flags.GetString("token")
	}
	if flags.Changed("org") {
		cfg.GitHub.Org, _ = flags.GetString("org")
	}
	if flags.Changed("source") {
		cfg.Source, _ = flags.GetString("source")
	}
	if flags.Changed("facts") {
		cfg.Fixture.Path, _ = flags.GetString("facts")
		if !flags.Changed("source") {
			cfg.Source = config.SourceFixture
		}
	}
	if flags.Changed("git-root") {
		cfg.Git.Root, _ = flags.GetString("git-root")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("on-error") {
		cfg.OnFetchError, _ = flags.GetString("on-error")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := flags.GetString("log-level")
	log, err := newLogger(level)
	if err != nil {
		return nil, err
	}
	log.Debug("configuration loaded", "source", cfg.Source, "org", cfg.GitHub.Org, "token_set", cfg.Token != "")
	return &app{cfg: cfg, log: log}, nil
}

// source builds the configured facts source.
func (a *app) source() (source.Source, error) {
	switch a.cfg.Source {
	case config.SourceFixture:
		return fixture.Load(a.cfg.Fixture.Path)
	case config.SourceGit:
		return gitlocal.New(a.cfg.Git.Root), nil
	default:
		if a.cfg.Token == "" {
			a.log.Warn("no GitHub token set; requests are unauthenticated and heavily rate limited")
		}
		return github.New(github.Config{
			Token:   a.cfg.Token,
			Org:     a.cfg.GitHub.Org,
			BaseURL: a.cfg.GitHub.BaseURL,
		}, a.log)
	}
}

func (a *app) collectOptions() collect.Options {
	policy, _ := collect.ParsePolicy(a.cfg.OnFetchError)
	return collect.Options{
		Concurrency: a.cfg.Concurrency,
		Policy:      policy,
		Logger:      a.log,
	}
}

// repos returns the --repos flag, or the config's include list minus excludes.
func (a *app) repos(cmd *cobra.Command) ([]string, error) {
	var repos []string
	if cmd.Flags().Changed("repos") {
		raw, _ := cmd.Flags().GetStringSlice("repos")
		for _, r := range raw {
			if r = strings.TrimSpace(r); r != "" {
				repos = append(repos, r)
			}
		}
	} else {
		repos = a.cfg.RepoList()
	}
	if len(repos) == 0 {
		return nil, errors.New("no repositories given; use --repos or repos.include in the config")
	}
	return repos, nil
}

func addRepoFlags(cmd *cobra.Command, withVersion bool) {
	cmd.Flags().StringSliceP("repos", "r", nil, "comma-separated repository names")
	if withVersion {
		cmd.Flags().StringP("version", "v", "", "version tag to aggregate")
	}
}

func versionFlag(cmd *cobra.Command) (string, error) {
	v, _ := cmd.Flags().GetString("version")
	if strings.TrimSpace(v) == "" {
		return "", errors.New("--version is required")
	}
	return v, nil
}
