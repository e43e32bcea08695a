package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/relnotes/internal/collect"
	"github.com/sprite-ai/relnotes/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which repositories have a release for a version",
	Long: `Resolve the version tag in every repository without fetching commits.
Useful in CI before publishing notes.

Exit codes:
  0 - every repository has the release
  1 - at least one repository does not, or a fetch failed`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	addRepoFlags(checkCmd, true)
	checkCmd.Flags().Bool("json", false, "print the result as JSON")
}

type checkEntry struct {
	Repo     string `json:"repo"`
	Released bool   `json:"released"`
	Previous string `json:"previous,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	version, err := versionFlag(cmd)
	if err != nil {
		return err
	}
	repos, err := a.repos(cmd)
	if err != nil {
		return err
	}
	src, err := a.source()
	if err != nil {
		return err
	}

	opts := a.collectOptions()
	opts.SkipCommits = true
	res, err := collect.Run(cmd.Context(), src, version, repos, opts)
	if err != nil {
		return err
	}

	entries := make([]checkEntry, 0, len(res.Release.Components))
	missing := len(res.Skipped)
	for _, c := range res.Release.Components {
		e := checkEntry{Repo: c.Repository}
		switch s := c.Status.(type) {
		case model.Released:
			e.Released = true
			e.Previous = s.Previous
		case model.NoRelease:
			e.Latest = s.LatestVersion
			missing++
		}
		entries = append(entries, e)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return err
		}
	} else {
		for _, e := range entries {
			if e.Released {
				prev := e.Previous
				if prev == "" {
					prev = "initial release"
				}
				fmt.Fprintf(out, "%s %s %s (previous: %s)\n", color.GreenString("✓"), e.Repo, version, prev)
				continue
			}
			latest := e.Latest
			if latest == "" {
				latest = "none"
			}
			fmt.Fprintf(out, "%s %s not released (latest: %s)\n", color.RedString("✗"), e.Repo, latest)
		}
		for _, s := range res.Skipped {
			fmt.Fprintf(out, "%s %s fetch failed: %v\n", color.RedString("✗"), s.Repo, s.Err)
		}
		fmt.Fprintf(out, "\n%d/%d repositories released %s\n", len(repos)-missing, len(repos), version)
	}

	if missing > 0 {
		return errMissingRelease
	}
	return nil
}
