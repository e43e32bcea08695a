package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/relnotes/internal/collect"
	"github.com/sprite-ai/relnotes/internal/model"
	"github.com/sprite-ai/relnotes/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse an aggregated release interactively",
	Long: `Open the terminal browser on an aggregated release. The release is
either built from the configured source (--version) or read from a JSON
file written by "generate -f json" (--from).`,
	Example: `  relnotes browse -v v2.0.0 -r api,web
  relnotes browse --from releases/v2.0.0.json`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	addRepoFlags(browseCmd, true)
	browseCmd.Flags().String("from", "", "read a JSON release instead of fetching")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	if !isTerminal(os.Stdout) {
		return errors.New("browse needs an interactive terminal; use generate instead")
	}

	rel, err := loadRelease(cmd, a)
	if err != nil {
		return err
	}
	opts, err := a.cfg.RenderOptions()
	if err != nil {
		return err
	}
	return tui.Run(rel, opts)
}

func loadRelease(cmd *cobra.Command, a *app) (*model.AggregatedRelease, error) {
	if from, _ := cmd.Flags().GetString("from"); from != "" {
		return readRelease(from)
	}

	version, err := versionFlag(cmd)
	if err != nil {
		return nil, err
	}
	repos, err := a.repos(cmd)
	if err != nil {
		return nil, err
	}
	src, err := a.source()
	if err != nil {
		return nil, err
	}
	res, err := collect.Run(cmd.Context(), src, version, repos, a.collectOptions())
	if err != nil {
		return nil, err
	}
	return res.Release, nil
}

func readRelease(path string) (*model.AggregatedRelease, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading release: %w", err)
	}
	var rel model.AggregatedRelease
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("parsing release %s: %w", path, err)
	}
	return &rel, nil
}
