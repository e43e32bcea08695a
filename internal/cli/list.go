package cli

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/relnotes/internal/aggregate"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent releases per repository, newest first",
	Example: `  relnotes list -r api,web
  relnotes list -r api --limit 0`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	addRepoFlags(listCmd, false)
	listCmd.Flags().IntP("limit", "n", 10, "maximum releases per repository (0 for all)")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	repos, err := a.repos(cmd)
	if err != nil {
		return err
	}
	src, err := a.source()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	out := cmd.OutOrStdout()
	for i, repo := range repos {
		releases, err := src.ListReleases(cmd.Context(), repo)
		if err != nil {
			return fmt.Errorf("listing releases of %s: %w", repo, err)
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (%d releases)\n", repo, len(releases))
		if len(releases) == 0 {
			continue
		}

		sorted := aggregate.SortReleases(releases)
		slices.Reverse(sorted)
		if limit > 0 && len(sorted) > limit {
			sorted = sorted[:limit]
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, r := range sorted {
			notes, _, _ := strings.Cut(strings.TrimSpace(r.Notes), "\n")
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.Tag, r.CreatedAt.Format("2006-01-02"), truncate(notes, 60))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
