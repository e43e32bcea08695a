package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sprite-ai/relnotes/internal/collect"
	"github.com/sprite-ai/relnotes/internal/render"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate aggregated release notes for a version",
	Long: `Fetch releases and commits for each repository, resolve the given
version tag in each one and render the combined release notes.

Repositories without the tag are listed as not released, with their
latest version.`,
	Example: `  relnotes generate -v v2.0.0 -r api,web
  relnotes generate -v v2.0.0 -f html -o release.html
  relnotes generate -v v2.0.0 --facts facts.yaml --save`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	addRepoFlags(generateCmd, true)
	f := generateCmd.Flags()
	f.StringP("output", "o", "", "write to this file instead of stdout")
	f.StringP("format", "f", "", "output format: markdown, json, html, text")
	f.Bool("save", false, "write to <output.path>/<version>.<ext> from the config")
	f.Bool("include-prs", true, "show pull request references")
	f.Bool("include-issues", true, "show issue references")
	f.Bool("categorize", true, "group commits by type")
	f.Bool("stats", true, "include summary and per-repository stats")
	f.String("template", "", "custom markdown template file")
	f.String("link-base", "", "base URL for PR and issue links, e.g. https://github.com/acme")
	f.Bool("no-color", false, "disable colored text output")
}

func runGenerate(cmd *cobra.Command, args []string) error {
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
	opts, err := renderOptions(cmd, a)
	if err != nil {
		return err
	}

	src, err := a.source()
	if err != nil {
		return err
	}

	copts := a.collectOptions()
	if isTerminal(os.Stderr) {
		copts.Progress = progressPrinter(cmd.ErrOrStderr())
	}
	res, err := collect.Run(cmd.Context(), src, version, repos, copts)
	if err != nil {
		return err
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s skipped %s: %v\n", color.YellowString("!"), s.Repo, s.Err)
	}

	path := outputPath(cmd, a, version, opts.Format)
	if opts.Format == render.FormatText && path == "" {
		noColor, _ := cmd.Flags().GetBool("no-color")
		opts.Color = !noColor && isTerminal(os.Stdout)
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, res.Release, opts); err != nil {
		return err
	}
	if path == "" {
		_, err = buf.WriteTo(cmd.OutOrStdout())
		return err
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return err
	}
	a.log.Info("wrote release notes", "path", path)
	fmt.Fprintf(cmd.ErrOrStderr(), "%s wrote %s\n", color.GreenString("✓"), path)
	return nil
}

// renderOptions starts from the config and applies the feature flags the user
// set explicitly.
func renderOptions(cmd *cobra.Command, a *app) (render.Options, error) {
	opts, err := a.cfg.RenderOptions()
	if err != nil {
		return opts, err
	}
	f := cmd.Flags()
	if f.Changed("format") {
		s, _ := f.GetString("format")
		if opts.Format, err = render.ParseFormat(s); err != nil {
			return opts, err
		}
	}
	if f.Changed("include-prs") {
		opts.IncludePRs, _ = f.GetBool("include-prs")
	}
	if f.Changed("include-issues") {
		opts.IncludeIssues, _ = f.GetBool("include-issues")
	}
	if f.Changed("categorize") {
		opts.Categorize, _ = f.GetBool("categorize")
	}
	if f.Changed("stats") {
		opts.IncludeStats, _ = f.GetBool("stats")
	}
	if f.Changed("template") {
		opts.Template, _ = f.GetString("template")
	}
	opts.LinkBase, _ = f.GetString("link-base")
	return opts, nil
}

// outputPath is the --output file, the --save location, or "" for stdout.
func outputPath(cmd *cobra.Command, a *app, version string, format render.Format) string {
	path, _ := cmd.Flags().GetString("output")
	if save, _ := cmd.Flags().GetBool("save"); save && path == "" {
		path = filepath.Join(a.cfg.Output.Path, version+"."+extension(format))
	}
	return path
}

func writeFile(path string, data []byte) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", cerr)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}

func extension(f render.Format) string {
	switch f {
	case render.FormatJSON:
		return "json"
	case render.FormatHTML:
		return "html"
	case render.FormatText:
		return "txt"
	default:
		return "md"
	}
}

func progressPrinter(w io.Writer) func(collect.Event) {
	return func(ev collect.Event) {
		switch ev.Kind {
		case collect.EventSkipped:
			fmt.Fprintf(w, "[%d/%d] %s %s: %s\n", ev.Done, ev.Total, color.RedString("✗"), ev.Repo, ev.Error)
		default:
			mark := color.GreenString("●")
			if !ev.Released {
				mark = color.HiBlackString("○")
			}
			fmt.Fprintf(w, "[%d/%d] %s %s (%d commits)\n", ev.Done, ev.Total, mark, ev.Repo, ev.Commits)
		}
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
