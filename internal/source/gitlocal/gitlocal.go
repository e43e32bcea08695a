// Package gitlocal reads release and commit facts from local git checkouts.
// Tags stand in for releases; each repository is a directory, absolute or
// relative to Root.
package gitlocal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sprite-ai/relnotes/internal/conventional"
	"github.com/sprite-ai/relnotes/internal/model"
	"github.com/sprite-ai/relnotes/internal/source"
)

// Source is a source.Source over local git repositories.
type Source struct {
	Root string
}

var _ source.Source = (*Source)(nil)

// New returns a Source rooted at root.
func New(root string) *Source {
	return &Source{Root: root}
}

func (s *Source) dir(repo string) (string, error) {
	dir := filepath.FromSlash(repo)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.Root, dir)
	}
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil || (!info.IsDir() && !info.Mode().IsRegular()) {
		return "", fmt.Errorf("%w: no git checkout at %s", source.ErrRepoNotFound, dir)
	}
	return dir, nil
}

// ListReleases returns one fact per tag, dated by the tag's creator date.
func (s *Source) ListReleases(ctx context.Context, repo string) ([]model.ReleaseFact, error) {
	dir, err := s.dir(repo)
	if err != nil {
		return nil, source.Wrap(repo, "listing tags", err)
	}
	out, err := git(ctx, dir, "for-each-ref", "--sort=creatordate",
		"--format=%(refname:short)%00%(creatordate:iso-strict)%00%(contents:subject)", "refs/tags")
	if err != nil {
		return nil, source.Wrap(repo, "listing tags", err)
	}
	facts, err := parseTags(out)
	if err != nil {
		return nil, source.Wrap(repo, "listing tags", err)
	}
	return facts, nil
}

// CommitsBetween returns the commits reachable from toTag but not fromTag,
// oldest first.
func (s *Source) CommitsBetween(ctx context.Context, repo, fromTag, toTag string) ([]model.CommitFact, error) {
	dir, err := s.dir(repo)
	if err != nil {
		return nil, source.Wrap(repo, "reading log", err)
	}
	rev := toTag
	if fromTag != "" {
		rev = fromTag + ".." + toTag
	}
	out, err := git(ctx, dir, "log", "--reverse", "--no-decorate", "--format=fuller", "--date=iso", rev, "--")
	if err != nil {
		return nil, source.Wrap(repo, "reading log", err)
	}
	facts, err := parseLog(out)
	if err != nil {
		return nil, source.Wrap(repo, "reading log", err)
	}
	return facts, nil
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return "", fmt.Errorf("git %s: %s", args[0], msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}

func parseTags(out string) ([]model.ReleaseFact, error) {
	var facts []model.ReleaseFact
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\x00", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed tag line %q", line)
		}
		created, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", parts[0], err)
		}
		f := model.ReleaseFact{Tag: parts[0], CreatedAt: created.UTC()}
		if len(parts) == 3 {
			f.Notes = parts[2]
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// parseLog splits `git log --format=fuller` output into commits and parses
// each header with go-gitdiff.
func parseLog(out string) ([]model.CommitFact, error) {
	var facts []model.CommitFact
	for _, chunk := range splitCommits(out) {
		hdr, err := gitdiff.ParsePatchHeader(chunk)
		if err != nil {
			return nil, fmt.Errorf("parsing commit header: %w", err)
		}
		msg := hdr.Title
		if hdr.Body != "" {
			msg += "\n\n" + hdr.Body
		}
		var author string
		if hdr.Author != nil {
			author = hdr.Author.Name
		}
		pr, issues := conventional.References(msg)
		facts = append(facts, model.CommitFact{
			SHA:         hdr.SHA,
			Message:     msg,
			Author:      author,
			Date:        hdr.AuthorDate.UTC(),
			PullRequest: pr,
			Issues:      issues,
		})
	}
	return facts, nil
}

// splitCommits cuts log output at each unindented "commit " line. Message
// lines are indented by git so they never match. Merge lines are dropped and
// date lines are normalized for the header parser.
func splitCommits(out string) []string {
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s+"\n")
		}
		cur.Reset()
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "commit ") {
			flush()
		}
		if strings.HasPrefix(line, "Merge:") {
			continue
		}
		if strings.HasPrefix(line, "AuthorDate:") || strings.HasPrefix(line, "CommitDate:") {
			line = normalizeDate(line)
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	return chunks
}

// normalizeDate rewrites a strict ISO date with a "Z" zone, as printed by
// newer git for UTC, to the "+00:00" offset go-gitdiff understands.
func normalizeDate(line string) string {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return line
	}
	value = strings.TrimSpace(value)
	if !strings.HasSuffix(value, "Z") {
		return line
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return line
	}
	return key + ": " + t.UTC().Format("2006-01-02T15:04:05-07:00")
}
