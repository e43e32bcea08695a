package fixture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sprite-ai/relnotes/internal/source"
)

const sampleFacts = `
repos:
  api:
    releases:
      - tag: v1.1.0
        created_at: 2024-02-01T00:00:00Z
        notes: Second
        commits:
          - sha: c3
            message: "fix: retry (#7)"
            author: bob
      - tag: v1.0.0
        created_at: 2024-01-01T00:00:00Z
        commits:
          - sha: c1
            message: "feat: init"
            author: alice
          - sha: c2
            message: "docs: readme"
            author: alice
  broken:
    error: connection reset
`

func load(t *testing.T) *Source {
	t.Helper()
	s, err := Parse([]byte(sampleFacts))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return s
}

func TestListReleases(t *testing.T) {
	s := load(t)
	rels, err := s.ListReleases(context.Background(), "api")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 2 || rels[0].Tag != "v1.1.0" || rels[0].Notes != "Second" {
		t.Errorf("releases = %+v", rels)
	}
	if rels[1].CreatedAt.Year() != 2024 || rels[1].CreatedAt.Month() != 1 {
		t.Errorf("created_at = %v", rels[1].CreatedAt)
	}
}

func TestCommitsBetween(t *testing.T) {
	s := load(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{"range", "v1.0.0", "v1.1.0", []string{"c3"}},
		{"initial", "", "v1.0.0", []string{"c1", "c2"}},
		{"everything", "", "v1.1.0", []string{"c1", "c2", "c3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.CommitsBetween(ctx, "api", tt.from, tt.to)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d commits, want %d", len(got), len(tt.want))
			}
			for i, c := range got {
				if c.SHA != tt.want[i] {
					t.Errorf("commit %d = %s, want %s", i, c.SHA, tt.want[i])
				}
			}
		})
	}

	got, _ := s.CommitsBetween(ctx, "api", "v1.0.0", "v1.1.0")
	if got[0].PullRequest != 7 {
		t.Errorf("pr = %d, want 7", got[0].PullRequest)
	}

	if _, err := s.CommitsBetween(ctx, "api", "", "v9"); err == nil {
		t.Error("expected error for unknown tag")
	}
}

func TestErrors(t *testing.T) {
	s := load(t)
	ctx := context.Background()

	_, err := s.ListReleases(ctx, "ghost")
	if !errors.Is(err, source.ErrRepoNotFound) {
		t.Errorf("expected ErrRepoNotFound, got %v", err)
	}

	_, err = s.ListReleases(ctx, "broken")
	var fe *source.FetchError
	if !errors.As(err, &fe) || fe.Err.Error() != "connection reset" {
		t.Errorf("expected configured failure, got %v", err)
	}

	if _, err := Parse([]byte("repos:\n  x:\n    releases:\n      - notes: no tag\n")); err == nil {
		t.Error("expected error for release without tag")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yaml")
	if err := os.WriteFile(path, []byte(sampleFacts), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
