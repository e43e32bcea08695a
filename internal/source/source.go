// Package source defines the source-control facade relnotes reads release
// and commit facts from.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/sprite-ai/relnotes/internal/model"
)

// ErrRepoNotFound is returned when a repository does not exist or is not
// visible with the configured credentials.
var ErrRepoNotFound = errors.New("repository not found")

// Source provides release and commit facts for repositories. Implementations
// own retries, pagination and authentication.
type Source interface {
	// ListReleases returns every release of repo, in any order.
	ListReleases(ctx context.Context, repo string) ([]model.ReleaseFact, error)

	// CommitsBetween returns the commits reachable from toTag but not from
	// fromTag, oldest first. An empty fromTag means all commits up to toTag.
	CommitsBetween(ctx context.Context, repo, fromTag, toTag string) ([]model.CommitFact, error)
}

// FetchError records which repository and operation failed.
type FetchError struct {
	Repo string
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Repo, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Wrap annotates err with the repository and operation. It returns nil for a
// nil err and leaves an existing FetchError untouched.
func Wrap(repo, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Repo: repo, Op: op, Err: err}
}
