// Package aggregate turns per-repository release and commit facts into a
// single AggregatedRelease.
package aggregate

import (
	"errors"
	"slices"

	"github.com/sprite-ai/relnotes/internal/model"
)

// ErrNotFound is returned by Resolve when the history has no release with
// the requested tag.
var ErrNotFound = errors.New("release not found")

// SortReleases returns a copy of history ordered by creation time, oldest
// first. Releases created at the same instant are ordered by tag.
func SortReleases(history []model.ReleaseFact) []model.ReleaseFact {
	sorted := slices.Clone(history)
	slices.SortStableFunc(sorted, compareReleases)
	return sorted
}

func compareReleases(a, b model.ReleaseFact) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.Tag < b.Tag:
		return -1
	case a.Tag > b.Tag:
		return 1
	}
	return 0
}

// Resolve finds the release tagged target and the release immediately
// preceding it. previous is nil when target is the oldest release.
// The tag match is exact and case-sensitive.
func Resolve(history []model.ReleaseFact, target string) (current model.ReleaseFact, previous *model.ReleaseFact, err error) {
	sorted := SortReleases(history)

	idx := -1
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Tag == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.ReleaseFact{}, nil, ErrNotFound
	}

	current = sorted[idx]
	for i := idx - 1; i >= 0; i-- {
		if sorted[i].CreatedAt.Before(current.CreatedAt) {
			prev := sorted[i]
			return current, &prev, nil
		}
	}
	return current, nil, nil
}

// Latest returns the most recent release in history, or nil if it is empty.
func Latest(history []model.ReleaseFact) *model.ReleaseFact {
	if len(history) == 0 {
		return nil
	}
	sorted := SortReleases(history)
	latest := sorted[len(sorted)-1]
	return &latest
}
