package aggregate

import (
	"errors"
	"sort"

	"github.com/sprite-ai/relnotes/internal/conventional"
	"github.com/sprite-ai/relnotes/internal/model"
)

// Process builds the ComponentRelease for one repository. A missing target
// release is not an error: the component is reported as NoRelease with the
// latest release the repository does have.
func Process(repo, target string, history []model.ReleaseFact, commits []model.CommitFact) model.ComponentRelease {
	current, previous, err := Resolve(history, target)
	if errors.Is(err, ErrNotFound) {
		return model.ComponentRelease{Repository: repo, Status: noRelease(history)}
	}

	enriched := make([]model.EnrichedCommit, len(commits))
	for i, c := range commits {
		enriched[i] = enrich(c)
	}

	released := model.Released{
		Current:     current.Tag,
		ReleaseDate: current.CreatedAt,
		Commits:     enriched,
		Notes:       current.Notes,
		Stats:       computeStats(enriched),
	}
	if previous != nil {
		released.Previous = previous.Tag
	}
	return model.ComponentRelease{Repository: repo, Status: released}
}

func noRelease(history []model.ReleaseFact) model.NoRelease {
	latest := Latest(history)
	if latest == nil {
		return model.NoRelease{}
	}
	date := latest.CreatedAt
	return model.NoRelease{LatestVersion: latest.Tag, LatestDate: &date}
}

func enrich(c model.CommitFact) model.EnrichedCommit {
	h := conventional.Parse(c.Message)
	return model.EnrichedCommit{
		CommitFact: c,
		Type:       h.Type,
		Breaking:   h.Breaking,
		Scope:      h.Scope,
		Subject:    h.Description,
	}
}

func computeStats(commits []model.EnrichedCommit) model.ReleaseStats {
	stats := model.ReleaseStats{
		CommitCount: len(commits),
		ByType:      make(map[model.CommitType]int),
	}
	seen := make(map[string]bool)
	for _, c := range commits {
		stats.ByType[c.Type]++
		if c.Breaking {
			stats.Breaking++
		}
		if c.Author != "" && !seen[c.Author] {
			seen[c.Author] = true
			stats.Contributors = append(stats.Contributors, c.Author)
		}
	}
	sort.Strings(stats.Contributors)
	if stats.Contributors == nil {
		stats.Contributors = []string{}
	}
	return stats
}

// Summarize computes the cross-repository totals for a set of components.
func Summarize(components []model.ComponentRelease) model.ReleaseSummary {
	summary := model.ReleaseSummary{TotalRepos: len(components)}
	contributors := make(map[string]bool)
	for _, c := range components {
		switch s := c.Status.(type) {
		case model.Released:
			summary.UpdatedRepos++
			summary.TotalCommits += s.Stats.CommitCount
			summary.Breaking += s.Stats.Breaking
			for _, name := range s.Stats.Contributors {
				contributors[name] = true
			}
		case model.NoRelease:
		}
	}

	summary.Contributors = len(contributors)
	summary.ContributorNames = make([]string, 0, len(contributors))
	for name := range contributors {
		summary.ContributorNames = append(summary.ContributorNames, name)
	}
	sort.Strings(summary.ContributorNames)
	return summary
}
