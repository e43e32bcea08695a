package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status discriminators used in the JSON form of a ComponentRelease.
const (
	StatusReleased  = "released"
	StatusNoRelease = "no_release"
)

type componentJSON struct {
	Repository string `json:"repository"`
	Status     string `json:"status"`

	// released
	CurrentVersion  string           `json:"current_version,omitempty"`
	PreviousVersion string           `json:"previous_version,omitempty"`
	ReleaseDate     *time.Time       `json:"release_date,omitempty"`
	Commits         []EnrichedCommit `json:"commits,omitempty"`
	Notes           string           `json:"release_notes,omitempty"`
	Stats           *ReleaseStats    `json:"stats,omitempty"`

	// no_release
	LatestVersion string     `json:"latest_version,omitempty"`
	LatestDate    *time.Time `json:"latest_date,omitempty"`
}

// StatusName returns the discriminator for a status value.
func StatusName(s ComponentStatus) string {
	switch s.(type) {
	case Released:
		return StatusReleased
	case NoRelease:
		return StatusNoRelease
	default:
		return "unknown"
	}
}

// MarshalJSON flattens the status variant into the component object.
func (c ComponentRelease) MarshalJSON() ([]byte, error) {
	out := componentJSON{Repository: c.Repository}
	switch s := c.Status.(type) {
	case Released:
		date := s.ReleaseDate
		stats := s.Stats
		out.Status = StatusReleased
		out.CurrentVersion = s.Current
		out.PreviousVersion = s.Previous
		out.ReleaseDate = &date
		out.Commits = s.Commits
		out.Notes = s.Notes
		out.Stats = &stats
	case NoRelease:
		out.Status = StatusNoRelease
		out.LatestVersion = s.LatestVersion
		out.LatestDate = s.LatestDate
	default:
		return nil, fmt.Errorf("component %s: unknown status %T", c.Repository, c.Status)
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *ComponentRelease) UnmarshalJSON(b []byte) error {
	var in componentJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	c.Repository = in.Repository
	switch in.Status {
	case StatusReleased:
		r := Released{
			Current:  in.CurrentVersion,
			Previous: in.PreviousVersion,
			Commits:  in.Commits,
			Notes:    in.Notes,
		}
		if in.ReleaseDate != nil {
			r.ReleaseDate = *in.ReleaseDate
		}
		if in.Stats != nil {
			r.Stats = *in.Stats
		}
		c.Status = r
	case StatusNoRelease:
		c.Status = NoRelease{LatestVersion: in.LatestVersion, LatestDate: in.LatestDate}
	default:
		return fmt.Errorf("component %s: unknown status %q", in.Repository, in.Status)
	}
	return nil
}
