package records

import (
	"fmt"
	"slices"
	"time"
)

// MatchStatus is the lifecycle state of a match record.
type MatchStatus string

const (
	StatusPending       MatchStatus = "pending"
	StatusViewed        MatchStatus = "viewed"
	StatusInterested    MatchStatus = "interested"
	StatusNotInterested MatchStatus = "not_interested"
	StatusContacted     MatchStatus = "contacted"
	StatusExpired       MatchStatus = "expired"
)

// Statuses lists every match status in lifecycle order.
var Statuses = []MatchStatus{
	StatusPending, StatusViewed, StatusInterested, StatusNotInterested, StatusContacted, StatusExpired,
}

// ParseStatus accepts the canonical status names and the dashed spelling of not_interested.
func ParseStatus(s string) (MatchStatus, error) {
	if s == "not-interested" {
		return StatusNotInterested, nil
	}
	status := MatchStatus(s)
	if !slices.Contains(Statuses, status) {
		return "", fmt.Errorf("unknown match status %q", s)
	}
	return status, nil
}

// Key identifies a match record.
type Key struct {
	CandidateID string `json:"candidate_id"`
	JobID       string `json:"job_id"`
}

func (k Key) String() string {
	return k.CandidateID + "/" + k.JobID
}

// MatchRecord is the persisted scoring artefact of a candidate/job pair. Dimension scores and
// Overall are rounded to two decimals; OverallExact keeps full precision for ranking.
type MatchRecord struct {
	CandidateID    string      `json:"candidate_id"`
	JobID          string      `json:"job_id"`
	Skill          float64     `json:"skill_score"`
	Experience     float64     `json:"experience_score"`
	Education      float64     `json:"education_score"`
	Location       float64     `json:"location_score"`
	Overall        float64     `json:"overall_score"`
	OverallExact   float64     `json:"overall_exact"`
	MatchedSkills  []string    `json:"matched_skills"`
	MissingSkills  []string    `json:"missing_skills"`
	Grade          string      `json:"grade,omitempty"`
	Reasons        []string    `json:"reasons,omitempty"`
	Recommendation string      `json:"recommendation,omitempty"`
	Status         MatchStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
	Generation     uint64      `json:"generation"`
}

func (r *MatchRecord) Key() Key {
	return Key{CandidateID: r.CandidateID, JobID: r.JobID}
}

// Clone returns a deep copy so callers never share slices with the store.
func (r *MatchRecord) Clone() *MatchRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.MatchedSkills = slices.Clone(r.MatchedSkills)
	out.MissingSkills = slices.Clone(r.MissingSkills)
	out.Reasons = slices.Clone(r.Reasons)
	return &out
}

// Expired reports whether the record is expired by status or by TTL at now.
func (r *MatchRecord) Expired(now time.Time) bool {
	return r.Status == StatusExpired || (!r.ExpiresAt.IsZero() && now.After(r.ExpiresAt))
}
