// Package records holds the structured candidate, job and match shapes consumed and produced by the
// matching engine.
package records

import (
	"strings"
	"time"
)

// Visibility controls who may see a talent pool profile.
type Visibility string

const (
	VisibilityPublic         Visibility = "public"
	VisibilityPrivate        Visibility = "private"
	VisibilityRecruitersOnly Visibility = "recruiters_only"
)

// JobStatus is the publication state of a job post.
type JobStatus string

const (
	JobDraft     JobStatus = "draft"
	JobPublished JobStatus = "published"
	JobPaused    JobStatus = "paused"
	JobClosed    JobStatus = "closed"
)

// Experience is one employment period. A nil EndYear means "present"; a nil StartYear means the
// start could not be determined.
type Experience struct {
	StartYear *int `json:"start_year,omitempty"`
	EndYear   *int `json:"end_year,omitempty"`
}

// Education is one degree entry with a free-form label.
type Education struct {
	Degree string `json:"degree"`
}

type SalaryBand struct {
	Min float64 `json:"min" validate:"gte=0"`
	Max float64 `json:"max" validate:"omitempty,gtefield=Min"`
}

// PoolEntry is the talent pool state of a candidate.
type PoolEntry struct {
	Active            bool       `json:"active"`
	Available         bool       `json:"available"`
	Visibility        Visibility `json:"visibility" validate:"oneof=public private recruiters_only"`
	AllowContact      bool       `json:"allow_contact"`
	AutoMatchEnabled  bool       `json:"auto_match_enabled"`
	MinScoreThreshold float64    `json:"min_score_threshold" validate:"gte=0,lte=1"`
}

// Eligible reports whether the entry takes part in automatic matching.
func (p PoolEntry) Eligible() bool {
	if !p.Active || !p.Available || !p.AutoMatchEnabled {
		return false
	}
	return p.Visibility == VisibilityPublic || p.Visibility == VisibilityRecruitersOnly
}

// DefaultPoolEntry mirrors the defaults of a freshly created talent pool entry.
func DefaultPoolEntry() PoolEntry {
	return PoolEntry{
		Active:            true,
		Available:         true,
		Visibility:        VisibilityPublic,
		AllowContact:      true,
		AutoMatchEnabled:  true,
		MinScoreThreshold: 0.5,
	}
}

// Candidate is an immutable per-evaluation snapshot of a candidate profile.
type Candidate struct {
	ID          string       `json:"id" validate:"required"`
	Location    string       `json:"location"`
	Skills      []string     `json:"skills"`
	Experiences []Experience `json:"experiences"`
	Educations  []Education  `json:"educations"`
	Salary      SalaryBand   `json:"salary"`
	Available   bool         `json:"available"`
	Pool        PoolEntry    `json:"pool"`
	UpdatedAt   time.Time    `json:"updated_at,omitempty"`
}

// DegreeLabels returns the education labels in profile order.
func (c *Candidate) DegreeLabels() []string {
	labels := make([]string, 0, len(c.Educations))
	for _, edu := range c.Educations {
		labels = append(labels, edu.Degree)
	}
	return labels
}

// Region is the case-folded last location part, or "" when the location has a single part.
func (c *Candidate) Region() string {
	return Region(c.Location)
}

// Job is a job post snapshot.
type Job struct {
	ID              string     `json:"id" validate:"required"`
	Location        string     `json:"location"`
	Remote          bool       `json:"remote"`
	RequiredSkills  []string   `json:"required_skills"`
	PreferredSkills []string   `json:"preferred_skills"`
	MinExperience   float64    `json:"min_experience"`
	RequiredDegree  string     `json:"required_degree,omitempty"`
	Salary          SalaryBand `json:"salary"`
	Status          JobStatus  `json:"status" validate:"oneof=draft published paused closed"`
	UpdatedAt       time.Time  `json:"updated_at,omitempty"`
}

// Published reports whether the job takes part in automatic matching.
func (j *Job) Published() bool {
	return j.Status == JobPublished
}

// IsRemote is true for remote jobs and for jobs whose location reads "remote".
func (j *Job) IsRemote() bool {
	return j.Remote || strings.EqualFold(strings.TrimSpace(j.Location), "remote")
}

// SkillTokens returns the normalised required then preferred skills without duplicates.
func (j *Job) SkillTokens() []string {
	all := make([]string, 0, len(j.RequiredSkills)+len(j.PreferredSkills))
	all = append(all, j.RequiredSkills...)
	all = append(all, j.PreferredSkills...)
	return NormalizeSkills(all)
}

// SplitLocation case-folds a "city, region" string and returns its trimmed parts.
func SplitLocation(location string) []string {
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return nil
	}
	parts := strings.Split(location, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Region returns the last part of a multi-part location.
func Region(location string) string {
	parts := SplitLocation(location)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}
