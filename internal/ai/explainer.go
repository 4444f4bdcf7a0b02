// Package ai defines the optional narrative layer on top of deterministic match scores.
package ai

import (
	"context"

	"github.com/spigell/talent-matcher/internal/records"
)

// Insight is a short explanation of a match written for recruiters.
type Insight struct {
	Summary   string   `json:"summary"`
	Strengths []string `json:"strengths"`
	Gaps      []string `json:"gaps"`
	Raw       string   `json:"-"`
}

// Explainer narrates an already computed match record. It never changes scores.
type Explainer interface {
	Explain(ctx context.Context, candidate *records.Candidate, job *records.Job, rec *records.MatchRecord) (*Insight, error)
}
