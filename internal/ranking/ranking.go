// Package ranking orders scored candidates and jobs with a deterministic total order.
package ranking

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/logger"
	"github.com/spigell/talent-matcher/internal/records"
	"github.com/spigell/talent-matcher/internal/scoring"
)

// Options bound a ranking. A zero Limit returns every entry; a nil MinScore disables the threshold.
type Options struct {
	Limit    int
	MinScore *float64
}

// Below reports whether overall falls strictly under the threshold. MinScore is a fraction in [0,1].
func (o Options) Below(overall float64) bool {
	return o.MinScore != nil && overall < *o.MinScore*100
}

// Entry is one ranked counterpart with its full-precision breakdown.
type Entry struct {
	ID        string
	Breakdown scoring.Breakdown
}

// Ranker scores and orders counterparts of a single candidate or job.
type Ranker struct {
	scorer *scoring.Scorer
	logger *zap.Logger
}

func New(scorer *scoring.Scorer, log *zap.Logger) *Ranker {
	return &Ranker{scorer: scorer, logger: logger.WithFields(log, zap.String("component", "ranker"))}
}

// RankCandidates scores every candidate against job. Candidates that fail scoring are logged and
// skipped. A nil job is an input error; otherwise the only error returned is a context cancellation.
func (r *Ranker) RankCandidates(ctx context.Context, job *records.Job, candidates []*records.Candidate, opts Options) ([]Entry, error) {
	if job == nil {
		return nil, apperror.Input("rank candidates", "job is required")
	}
	entries := make([]Entry, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		b, err := r.scorer.Score(c, job)
		if err != nil {
			logger.WithMatch(r.logger, c.ID, job.ID).Warn("skipping candidate", zap.Error(err))
			continue
		}
		if opts.Below(b.Overall) {
			continue
		}
		entries = append(entries, Entry{ID: c.ID, Breakdown: b})
	}
	return Limit(Order(entries), opts.Limit), nil
}

// RankJobs scores every job against candidate.
func (r *Ranker) RankJobs(ctx context.Context, candidate *records.Candidate, jobs []*records.Job, opts Options) ([]Entry, error) {
	if candidate == nil {
		return nil, apperror.Input("rank jobs", "candidate is required")
	}
	entries := make([]Entry, 0, len(jobs))
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if j == nil {
			continue
		}
		b, err := r.scorer.Score(candidate, j)
		if err != nil {
			logger.WithMatch(r.logger, candidate.ID, j.ID).Warn("skipping job", zap.Error(err))
			continue
		}
		if opts.Below(b.Overall) {
			continue
		}
		entries = append(entries, Entry{ID: j.ID, Breakdown: b})
	}
	return Limit(Order(entries), opts.Limit), nil
}

func compare(overallA, overallB, skillA, skillB float64, idA, idB string) int {
	if c := cmp.Compare(overallB, overallA); c != 0 {
		return c
	}
	if c := cmp.Compare(skillB, skillA); c != 0 {
		return c
	}
	return cmp.Compare(idA, idB)
}

// Order sorts entries by overall desc, skill desc, then id asc.
func Order(entries []Entry) []Entry {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return compare(a.Breakdown.Overall, b.Breakdown.Overall, a.Breakdown.Skill, b.Breakdown.Skill, a.ID, b.ID)
	})
	return entries
}

// ByCandidate and ByJob select the identifier used as the final tie-break of OrderRecords.
var (
	ByCandidate = func(r *records.MatchRecord) string { return r.CandidateID }
	ByJob       = func(r *records.MatchRecord) string { return r.JobID }
)

// OrderRecords applies the ranking order to persisted records using the exact overall score.
func OrderRecords(recs []*records.MatchRecord, id func(*records.MatchRecord) string) []*records.MatchRecord {
	slices.SortStableFunc(recs, func(a, b *records.MatchRecord) int {
		return compare(a.OverallExact, b.OverallExact, a.Skill, b.Skill, id(a), id(b))
	})
	return recs
}

// Limit truncates s to n elements when n is positive.
func Limit[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
