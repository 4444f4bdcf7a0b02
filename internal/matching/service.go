// Package matching is the in-process entry point of the engine: it owns the talent pool indexes and
// the scheduler and serves ranking views from the match cache.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/ai"
	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/filtering"
	"github.com/spigell/talent-matcher/internal/logger"
	"github.com/spigell/talent-matcher/internal/matchcache"
	"github.com/spigell/talent-matcher/internal/ranking"
	"github.com/spigell/talent-matcher/internal/records"
	"github.com/spigell/talent-matcher/internal/repository"
	"github.com/spigell/talent-matcher/internal/scheduler"
	"github.com/spigell/talent-matcher/internal/scoring"
	"github.com/spigell/talent-matcher/internal/talentpool"
)

// Deps are the collaborators of a Service. Cache and Explainer are optional.
type Deps struct {
	Repo      repository.Repository
	Cache     *matchcache.Cache
	Scorer    *scoring.Scorer
	Explainer ai.Explainer
	Logger    *zap.Logger
	Clock     func() time.Time
	// Alerter receives permanent recompute failures; nil logs them.
	Alerter scheduler.Alerter
}

// Service exposes the engine operations.
type Service struct {
	repo      repository.Repository
	cache     *matchcache.Cache
	pool      *talentpool.Index
	jobs      *talentpool.JobIndex
	scorer    *scoring.Scorer
	ranker    *ranking.Ranker
	sched     *scheduler.Scheduler
	explainer ai.Explainer
	activity  *activityLog
	logger    *zap.Logger
	now       func() time.Time
}

func New(cfg scheduler.Config, deps Deps) (*Service, error) {
	if deps.Repo == nil || deps.Scorer == nil {
		return nil, apperror.Configuration("matching", "repository and scorer are required")
	}
	log := logger.WithFields(deps.Logger, zap.String("component", "matching"))
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	cache := deps.Cache
	if cache == nil {
		cache = matchcache.New(deps.Logger, matchcache.WithClock(now))
	}

	s := &Service{
		repo:      deps.Repo,
		cache:     cache,
		pool:      talentpool.New(),
		jobs:      talentpool.NewJobIndex(),
		scorer:    deps.Scorer,
		ranker:    ranking.New(deps.Scorer, deps.Logger),
		explainer: deps.Explainer,
		activity:  newActivityLog(activityPerCandidate),
		logger:    log,
		now:       now,
	}

	sched, err := scheduler.New(cfg, scheduler.Deps{
		Repo:     deps.Repo,
		Cache:    cache,
		Pool:     s.pool,
		Jobs:     s.jobs,
		Scorer:   deps.Scorer,
		Logger:   deps.Logger,
		Alerter:  deps.Alerter,
		Observer: s.activity.record,
		Clock:    now,
	})
	if err != nil {
		return nil, err
	}
	s.sched = sched
	return s, nil
}

// Load warms the match cache from its backend and builds the talent pool and job indexes from the
// repository.
func (s *Service) Load(ctx context.Context) error {
	warmed, err := s.cache.Warm(ctx)
	if err != nil {
		return err
	}

	candidates, err := s.repo.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}
	s.pool.Load(candidates)

	jobs, err := s.repo.Jobs(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	s.jobs.Load(jobs)

	s.logger.Info("engine state loaded",
		zap.Int("matches", warmed),
		zap.Int("candidates", s.pool.Len()),
		zap.Int("published_jobs", s.jobs.Len()),
	)
	return nil
}

// Backfill submits a job event for every published job so that missing matches get computed.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	jobs, err := s.repo.Jobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load jobs: %w", err)
	}
	submitted := 0
	for _, j := range jobs {
		if !j.Published() {
			continue
		}
		if err := s.sched.SubmitEvent(scheduler.Event{Kind: scheduler.EventJob, ID: j.ID}); err != nil {
			return submitted, err
		}
		submitted++
	}
	return submitted, nil
}

// Start loads the engine state and runs the scheduler until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	return s.sched.Run(ctx)
}

// WaitIdle blocks until the scheduler has no pending work.
func (s *Service) WaitIdle(ctx context.Context) error {
	return s.sched.WaitIdle(ctx)
}

// SubmitEvent announces a candidate, job or talent pool change.
func (s *Service) SubmitEvent(kind scheduler.EventKind, id string) error {
	return s.sched.SubmitEvent(scheduler.Event{Kind: kind, ID: id})
}

// Query narrows a ranking view.
type Query struct {
	Limit int
	// MinScore is a fraction in [0,1]. Nil falls back to the candidate's own pool threshold on
	// candidate-side views.
	MinScore       *float64
	Statuses       []records.MatchStatus
	IncludeExpired bool
	RequireContact bool
}

// RankCandidatesForJob returns the cached matches of the job, best first.
func (s *Service) RankCandidatesForJob(ctx context.Context, jobID string, q Query) ([]*records.MatchRecord, error) {
	if jobID == "" {
		return nil, apperror.Input("rank candidates", "job id is required")
	}
	steps := filtering.Default()
	filtering.DisableByName(steps, filtering.NamePoolThreshold, "recruiter view")
	recs, err := s.view(ctx, q, steps, s.cache.ByJob(jobID))
	if err != nil {
		return nil, err
	}
	return ranking.Limit(ranking.OrderRecords(recs, ranking.ByCandidate), q.Limit), nil
}

// RankJobsForCandidate returns the cached matches of the candidate, best first.
func (s *Service) RankJobsForCandidate(ctx context.Context, candidateID string, q Query) ([]*records.MatchRecord, error) {
	if candidateID == "" {
		return nil, apperror.Input("rank jobs", "candidate id is required")
	}
	steps := filtering.Default()
	filtering.DisableByName(steps, filtering.NameContactable, "candidate view")
	recs, err := s.view(ctx, q, steps, s.cache.ByCandidate(candidateID))
	if err != nil {
		return nil, err
	}
	return ranking.Limit(ranking.OrderRecords(recs, ranking.ByJob), q.Limit), nil
}

func (s *Service) view(ctx context.Context, q Query, steps []filtering.Filter, recs []*records.MatchRecord) ([]*records.MatchRecord, error) {
	now := s.now()
	for _, rec := range recs {
		markExpired(rec, now)
	}
	cfg := &filtering.Config{
		MinScore:       q.MinScore,
		IncludeExpired: q.IncludeExpired,
		Statuses:       q.Statuses,
		RequireContact: q.RequireContact,
		Now:            now,
	}
	s.logger.Debug("building ranking view", zap.Any("filters", filtering.Describe(steps)), zap.Int("records", len(recs)))
	out, err := filtering.Run(ctx, cfg, filtering.Deps{Logger: s.logger, Pool: s.pool}, steps, recs)
	if err != nil {
		return nil, apperror.Input("rank", "%v", err)
	}
	return out, nil
}

// markExpired reports records past their TTL as expired even before the sweep runs.
func markExpired(rec *records.MatchRecord, now time.Time) {
	if rec.Status != records.StatusExpired && rec.Expired(now) {
		rec.Status = records.StatusExpired
	}
}

// GetMatch returns the cached record of the pair.
func (s *Service) GetMatch(candidateID, jobID string) (*records.MatchRecord, bool) {
	rec, ok := s.cache.Get(candidateID, jobID)
	if !ok {
		return nil, false
	}
	markExpired(rec, s.now())
	return rec, true
}

// Invalidate expires every record touching the given endpoints and schedules their recomputation.
// At least one id is required.
func (s *Service) Invalidate(ctx context.Context, candidateID, jobID string) (int, error) {
	if candidateID == "" && jobID == "" {
		return 0, apperror.Input("invalidate", "candidate id or job id is required")
	}
	n, err := s.cache.Invalidate(ctx, candidateID, jobID)
	if err != nil {
		return n, err
	}
	if candidateID != "" {
		if err := s.sched.SubmitEvent(scheduler.Event{Kind: scheduler.EventCandidate, ID: candidateID}); err != nil {
			return n, err
		}
	}
	if jobID != "" {
		if err := s.sched.SubmitEvent(scheduler.Event{Kind: scheduler.EventJob, ID: jobID}); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Preview scores the pair synchronously without persisting anything. Eligibility is not checked.
func (s *Service) Preview(ctx context.Context, candidateID, jobID string) (*records.MatchRecord, error) {
	candidate, job, err := s.load(ctx, candidateID, jobID)
	if err != nil {
		return nil, err
	}
	b, err := s.scorer.ScoreContext(ctx, candidate, job)
	if err != nil {
		return nil, err
	}
	return s.scorer.Record(candidate, job, b), nil
}

// RankPreview ranks every candidate in the repository for the job without touching the cache.
func (s *Service) RankPreview(ctx context.Context, jobID string, opts ranking.Options) ([]ranking.Entry, error) {
	job, err := s.repo.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.repo.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	return s.ranker.RankCandidates(ctx, job, candidates, opts)
}

// RankJobsPreview ranks every job in the repository for the candidate without touching the cache.
func (s *Service) RankJobsPreview(ctx context.Context, candidateID string, opts ranking.Options) ([]ranking.Entry, error) {
	candidate, err := s.repo.Candidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	jobs, err := s.repo.Jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	return s.ranker.RankJobs(ctx, candidate, jobs, opts)
}

func (s *Service) load(ctx context.Context, candidateID, jobID string) (*records.Candidate, *records.Job, error) {
	candidate, err := s.repo.Candidate(ctx, candidateID)
	if err != nil {
		return nil, nil, err
	}
	job, err := s.repo.Job(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return candidate, job, nil
}

// SetStatus records recruiter or candidate feedback on a match.
func (s *Service) SetStatus(ctx context.Context, candidateID, jobID string, status records.MatchStatus) (*records.MatchRecord, error) {
	return s.sched.SetStatus(ctx, candidateID, jobID, status)
}

// Activity returns the recent match changes of a candidate, newest first.
func (s *Service) Activity(candidateID string, limit int) []Activity {
	return s.activity.list(candidateID, limit)
}

// ErrExplainerDisabled is returned by Explain when no explainer is configured.
var ErrExplainerDisabled = errors.New("ai explainer is disabled")

// Explain narrates the cached match of the pair, scoring it on the fly when it is not cached.
func (s *Service) Explain(ctx context.Context, candidateID, jobID string) (*ai.Insight, *records.MatchRecord, error) {
	if s.explainer == nil {
		return nil, nil, ErrExplainerDisabled
	}
	candidate, job, err := s.load(ctx, candidateID, jobID)
	if err != nil {
		return nil, nil, err
	}
	rec, ok := s.GetMatch(candidateID, jobID)
	if !ok {
		b, err := s.scorer.ScoreContext(ctx, candidate, job)
		if err != nil {
			return nil, nil, err
		}
		rec = s.scorer.Record(candidate, job, b)
	}
	insight, err := s.explainer.Explain(ctx, candidate, job, rec)
	if err != nil {
		return nil, rec, fmt.Errorf("explain match: %w", err)
	}
	return insight, rec, nil
}

// Stats summarises the cached matches and the scheduler state.
type Stats struct {
	Matches          int                         `json:"matches"`
	ByStatus         map[records.MatchStatus]int `json:"by_status"`
	AverageOverall   float64                     `json:"average_overall"`
	AverageSkill     float64                     `json:"average_skill"`
	AverageExp       float64                     `json:"average_experience"`
	AverageEducation float64                     `json:"average_education"`
	AverageLocation  float64                     `json:"average_location"`
	PoolSize         int                         `json:"pool_size"`
	EligibleCount    int                         `json:"eligible_candidates"`
	PublishedJobs    int                         `json:"published_jobs"`
	Scheduler        scheduler.Stats             `json:"scheduler"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		ByStatus:      make(map[records.MatchStatus]int),
		PoolSize:      s.pool.Len(),
		EligibleCount: len(s.pool.EligibleIDs()),
		PublishedJobs: s.jobs.Len(),
		Scheduler:     s.sched.Stats(),
	}
	now := s.now()
	for _, rec := range s.cache.All() {
		markExpired(rec, now)
		st.Matches++
		st.ByStatus[rec.Status]++
		st.AverageOverall += rec.Overall
		st.AverageSkill += rec.Skill
		st.AverageExp += rec.Experience
		st.AverageEducation += rec.Education
		st.AverageLocation += rec.Location
	}
	if st.Matches > 0 {
		n := float64(st.Matches)
		st.AverageOverall = scoring.Round2(st.AverageOverall / n)
		st.AverageSkill = scoring.Round2(st.AverageSkill / n)
		st.AverageExp = scoring.Round2(st.AverageExp / n)
		st.AverageEducation = scoring.Round2(st.AverageEducation / n)
		st.AverageLocation = scoring.Round2(st.AverageLocation / n)
	}
	return st
}

// Failures lists keys whose recomputation failed permanently.
func (s *Service) Failures() []scheduler.Failure {
	return s.sched.Failures()
}

// Sweep expires and deletes records past their TTL.
func (s *Service) Sweep(ctx context.Context) (expired, deleted int, err error) {
	return s.sched.Sweep(ctx, s.now())
}
