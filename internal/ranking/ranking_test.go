package ranking

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/records"
	"github.com/spigell/talent-matcher/internal/scoring"
)

func newRanker(t *testing.T, log *zap.Logger) *Ranker {
	t.Helper()
	scorer, err := scoring.NewScorer(scoring.DefaultWeights, scoring.WithClock(func() time.Time {
		return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return New(scorer, log)
}

func candidate(id string, skills ...string) *records.Candidate {
	return &records.Candidate{ID: id, Location: "Austin, TX", Skills: skills, Pool: records.DefaultPoolEntry()}
}

func job(id string, required ...string) *records.Job {
	return &records.Job{ID: id, Location: "Austin, TX", RequiredSkills: required, Status: records.JobPublished}
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestRankCandidatesOrdering(t *testing.T) {
	r := newRanker(t, nil)
	j := job("j-1", "go", "sql")

	candidates := []*records.Candidate{
		candidate("c-3", "go"),
		candidate("c-1", "go", "sql"),
		candidate("c-2", "sql"),
		candidate("c-0", "go", "sql"),
	}

	entries, err := r.RankCandidates(context.Background(), j, candidates, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"c-0", "c-1", "c-2", "c-3"}
	if got := ids(entries); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}

	again, err := r.RankCandidates(context.Background(), j, candidates, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(entries, again) {
		t.Fatalf("ranking is not stable across calls")
	}
}

func TestRankCandidatesSkillTieBreak(t *testing.T) {
	r := newRanker(t, nil)
	j := job("j", "go", "sql", "redis", "kafka")

	// 17.5 skill points (0.4 weight) offset 70 location points (0.1 weight).
	strong := &records.Candidate{ID: "z-strong", Skills: []string{"go", "sql", "redis", "kafka"}, Location: "Paris, FR", Pool: records.DefaultPoolEntry()}
	weak := &records.Candidate{ID: "a-weak", Skills: []string{"go", "sql", "redis"}, Location: "Austin, TX", Pool: records.DefaultPoolEntry()}

	entries, err := r.RankCandidates(context.Background(), j, []*records.Candidate{weak, strong}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries[0].Breakdown.Overall != entries[1].Breakdown.Overall {
		t.Fatalf("expected equal overall scores, got %v and %v", entries[0].Breakdown.Overall, entries[1].Breakdown.Overall)
	}
	if entries[0].ID != "z-strong" {
		t.Fatalf("expected higher skill score first, got %v", ids(entries))
	}
}

func TestRankThresholdAndLimit(t *testing.T) {
	r := newRanker(t, nil)
	j := job("j-1", "go", "sql")
	candidates := []*records.Candidate{
		candidate("c-1", "go", "sql"),
		candidate("c-2", "go"),
		candidate("c-3"),
	}

	entries, err := r.RankCandidates(context.Background(), j, candidates, Options{MinScore: ptr(0.6)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range entries {
		if e.Breakdown.Overall < 60 {
			t.Fatalf("entry %s below threshold: %v", e.ID, e.Breakdown.Overall)
		}
	}

	limited, err := r.RankCandidates(context.Background(), j, candidates, Options{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "c-1" {
		t.Fatalf("unexpected limited result: %v", ids(limited))
	}
}

func TestRankSkipsBadRecords(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	r := newRanker(t, zap.New(core))

	c := candidate("c-1", "go")
	jobs := []*records.Job{
		job("j-ok", "go"),
		{ID: "j-bad", MinExperience: -1, Status: records.JobPublished},
		{ID: "", Status: records.JobPublished},
	}

	entries, err := r.RankJobs(context.Background(), c, jobs, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(entries); !reflect.DeepEqual(got, []string{"j-ok"}) {
		t.Fatalf("unexpected entries: %v", got)
	}
	if observed.FilterMessage("skipping job").Len() != 2 {
		t.Fatalf("expected two skipped jobs to be logged, got %d", observed.Len())
	}
}

func TestRankEmptyInput(t *testing.T) {
	r := newRanker(t, nil)

	entries, err := r.RankCandidates(context.Background(), job("j"), nil, Options{})
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty result, got %v %v", entries, err)
	}
}

func TestRankMissingAnchor(t *testing.T) {
	r := newRanker(t, nil)
	ctx := context.Background()

	if _, err := r.RankCandidates(ctx, nil, []*records.Candidate{candidate("c", "go")}, Options{}); !errors.Is(err, apperror.ErrInput) {
		t.Fatalf("expected input error for a nil job, got %v", err)
	}
	if _, err := r.RankJobs(ctx, nil, []*records.Job{job("j", "go")}, Options{}); !errors.Is(err, apperror.ErrInput) {
		t.Fatalf("expected input error for a nil candidate, got %v", err)
	}
}

func TestRankCancelled(t *testing.T) {
	r := newRanker(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.RankJobs(ctx, candidate("c"), []*records.Job{job("j")}, Options{}); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestOrderRecords(t *testing.T) {
	recs := []*records.MatchRecord{
		{CandidateID: "b", JobID: "j", OverallExact: 70.004, Overall: 70, Skill: 50},
		{CandidateID: "a", JobID: "j", OverallExact: 70.004, Overall: 70, Skill: 50},
		{CandidateID: "c", JobID: "j", OverallExact: 70.001, Overall: 70, Skill: 90},
		{CandidateID: "d", JobID: "j", OverallExact: 80, Overall: 80, Skill: 10},
	}

	OrderRecords(recs, ByCandidate)

	var got []string
	for _, r := range recs {
		got = append(got, r.CandidateID)
	}
	if want := []string{"d", "a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}
