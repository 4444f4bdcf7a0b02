package scoring

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/records"
)

func fixedClock() time.Time {
	return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
}

func sampleCandidate() *records.Candidate {
	return &records.Candidate{
		ID:          "c-1",
		Location:    "Austin, TX",
		Skills:      []string{"python", "react", "node.js", "aws"},
		Experiences: []records.Experience{{StartYear: year(2018), EndYear: year(2024)}},
		Educations:  []records.Education{{Degree: "Bachelor of Science"}},
		Available:   true,
		Pool:        records.DefaultPoolEntry(),
	}
}

func sampleJob() *records.Job {
	return &records.Job{
		ID:              "j-1",
		Location:        "Dallas, TX",
		RequiredSkills:  []string{"python", "react", "node.js", "aws"},
		PreferredSkills: []string{"docker"},
		MinExperience:   3,
		RequiredDegree:  "Master",
		Status:          records.JobPublished,
	}
}

func TestNewScorerRejectsBadWeights(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		weights Weights
	}{
		{name: "sum below one", weights: Weights{Skills: 0.4, Experience: 0.3, Education: 0.2, Location: 0.05}},
		{name: "missing weight", weights: Weights{Skills: 0.5, Experience: 0.3, Education: 0.2}},
		{name: "negative weight", weights: Weights{Skills: 0.6, Experience: 0.3, Education: 0.2, Location: -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewScorer(tt.weights)
			if !errors.Is(err, apperror.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}

	if _, err := NewScorer(Weights{Skills: 0.25, Experience: 0.25, Education: 0.25, Location: 0.25}); err != nil {
		t.Fatalf("unexpected error for equal weights: %v", err)
	}
}

func TestScoreScenario(t *testing.T) {
	scorer, err := NewScorer(DefaultWeights, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := scorer.Score(sampleCandidate(), sampleJob())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.Skill != 100 || b.Experience != 100 || b.Education != 52.5 || b.Location != 70 {
		t.Fatalf("unexpected dimensions: %+v", b)
	}
	want := 0.4*100 + 0.3*100 + 0.2*52.5 + 0.1*70
	if !almostEqual(b.Overall, want) {
		t.Fatalf("overall = %v, want %v", b.Overall, want)
	}
}

func TestRecordOverallMatchesRoundedDimensions(t *testing.T) {
	scorer, err := NewScorer(DefaultWeights, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	candidate := sampleCandidate()
	candidate.Skills = []string{"python", "aws"}
	candidate.Experiences = []records.Experience{{StartYear: year(2023), EndYear: year(2024)}}
	job := sampleJob()
	job.PreferredSkills = []string{"docker", "k8s", "terraform"}
	job.MinExperience = 7

	b, err := scorer.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := scorer.Record(candidate, job, b)

	for _, d := range []float64{rec.Skill, rec.Experience, rec.Education, rec.Location, rec.Overall} {
		if d < 0 || d > 100 {
			t.Fatalf("score %v out of range", d)
		}
		if Round2(d) != d {
			t.Fatalf("score %v is not rounded to two decimals", d)
		}
	}

	want := Round2(0.4*rec.Skill + 0.3*rec.Experience + 0.2*rec.Education + 0.1*rec.Location)
	if rec.Overall != want {
		t.Fatalf("overall = %v, want %v", rec.Overall, want)
	}
	if rec.OverallExact != b.Overall {
		t.Fatalf("expected exact overall to be kept")
	}
	if rec.Status != records.StatusPending || rec.Grade == "" || rec.Recommendation == "" {
		t.Fatalf("unexpected record metadata: %+v", rec)
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	scorer, err := NewScorer(DefaultWeights, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := scorer.Score(sampleCandidate(), sampleJob())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := scorer.Score(sampleCandidate(), sampleJob())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("breakdowns differ: %+v vs %+v", first, second)
	}
}

func TestScoreRejectsInvalidRecords(t *testing.T) {
	scorer, err := NewScorer(DefaultWeights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	candidate := sampleCandidate()
	candidate.ID = ""
	if _, err := scorer.Score(candidate, sampleJob()); !errors.Is(err, apperror.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}

	job := sampleJob()
	job.MinExperience = -2
	if _, err := scorer.Score(sampleCandidate(), job); !errors.Is(err, apperror.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scorer.ScoreContext(ctx, sampleCandidate(), sampleJob()); !errors.Is(err, apperror.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestGrade(t *testing.T) {
	t.Parallel()

	tests := map[float64]string{95: "A+", 90: "A+", 87: "A", 80: "B+", 76: "B", 70: "C+", 65.5: "C", 10: "D"}
	for score, want := range tests {
		if got := Grade(score); got != want {
			t.Fatalf("Grade(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestReasons(t *testing.T) {
	reasons := Reasons(Breakdown{
		Skill: 85, Experience: 75, Education: 100, Location: 40,
		MatchedSkills: []string{"go", "sql", "redis", "kafka"},
	})
	want := []string{
		"Strong skill alignment with job requirements",
		"Relevant experience for the role",
		"Educational background meets requirements",
		"Proficient in key technologies: go, sql, redis",
	}
	if !reflect.DeepEqual(reasons, want) {
		t.Fatalf("Reasons = %v, want %v", reasons, want)
	}
}
