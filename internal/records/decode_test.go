package records

import (
	"errors"
	"slices"
	"testing"

	"github.com/spigell/talent-matcher/internal/apperror"
)

func TestDecodeCandidate(t *testing.T) {
	input := map[string]any{
		"id":           "c-1",
		"contact_info": map[string]any{"location": " Austin, TX "},
		"skills":       []any{" Python", "REACT", "python", ""},
		"experience": []any{
			map[string]any{"start_date": "Jan 2018", "end_date": "2021"},
			map[string]any{"start_year": 2021, "end_year": "present"},
		},
		"education": []any{
			map[string]any{"degree": "Bachelor of Science"},
			"Master of Engineering",
		},
		"pool":    map[string]any{"profile_visibility": "recruiters_only", "match_score_threshold": "0.7"},
		"unknown": "ignored",
	}

	candidate, err := DecodeCandidate(input, DecodeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if candidate.Location != "Austin, TX" {
		t.Fatalf("expected location from contact info, got %q", candidate.Location)
	}
	if !slices.Equal(candidate.Skills, []string{"python", "react"}) {
		t.Fatalf("unexpected skills: %v", candidate.Skills)
	}
	if len(candidate.Experiences) != 2 {
		t.Fatalf("expected 2 experiences, got %d", len(candidate.Experiences))
	}
	first := candidate.Experiences[0]
	if first.StartYear == nil || *first.StartYear != 2018 || first.EndYear == nil || *first.EndYear != 2021 {
		t.Fatalf("unexpected first experience: %+v", first)
	}
	if candidate.Experiences[1].EndYear != nil {
		t.Fatalf("expected present end year to be nil")
	}
	if !slices.Equal(candidate.DegreeLabels(), []string{"Bachelor of Science", "Master of Engineering"}) {
		t.Fatalf("unexpected degrees: %v", candidate.DegreeLabels())
	}
	if candidate.Pool.Visibility != VisibilityRecruitersOnly || candidate.Pool.MinScoreThreshold != 0.7 {
		t.Fatalf("unexpected pool entry: %+v", candidate.Pool)
	}
	if !candidate.Pool.Active || !candidate.Pool.AutoMatchEnabled || !candidate.Available {
		t.Fatalf("expected pool defaults to be kept: %+v", candidate.Pool)
	}
	if !candidate.Pool.Eligible() {
		t.Fatalf("expected candidate to be eligible")
	}
}

func TestDecodeCandidateYears(t *testing.T) {
	input := map[string]any{
		"id":         "c-2",
		"experience": []any{map[string]any{"start_date": "sometime", "end_date": 2020}},
	}

	candidate, err := DecodeCandidate(input, DecodeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Experiences[0].StartYear != nil {
		t.Fatalf("expected unparseable start year to be treated as missing")
	}

	_, err = DecodeCandidate(input, DecodeOptions{StrictYears: true})
	if !errors.Is(err, apperror.ErrInput) {
		t.Fatalf("expected input error in strict mode, got %v", err)
	}
}

func TestDecodeCandidateDateYears(t *testing.T) {
	tests := []struct {
		name      string
		exp       map[string]any
		wantStart *int
		wantEnd   *int
	}{
		{
			name:      "iso dates",
			exp:       map[string]any{"start_date": "2018-01-15", "end_date": "2024-06-30"},
			wantStart: intPtr(2018),
			wantEnd:   intPtr(2024),
		},
		{
			name:      "year and month",
			exp:       map[string]any{"start_date": "2018-01", "end_date": "present"},
			wantStart: intPtr(2018),
		},
		{
			name: "unreadable end leaves the period undated",
			exp:  map[string]any{"start_date": "2010", "end_date": "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, err := DecodeCandidate(map[string]any{"id": "c-3", "experience": []any{tt.exp}}, DecodeOptions{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := candidate.Experiences[0]
			if !sameYear(got.StartYear, tt.wantStart) || !sameYear(got.EndYear, tt.wantEnd) {
				t.Fatalf("got start=%v end=%v, want start=%v end=%v", got.StartYear, got.EndYear, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func sameYear(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestDecodeCandidateErrors(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
	}{
		{name: "missing id", input: map[string]any{"skills": []any{"go"}}},
		{name: "bad visibility", input: map[string]any{"id": "c", "pool": map[string]any{"profile_visibility": "friends"}}},
		{name: "threshold out of range", input: map[string]any{"id": "c", "pool": map[string]any{"match_score_threshold": 1.5}}},
		{name: "inverted salary", input: map[string]any{"id": "c", "salary": map[string]any{"min": 200, "max": 100}}},
		{name: "skills not a list", input: map[string]any{"id": "c", "skills": map[string]any{"a": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeCandidate(tt.input, DecodeOptions{})
			if !errors.Is(err, apperror.ErrInput) {
				t.Fatalf("expected input error, got %v", err)
			}
		})
	}
}

func TestDecodeJob(t *testing.T) {
	job, err := DecodeJob(map[string]any{
		"id":                 "j-1",
		"location":           "Dallas, TX",
		"remote_ok":          "true",
		"requirements":       []any{"Python", "AWS"},
		"preferred_skills":   []any{"Docker"},
		"experience_min":     "3",
		"education_required": "Master",
		"salary_min":         100000,
		"salary_max":         150000,
		"status":             "active",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !job.Published() {
		t.Fatalf("expected active to map to published, got %q", job.Status)
	}
	if !job.IsRemote() {
		t.Fatalf("expected remote job")
	}
	if !slices.Equal(job.RequiredSkills, []string{"python", "aws"}) {
		t.Fatalf("unexpected required skills: %v", job.RequiredSkills)
	}
	if job.MinExperience != 3 || job.RequiredDegree != "Master" {
		t.Fatalf("unexpected requirements: %+v", job)
	}
	if job.Salary.Min != 100000 || job.Salary.Max != 150000 {
		t.Fatalf("unexpected salary: %+v", job.Salary)
	}
	if !slices.Equal(job.SkillTokens(), []string{"python", "aws", "docker"}) {
		t.Fatalf("unexpected skill tokens: %v", job.SkillTokens())
	}
}

func TestDecodeJobErrors(t *testing.T) {
	_, err := DecodeJob(map[string]any{"id": "j", "min_experience": -1})
	if !errors.Is(err, apperror.ErrConfiguration) {
		t.Fatalf("expected configuration error for negative experience, got %v", err)
	}

	_, err = DecodeJob(map[string]any{"id": "j", "status": "archived"})
	if !errors.Is(err, apperror.ErrInput) {
		t.Fatalf("expected input error for unknown status, got %v", err)
	}

	_, err = DecodeJob(map[string]any{"location": "Austin"})
	if !errors.Is(err, apperror.ErrInput) {
		t.Fatalf("expected input error for missing id, got %v", err)
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in     any
		want   int
		isNil  bool
		parsed bool
	}{
		{in: 2019, want: 2019, parsed: true},
		{in: float64(2020), want: 2020, parsed: true},
		{in: "March 2015", want: 2015, parsed: true},
		{in: "2018-01-15", want: 2018, parsed: true},
		{in: "2018-01", want: 2018, parsed: true},
		{in: "01/2016", want: 2016, parsed: true},
		{in: "present", isNil: true, parsed: true},
		{in: nil, isNil: true, parsed: true},
		{in: "n/a", isNil: true},
		{in: 2019.5, isNil: true},
		{in: true, isNil: true},
	}

	for _, tt := range tests {
		got, ok := parseYear(tt.in)
		if ok != tt.parsed {
			t.Fatalf("parseYear(%v) ok = %v, want %v", tt.in, ok, tt.parsed)
		}
		if tt.isNil {
			if got != nil {
				t.Fatalf("parseYear(%v) = %d, want nil", tt.in, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Fatalf("parseYear(%v) = %v, want %d", tt.in, got, tt.want)
		}
	}
}
