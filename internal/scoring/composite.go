package scoring

import (
	"context"
	"math"
	"time"

	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/records"
)

const weightTolerance = 1e-9

// Weights are the dimension weights of the overall score.
type Weights struct {
	Skills     float64 `mapstructure:"skills" json:"skills"`
	Experience float64 `mapstructure:"experience" json:"experience"`
	Education  float64 `mapstructure:"education" json:"education"`
	Location   float64 `mapstructure:"location" json:"location"`
}

// DefaultWeights favour skills, then experience, education and location.
var DefaultWeights = Weights{Skills: 0.4, Experience: 0.3, Education: 0.2, Location: 0.1}

// Validate requires all four weights to be positive and to sum to one.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"skills": w.Skills, "experience": w.Experience, "education": w.Education, "location": w.Location,
	} {
		if v <= 0 || math.IsNaN(v) {
			return apperror.Configuration("weights", "weight %q must be provided and positive, got %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return apperror.Configuration("weights", "weights must sum to 1, got %v", sum)
	}
	return nil
}

func (w Weights) Sum() float64 {
	return w.Skills + w.Experience + w.Education + w.Location
}

func (w Weights) combine(skill, experience, education, location float64) float64 {
	return w.Skills*skill + w.Experience*experience + w.Education*education + w.Location*location
}

// Breakdown is a full-precision score of one candidate/job pair.
type Breakdown struct {
	Skill         float64
	Experience    float64
	Education     float64
	Location      float64
	Overall       float64
	MatchedSkills []string
	MissingSkills []string
}

// Rounded returns the persisted view: dimensions rounded to two decimals and the overall recomputed
// from the rounded dimensions.
func (b Breakdown) Rounded(w Weights) Breakdown {
	out := b
	out.Skill = Round2(b.Skill)
	out.Experience = Round2(b.Experience)
	out.Education = Round2(b.Education)
	out.Location = Round2(b.Location)
	out.Overall = Round2(w.combine(out.Skill, out.Experience, out.Education, out.Location))
	return out
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Option customises a Scorer.
type Option func(*Scorer)

// WithClock sets the clock used to resolve open-ended experience periods.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// Scorer combines the dimension scores with fixed weights. It is safe for concurrent use.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer validates the weights and returns a Scorer.
func NewScorer(w Weights, opts ...Option) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	s := &Scorer{weights: w, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score validates both records and computes the breakdown in full precision.
func (s *Scorer) Score(c *records.Candidate, j *records.Job) (Breakdown, error) {
	if err := records.ValidateCandidate(c); err != nil {
		return Breakdown{}, err
	}
	if err := records.ValidateJob(j); err != nil {
		return Breakdown{}, err
	}

	skills := SkillScore(c.Skills, j.RequiredSkills, j.PreferredSkills)
	b := Breakdown{
		Skill:         skills.Score,
		Experience:    ExperienceScore(c.Experiences, j.MinExperience, s.now().Year()),
		Education:     EducationScore(c.DegreeLabels(), j.RequiredDegree),
		Location:      LocationScore(c.Location, j.Location, j.Remote),
		MatchedSkills: skills.Matched,
		MissingSkills: skills.Missing,
	}
	b.Overall = s.weights.combine(b.Skill, b.Experience, b.Education, b.Location)
	return b, nil
}

// ScoreContext is Score with a cancellation check before the work starts.
func (s *Scorer) ScoreContext(ctx context.Context, c *records.Candidate, j *records.Job) (Breakdown, error) {
	if err := ctx.Err(); err != nil {
		return Breakdown{}, apperror.Timeout("score", err)
	}
	return s.Score(c, j)
}

// Record builds the persisted match record for the pair. Generation and timestamps are assigned by
// the writer.
func (s *Scorer) Record(c *records.Candidate, j *records.Job, b Breakdown) *records.MatchRecord {
	rounded := b.Rounded(s.weights)
	return &records.MatchRecord{
		CandidateID:    c.ID,
		JobID:          j.ID,
		Skill:          rounded.Skill,
		Experience:     rounded.Experience,
		Education:      rounded.Education,
		Location:       rounded.Location,
		Overall:        rounded.Overall,
		OverallExact:   b.Overall,
		MatchedSkills:  rounded.MatchedSkills,
		MissingSkills:  rounded.MissingSkills,
		Grade:          Grade(rounded.Overall),
		Reasons:        Reasons(rounded),
		Recommendation: Recommendation(rounded.Overall),
		Status:         records.StatusPending,
	}
}
