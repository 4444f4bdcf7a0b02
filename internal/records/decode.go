package records

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/talent-matcher/internal/apperror"
)

// DecodeOptions tune how free-form payloads are coerced into records.
type DecodeOptions struct {
	// StrictYears turns unparseable experience years into input errors instead of treating them as
	// missing.
	StrictYears bool
}

type rawPool struct {
	Active            bool    `mapstructure:"is_active"`
	Available         bool    `mapstructure:"is_available"`
	Visibility        string  `mapstructure:"profile_visibility"`
	AllowContact      bool    `mapstructure:"allow_contact"`
	AutoMatchEnabled  bool    `mapstructure:"auto_matching_enabled"`
	MinScoreThreshold float64 `mapstructure:"match_score_threshold"`
	SalaryMin         float64 `mapstructure:"preferred_salary_min"`
	SalaryMax         float64 `mapstructure:"preferred_salary_max"`
}

type rawSalary struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

type rawCandidate struct {
	ID          string           `mapstructure:"id"`
	Location    string           `mapstructure:"location"`
	ContactInfo map[string]any   `mapstructure:"contact_info"`
	Skills      []string         `mapstructure:"skills"`
	Experience  []map[string]any `mapstructure:"experience"`
	Experiences []map[string]any `mapstructure:"experiences"`
	Education   []any            `mapstructure:"education"`
	Educations  []any            `mapstructure:"educations"`
	Salary      *rawSalary       `mapstructure:"salary"`
	Available   *bool            `mapstructure:"available"`
	Pool        *rawPool         `mapstructure:"pool"`
}

type rawJob struct {
	ID                string     `mapstructure:"id"`
	Location          string     `mapstructure:"location"`
	Remote            bool       `mapstructure:"remote"`
	RemoteOK          bool       `mapstructure:"remote_ok"`
	RequiredSkills    []string   `mapstructure:"required_skills"`
	Requirements      []string   `mapstructure:"requirements"`
	PreferredSkills   []string   `mapstructure:"preferred_skills"`
	MinExperience     float64    `mapstructure:"min_experience"`
	ExperienceMin     float64    `mapstructure:"experience_min"`
	RequiredDegree    string     `mapstructure:"required_degree"`
	EducationRequired string     `mapstructure:"education_required"`
	Salary            *rawSalary `mapstructure:"salary"`
	SalaryMin         float64    `mapstructure:"salary_min"`
	SalaryMax         float64    `mapstructure:"salary_max"`
	Status            string     `mapstructure:"status"`
}

func decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// DecodeCandidate converts a free-form candidate mapping into a validated Candidate. Unknown
// fields are ignored.
func DecodeCandidate(input map[string]any, opts DecodeOptions) (*Candidate, error) {
	defaults := DefaultPoolEntry()
	raw := rawCandidate{
		Pool: &rawPool{
			Active:            defaults.Active,
			Available:         defaults.Available,
			Visibility:        string(defaults.Visibility),
			AllowContact:      defaults.AllowContact,
			AutoMatchEnabled:  defaults.AutoMatchEnabled,
			MinScoreThreshold: defaults.MinScoreThreshold,
		},
	}
	if err := decode(input, &raw); err != nil {
		return nil, apperror.Input("decode candidate", "%v", err)
	}

	candidate := &Candidate{
		ID:       strings.TrimSpace(raw.ID),
		Location: strings.TrimSpace(raw.Location),
		Skills:   NormalizeSkills(raw.Skills),
		Pool: PoolEntry{
			Active:            raw.Pool.Active,
			Available:         raw.Pool.Available,
			Visibility:        Visibility(strings.ToLower(strings.TrimSpace(raw.Pool.Visibility))),
			AllowContact:      raw.Pool.AllowContact,
			AutoMatchEnabled:  raw.Pool.AutoMatchEnabled,
			MinScoreThreshold: raw.Pool.MinScoreThreshold,
		},
	}
	if candidate.Location == "" && raw.ContactInfo != nil {
		if loc, ok := raw.ContactInfo["location"].(string); ok {
			candidate.Location = strings.TrimSpace(loc)
		}
	}

	candidate.Available = candidate.Pool.Available
	if raw.Available != nil {
		candidate.Available = *raw.Available
	}

	switch {
	case raw.Salary != nil:
		candidate.Salary = SalaryBand{Min: raw.Salary.Min, Max: raw.Salary.Max}
	default:
		candidate.Salary = SalaryBand{Min: raw.Pool.SalaryMin, Max: raw.Pool.SalaryMax}
	}

	for idx, exp := range append(raw.Experience, raw.Experiences...) {
		decoded, err := decodeExperience(exp, opts)
		if err != nil {
			return nil, apperror.Input("decode candidate", "experience %d: %v", idx, err)
		}
		candidate.Experiences = append(candidate.Experiences, decoded)
	}

	for _, edu := range append(raw.Education, raw.Educations...) {
		if degree := degreeLabel(edu); degree != "" {
			candidate.Educations = append(candidate.Educations, Education{Degree: degree})
		}
	}

	if err := ValidateCandidate(candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

// DecodeJob converts a free-form job mapping into a validated Job. The legacy "active" and
// "inactive" statuses map to published and paused.
func DecodeJob(input map[string]any) (*Job, error) {
	var raw rawJob
	if err := decode(input, &raw); err != nil {
		return nil, apperror.Input("decode job", "%v", err)
	}

	job := &Job{
		ID:              strings.TrimSpace(raw.ID),
		Location:        strings.TrimSpace(raw.Location),
		Remote:          raw.Remote || raw.RemoteOK,
		RequiredSkills:  NormalizeSkills(append(raw.RequiredSkills, raw.Requirements...)),
		PreferredSkills: NormalizeSkills(raw.PreferredSkills),
		MinExperience:   raw.MinExperience,
		RequiredDegree:  strings.TrimSpace(raw.RequiredDegree),
		Status:          parseJobStatus(raw.Status),
	}
	if job.MinExperience == 0 {
		job.MinExperience = raw.ExperienceMin
	}
	if job.RequiredDegree == "" {
		job.RequiredDegree = strings.TrimSpace(raw.EducationRequired)
	}
	if raw.Salary != nil {
		job.Salary = SalaryBand{Min: raw.Salary.Min, Max: raw.Salary.Max}
	} else {
		job.Salary = SalaryBand{Min: raw.SalaryMin, Max: raw.SalaryMax}
	}

	if err := ValidateJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

func parseJobStatus(s string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "draft":
		return JobDraft
	case "published", "active", "open":
		return JobPublished
	case "paused", "inactive":
		return JobPaused
	case "closed", "filled":
		return JobClosed
	default:
		return JobStatus(strings.ToLower(strings.TrimSpace(s)))
	}
}

func decodeExperience(raw map[string]any, opts DecodeOptions) (Experience, error) {
	var exp Experience

	start, ok := parseYear(firstValue(raw, "start_year", "start_date", "start"))
	if !ok && opts.StrictYears {
		return exp, fmt.Errorf("start year %v cannot be coerced", firstValue(raw, "start_year", "start_date", "start"))
	}
	end, ok := parseYear(firstValue(raw, "end_year", "end_date", "end"))
	if !ok && opts.StrictYears {
		return exp, fmt.Errorf("end year %v cannot be coerced", firstValue(raw, "end_year", "end_date", "end"))
	}

	// An unreadable end leaves the period undated, never open-ended.
	if !ok {
		return exp, nil
	}

	exp.StartYear = start
	exp.EndYear = end
	return exp, nil
}

func firstValue(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// parseYear takes the first four-digit group of strings, so "Jan 2018" and "2018-01-15" both read
// as 2018. It returns the year in v. Missing values and "present"-like markers return (nil, true);
// values that cannot be coerced return (nil, false).
func parseYear(v any) (*int, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case int:
		return &val, true
	case int64:
		year := int(val)
		return &year, true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) {
			return nil, false
		}
		year := int(val)
		return &year, true
	case string:
		s := strings.TrimSpace(val)
		switch strings.ToLower(s) {
		case "", "present", "current", "now":
			return nil, true
		}
		if m := yearPattern.FindString(s); m != "" {
			if year, err := strconv.Atoi(m); err == nil && year > 0 {
				return &year, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

func degreeLabel(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		if degree, ok := val["degree"].(string); ok {
			return strings.TrimSpace(degree)
		}
	}
	return ""
}
