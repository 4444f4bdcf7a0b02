package scoring

import (
	"fmt"
	"strings"
)

type gradeBand struct {
	min   float64
	grade string
}

var gradeBands = []gradeBand{
	{90, "A+"}, {85, "A"}, {80, "B+"}, {75, "B"}, {70, "C+"}, {65, "C"},
}

// Grade maps an overall score to a letter grade.
func Grade(overall float64) string {
	for _, band := range gradeBands {
		if overall >= band.min {
			return band.grade
		}
	}
	return "D"
}

// Reasons lists the human-readable strengths of a breakdown.
func Reasons(b Breakdown) []string {
	var reasons []string

	switch {
	case b.Skill >= 80:
		reasons = append(reasons, "Strong skill alignment with job requirements")
	case b.Skill >= 60:
		reasons = append(reasons, "Good skill match with some gaps")
	}

	switch {
	case b.Experience >= 90:
		reasons = append(reasons, "Experience level matches requirements")
	case b.Experience >= 70:
		reasons = append(reasons, "Relevant experience for the role")
	}

	if b.Location >= 90 {
		reasons = append(reasons, "Excellent location compatibility")
	}
	if b.Education >= 90 {
		reasons = append(reasons, "Educational background meets requirements")
	}
	if len(b.MatchedSkills) >= 3 {
		reasons = append(reasons, fmt.Sprintf("Proficient in key technologies: %s", strings.Join(b.MatchedSkills[:3], ", ")))
	}
	return reasons
}

// Recommendation returns the hiring recommendation for an overall score.
func Recommendation(overall float64) string {
	switch {
	case overall >= 85:
		return "Excellent match. Strong alignment across all key criteria; consider immediately."
	case overall >= 70:
		return "Good match with solid potential. Consider for interview."
	case overall >= 55:
		return "Moderate match with some gaps. May suit depending on team needs."
	default:
		return "Limited match with current requirements. Consider for future opportunities."
	}
}
