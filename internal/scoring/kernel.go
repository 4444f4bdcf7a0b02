// Package scoring computes per-dimension match scores and combines them into an overall score.
package scoring

import (
	"strings"

	"github.com/spigell/talent-matcher/internal/records"
)

// Neutral is returned by a dimension that has nothing to compare.
const Neutral = 50.0

// SkillResult is the skill dimension with the matched and missing tags.
type SkillResult struct {
	Score   float64
	Matched []string
	Missing []string
}

// SkillScore weights required skills at 70 points and preferred skills at 30 points. Matched lists
// the candidate skills found in required then preferred order; Missing lists required skills the
// candidate lacks.
func SkillScore(candidate, required, preferred []string) SkillResult {
	have := records.SkillSet(candidate)
	req := records.NormalizeSkills(required)
	pref := records.NormalizeSkills(preferred)

	result := SkillResult{Matched: []string{}, Missing: []string{}}
	seen := make(map[string]struct{}, len(req)+len(pref))

	reqHits := 0
	for _, skill := range req {
		seen[skill] = struct{}{}
		if _, ok := have[skill]; ok {
			reqHits++
			result.Matched = append(result.Matched, skill)
			continue
		}
		result.Missing = append(result.Missing, skill)
	}

	prefHits := 0
	for _, skill := range pref {
		_, ok := have[skill]
		if ok {
			prefHits++
		}
		if _, dup := seen[skill]; dup {
			continue
		}
		seen[skill] = struct{}{}
		if ok {
			result.Matched = append(result.Matched, skill)
		}
	}

	if len(req) == 0 {
		result.Score = Neutral
		return result
	}

	score := float64(reqHits) / float64(len(req)) * 70
	if len(pref) == 0 {
		score += 30
	} else {
		score += float64(prefHits) / float64(len(pref)) * 30
	}
	result.Score = min(100, score)
	return result
}

// TotalYears sums the employment periods. A period without a start counts as one year, a period
// without an end runs to currentYear, and negative periods count as zero.
func TotalYears(experiences []records.Experience, currentYear int) float64 {
	total := 0.0
	for _, exp := range experiences {
		if exp.StartYear == nil {
			total++
			continue
		}
		end := currentYear
		if exp.EndYear != nil {
			end = *exp.EndYear
		}
		if years := end - *exp.StartYear; years > 0 {
			total += float64(years)
		}
	}
	return total
}

// ExperienceScore rates total years against the required minimum.
func ExperienceScore(experiences []records.Experience, minYears float64, currentYear int) float64 {
	if minYears <= 0 {
		return Neutral
	}
	total := TotalYears(experiences, currentYear)
	ratio := total / max(minYears, 1)
	if total >= minYears {
		return min(100, ratio*50+50)
	}
	return ratio * 50
}

type degreeLevel struct {
	term  string
	level int
}

var degreeHierarchy = []degreeLevel{
	{term: "high school", level: 1},
	{term: "associate", level: 2},
	{term: "bachelor", level: 3},
	{term: "master", level: 4},
	{term: "phd", level: 5},
	{term: "doctorate", level: 5},
}

// DegreeLevel returns the level of the first hierarchy term found in label, or 0.
func DegreeLevel(label string) int {
	label = strings.ToLower(label)
	for _, d := range degreeHierarchy {
		if strings.Contains(label, d.term) {
			return d.level
		}
	}
	return 0
}

func maxDegreeLevel(label string) int {
	label = strings.ToLower(label)
	best := 0
	for _, d := range degreeHierarchy {
		if strings.Contains(label, d.term) && d.level > best {
			best = d.level
		}
	}
	return best
}

// EducationScore compares the highest candidate degree to the required one.
func EducationScore(labels []string, required string) float64 {
	if strings.TrimSpace(required) == "" {
		return Neutral
	}

	cmax := 0
	for _, label := range labels {
		cmax = max(cmax, maxDegreeLevel(label))
	}
	rreq := DegreeLevel(required)

	switch {
	case cmax >= rreq:
		return 100
	case cmax > 0:
		return float64(cmax) / float64(max(rreq, 1)) * 70
	default:
		return 20
	}
}

// LocationScore rates location compatibility. The first matching rule wins.
func LocationScore(candidate, job string, remote bool) float64 {
	if remote || strings.EqualFold(strings.TrimSpace(job), "remote") {
		return 100
	}

	cparts := records.SplitLocation(candidate)
	jparts := records.SplitLocation(job)
	if len(cparts) == 0 || len(jparts) == 0 {
		return Neutral
	}

	if strings.Join(cparts, ",") == strings.Join(jparts, ",") {
		return 100
	}

	if len(cparts) >= 2 && len(jparts) >= 2 {
		if cparts[len(cparts)-1] == jparts[len(jparts)-1] {
			return 70
		}
		if cparts[0] == jparts[0] {
			return 80
		}
	}
	return 30
}
