package records

import "strings"

// NormalizeSkill lowercases and trims a skill tag. No synonym folding is applied.
func NormalizeSkill(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

// NormalizeSkills normalises every tag, dropping empty tags and later duplicates.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, skill := range skills {
		normalized := NormalizeSkill(skill)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// SkillSet builds a lookup set of normalised skills.
func SkillSet(skills []string) map[string]struct{} {
	set := make(map[string]struct{}, len(skills))
	for _, skill := range skills {
		if normalized := NormalizeSkill(skill); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}
