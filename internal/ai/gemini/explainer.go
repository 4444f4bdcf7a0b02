package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/ai"
	"github.com/spigell/talent-matcher/internal/logger"
	"github.com/spigell/talent-matcher/internal/records"
	"github.com/spigell/talent-matcher/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Explainer renders match narratives with Gemini.
type Explainer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewExplainer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Explainer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	fields := []zap.Field{zap.String(logger.FieldProvider, "gemini")}
	if m, ok := generator.(interface{ Model() string }); ok {
		fields = append(fields, zap.String(logger.FieldModel, m.Model()))
	}

	return &Explainer{
		generator: generator,
		logger:    logger.WithFields(log, fields...),
		maxLogLen: maxLogLength,
	}
}

var _ ai.Explainer = (*Explainer)(nil)

func (e *Explainer) Explain(ctx context.Context, candidate *records.Candidate, job *records.Job, rec *records.MatchRecord) (*ai.Insight, error) {
	if candidate == nil {
		return nil, fmt.Errorf("candidate is required")
	}
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}
	if rec == nil {
		return nil, fmt.Errorf("match record is required")
	}

	candidateJSON, err := json.MarshalIndent(candidatePayload(candidate), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidate payload: %w", err)
	}
	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	matchJSON, err := json.MarshalIndent(matchPayload(rec), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal match payload: %w", err)
	}

	prompt := buildPrompt(string(candidateJSON), string(jobJSON), string(matchJSON))
	log := logger.WithMatch(e.logger, candidate.ID, job.ID)

	log.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	insight, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	insight.Raw = raw
	return insight, nil
}

// candidatePayload leaves out talent pool settings, which say nothing about fit.
func candidatePayload(c *records.Candidate) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"location":    c.Location,
		"skills":      c.Skills,
		"experiences": c.Experiences,
		"educations":  c.DegreeLabels(),
	}
}

func matchPayload(rec *records.MatchRecord) map[string]any {
	return map[string]any{
		"overall_score":    rec.Overall,
		"skill_score":      rec.Skill,
		"experience_score": rec.Experience,
		"education_score":  rec.Education,
		"location_score":   rec.Location,
		"matched_skills":   rec.MatchedSkills,
		"missing_skills":   rec.MissingSkills,
		"grade":            rec.Grade,
	}
}

func buildPrompt(candidateJSON, jobJSON, matchJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Candidate:\n{{CANDIDATE_JSON}}\n\nJob:\n{{JOB_JSON}}\n\nMatch:\n{{MATCH_JSON}}\n\nJSON Response:"
	}
	return strings.NewReplacer(
		"{{CANDIDATE_JSON}}", candidateJSON,
		"{{JOB_JSON}}", jobJSON,
		"{{MATCH_JSON}}", matchJSON,
	).Replace(template)
}

func parseResponse(raw string) (*ai.Insight, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	insight := &ai.Insight{
		Summary:   coerceString(data["summary"]),
		Strengths: coerceStrings(data["strengths"]),
		Gaps:      coerceStrings(data["gaps"]),
	}
	if insight.Summary == "" {
		return nil, fmt.Errorf("parse gemini response: summary is missing")
	}
	return insight, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}
