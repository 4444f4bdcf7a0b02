package matchcache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/talent-matcher/internal/records"
)

// PostgresBackend persists match records in the match_records table.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

const upsertMatch = `
INSERT INTO match_records (
    candidate_id, job_id, skill_score, experience_score, education_score, location_score,
    overall_score, overall_exact, matched_skills, missing_skills, grade, reasons, recommendation,
    status, created_at, updated_at, expires_at, generation
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (candidate_id, job_id) DO UPDATE SET
    skill_score = EXCLUDED.skill_score,
    experience_score = EXCLUDED.experience_score,
    education_score = EXCLUDED.education_score,
    location_score = EXCLUDED.location_score,
    overall_score = EXCLUDED.overall_score,
    overall_exact = EXCLUDED.overall_exact,
    matched_skills = EXCLUDED.matched_skills,
    missing_skills = EXCLUDED.missing_skills,
    grade = EXCLUDED.grade,
    reasons = EXCLUDED.reasons,
    recommendation = EXCLUDED.recommendation,
    status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at,
    expires_at = EXCLUDED.expires_at,
    generation = EXCLUDED.generation
WHERE match_records.generation < EXCLUDED.generation`

// Save upserts rec unless the stored generation is at least as new.
func (b *PostgresBackend) Save(ctx context.Context, rec *records.MatchRecord) error {
	tag, err := b.pool.Exec(ctx, upsertMatch,
		rec.CandidateID, rec.JobID, rec.Skill, rec.Experience, rec.Education, rec.Location,
		rec.Overall, rec.OverallExact, nonNil(rec.MatchedSkills), nonNil(rec.MissingSkills),
		rec.Grade, nonNil(rec.Reasons), rec.Recommendation,
		string(rec.Status), rec.CreatedAt, rec.UpdatedAt, rec.ExpiresAt, int64(rec.Generation),
	)
	if err != nil {
		return fmt.Errorf("upsert match %s: %w", rec.Key(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upsert match %s: %w", rec.Key(), ErrStaleGeneration)
	}
	return nil
}

// Delete removes the given keys.
func (b *PostgresBackend) Delete(ctx context.Context, keys ...records.Key) error {
	if len(keys) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, key := range keys {
		batch.Queue(`DELETE FROM match_records WHERE candidate_id = $1 AND job_id = $2`, key.CandidateID, key.JobID)
	}
	if err := b.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("delete matches: %w", err)
	}
	return nil
}

// Load reads every persisted record.
func (b *PostgresBackend) Load(ctx context.Context) ([]*records.MatchRecord, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT candidate_id, job_id, skill_score, experience_score, education_score, location_score,
		        overall_score, overall_exact, matched_skills, missing_skills, grade, reasons,
		        recommendation, status, created_at, updated_at, expires_at, generation
		 FROM match_records`,
	)
	if err != nil {
		return nil, fmt.Errorf("query match_records: %w", err)
	}
	defer rows.Close()

	var out []*records.MatchRecord
	for rows.Next() {
		var (
			rec        records.MatchRecord
			status     string
			generation int64
		)
		if err := rows.Scan(
			&rec.CandidateID, &rec.JobID, &rec.Skill, &rec.Experience, &rec.Education, &rec.Location,
			&rec.Overall, &rec.OverallExact, &rec.MatchedSkills, &rec.MissingSkills, &rec.Grade, &rec.Reasons,
			&rec.Recommendation, &status, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt, &generation,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec.Status = records.MatchStatus(status)
		rec.Generation = uint64(generation)
		out = append(out, &rec)
	}

	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
