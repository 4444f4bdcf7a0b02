package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/records"
)

// Postgres reads records stored as JSONB payloads. Talent pool flags come from talent_pool_entries
// and override any pool data inside the payload.
type Postgres struct {
	pool   *pgxpool.Pool
	opts   records.DecodeOptions
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, opts records.DecodeOptions, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, opts: opts, logger: logger}
}

const candidateQuery = `
SELECT c.id, c.payload,
       p.is_active, p.is_available, p.profile_visibility, p.allow_contact,
       p.auto_matching_enabled, p.match_score_threshold
FROM candidates c
LEFT JOIN talent_pool_entries p ON p.candidate_id = c.id`

const jobQuery = `SELECT id, payload, status FROM jobs`

func (p *Postgres) Candidate(ctx context.Context, id string) (*records.Candidate, error) {
	rows, err := p.pool.Query(ctx, candidateQuery+` WHERE c.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query candidate: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, p.scanCandidate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("candidate %s: %w", id, err)
	}
	return c, nil
}

func (p *Postgres) Candidates(ctx context.Context) ([]*records.Candidate, error) {
	rows, err := p.pool.Query(ctx, candidateQuery+` ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	return collectValid(rows, p.scanCandidate, p.logger.With(zap.String("table", "candidates")))
}

func (p *Postgres) Job(ctx context.Context, id string) (*records.Job, error) {
	rows, err := p.pool.Query(ctx, jobQuery+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	j, err := pgx.CollectExactlyOneRow(rows, scanJob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	return j, nil
}

func (p *Postgres) Jobs(ctx context.Context) ([]*records.Job, error) {
	rows, err := p.pool.Query(ctx, jobQuery+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	return collectValid(rows, scanJob, p.logger.With(zap.String("table", "jobs")))
}

// collectValid scans every row, skipping records that fail to decode.
func collectValid[T any](rows pgx.Rows, scan pgx.RowToFunc[T], logger *zap.Logger) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if errors.Is(err, apperror.ErrInput) || errors.Is(err, apperror.ErrConfiguration) {
			logger.Warn("skipping invalid record", zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (p *Postgres) scanCandidate(row pgx.CollectableRow) (*records.Candidate, error) {
	var (
		id           string
		payload      map[string]any
		active       *bool
		available    *bool
		visibility   *string
		allowContact *bool
		autoMatch    *bool
		threshold    *float64
	)
	if err := row.Scan(&id, &payload, &active, &available, &visibility, &allowContact, &autoMatch, &threshold); err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["id"] = id

	if active != nil {
		payload["pool"] = map[string]any{
			"is_active":             *active,
			"is_available":          deref(available),
			"profile_visibility":    deref(visibility),
			"allow_contact":         deref(allowContact),
			"auto_matching_enabled": deref(autoMatch),
			"match_score_threshold": deref(threshold),
		}
	}
	return records.DecodeCandidate(payload, p.opts)
}

func scanJob(row pgx.CollectableRow) (*records.Job, error) {
	var (
		id      string
		payload map[string]any
		status  string
	)
	if err := row.Scan(&id, &payload, &status); err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["id"] = id
	payload["status"] = status
	return records.DecodeJob(payload)
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
