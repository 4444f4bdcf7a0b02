//go:build integration

package matchcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/talent-matcher/internal/db"
	"github.com/spigell/talent-matcher/internal/records"
)

// These tests require running PostgreSQL and Redis instances.
// Set TEST_DATABASE_URL and TEST_REDIS_URL to run them.

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	ctx := context.Background()
	out := map[string]Backend{}

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		pool, err := db.NewPostgresPool(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		require.NoError(t, db.EnsureSchema(ctx, pool))
		_, _ = pool.Exec(ctx, "DELETE FROM match_records WHERE candidate_id LIKE 'it-%'")
		out["postgres"] = NewPostgresBackend(pool)
	}

	if url := os.Getenv("TEST_REDIS_URL"); url != "" {
		rdb, err := db.NewRedisClient(ctx, url)
		require.NoError(t, err)
		t.Cleanup(func() { _ = rdb.Close() })
		prefix := "tm-test-" + time.Now().Format("150405.000")
		out["redis"] = NewRedisBackend(rdb, prefix)
	}

	if len(out) == 0 {
		t.Skip("TEST_DATABASE_URL and TEST_REDIS_URL not set, skipping integration test")
	}
	return out
}

func TestIntegration_BackendGenerationGuard(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			newer := match("it-c", "j", 80, 2)
			newer.CreatedAt, newer.UpdatedAt = base, base
			older := match("it-c", "j", 20, 1)
			older.CreatedAt, older.UpdatedAt = base, base

			require.NoError(t, backend.Save(ctx, newer))
			require.ErrorIs(t, backend.Save(ctx, older), ErrStaleGeneration)

			loaded, err := backend.Load(ctx)
			require.NoError(t, err)

			var found *records.MatchRecord
			for _, r := range loaded {
				if r.CandidateID == "it-c" && r.JobID == "j" {
					found = r
				}
			}
			require.NotNil(t, found)
			assert.Equal(t, uint64(2), found.Generation)
			assert.Equal(t, 80.0, found.Overall)
			assert.Equal(t, []string{"go"}, found.MatchedSkills)

			require.NoError(t, backend.Delete(ctx, found.Key()))
			loaded, err = backend.Load(ctx)
			require.NoError(t, err)
			for _, r := range loaded {
				assert.NotEqual(t, "it-c", r.CandidateID)
			}
		})
	}
}
