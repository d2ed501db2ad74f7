package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitalishte-ai/query-engine/internal/cache"
	"github.com/chitalishte-ai/query-engine/internal/observability"
	"github.com/chitalishte-ai/query-engine/internal/sqlguard"
	"github.com/chitalishte-ai/query-engine/internal/storage"
)

// TestGuardedQueryExecution runs model-shaped SQL through the validator,
// the rewriter, and a real PostgreSQL instance.
func TestGuardedQueryExecution(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := SetupTestContainers(t)
	defer setup.Cleanup()
	setup.RunMigrations(t)
	setup.SeedData(t)

	db, err := storage.Open(storage.OpenConfig{
		Driver: "postgres",
		DSN:    setup.PostgresConnStr,
	})
	require.NoError(t, err)
	defer db.Close()

	catalog := sqlguard.DefaultCatalog()
	executor := storage.NewExecutor(db, observability.Nop(), 100, 10*time.Second)
	ctx := context.Background()

	t.Run("case insensitive region match", func(t *testing.T) {
		raw := "SELECT name FROM chitalishte WHERE region = 'враца'"

		validation := sqlguard.Validate(raw, catalog)
		require.True(t, validation.IsValid)

		rewritten := sqlguard.Rewrite(raw, catalog)
		assert.Contains(t, rewritten.AppliedPasses, "case_insensitive_text")

		result, err := executor.Query(ctx, rewritten.SQL)
		require.NoError(t, err)
		// The raw equality would match nothing; the rewrite finds all
		// three records in the region.
		assert.Len(t, result.Rows, 3)
	})

	t.Run("composite town match", func(t *testing.T) {
		raw := "SELECT name FROM chitalishte WHERE town = 'Мездра'"

		rewritten := sqlguard.Rewrite(raw, catalog)
		assert.Contains(t, rewritten.AppliedPasses, "composite_pattern")

		result, err := executor.Query(ctx, rewritten.SQL)
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, "Пробуда 1896", result.Rows[0]["name"])
	})

	t.Run("null filter on ordered nullable column", func(t *testing.T) {
		raw := "SELECT name, members_count FROM chitalishte ORDER BY members_count DESC"

		rewritten := sqlguard.Rewrite(raw, catalog)
		assert.Contains(t, rewritten.AppliedPasses, "null_filter")

		result, err := executor.Query(ctx, rewritten.SQL)
		require.NoError(t, err)
		// The record with NULL members_count is filtered out.
		require.Len(t, result.Rows, 3)
		assert.Equal(t, "Христо Ботев 1884", result.Rows[0]["name"])
	})

	t.Run("fanout dedup on child ordering", func(t *testing.T) {
		raw := "SELECT c.name, a.participants FROM chitalishte c JOIN activities a ON a.chitalishte_id = c.id ORDER BY a.participants DESC"

		rewritten := sqlguard.Rewrite(raw, catalog)
		assert.Contains(t, rewritten.AppliedPasses, "fanout_dedup")

		result, err := executor.Query(ctx, rewritten.SQL)
		require.NoError(t, err)
		// One row per chitalishte with activities, not one per activity.
		require.Len(t, result.Rows, 3)
		assert.Equal(t, "Развитие 1869", result.Rows[0]["name"])
	})

	t.Run("rejected SQL never reaches the database", func(t *testing.T) {
		validation := sqlguard.Validate("DELETE FROM chitalishte", catalog)
		assert.False(t, validation.IsValid)
		assert.Equal(t, sqlguard.ErrorDangerousKeyword, validation.Category)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM chitalishte").Scan(&count))
		assert.Equal(t, 4, count)
	})

	t.Run("column correction against live schema", func(t *testing.T) {
		raw := "SELECT name, member_count FROM chitalishte WHERE oblast = 'Враца' ORDER BY member_count DESC"

		rewritten := sqlguard.Rewrite(raw, catalog)
		assert.Contains(t, rewritten.AppliedPasses, "column_correction")

		result, err := executor.Query(ctx, rewritten.SQL)
		require.NoError(t, err)
		require.Len(t, result.Rows, 2)
		assert.EqualValues(t, int64(120), result.Rows[0]["members_count"])
	})
}

// TestRedisAnswerCache exercises the Redis-backed cache round trip.
func TestRedisAnswerCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := SetupTestContainers(t)
	defer setup.Cleanup()

	client, err := cache.NewRedisClient(cache.RedisConfig{Addr: setup.RedisAddr})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	key := cache.QuestionKey("Колко читалища има във Враца?")

	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, client.Set(ctx, key, []byte(`{"cached":true}`), time.Minute))

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"cached":true}`), got)
}
