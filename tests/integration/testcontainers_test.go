// Package integration provides integration tests for the chitalishte
// query engine against real PostgreSQL and Redis instances.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"
)

// TestContainerSetup represents the test container infrastructure.
type TestContainerSetup struct {
	PostgresContainer testcontainers.Container
	RedisContainer    testcontainers.Container
	PostgresConnStr   string
	RedisAddr         string
	cleanup           func()
}

// SetupTestContainers initializes PostgreSQL and Redis containers.
func SetupTestContainers(t *testing.T) *TestContainerSetup {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("chitalishte_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pgConnStr := fmt.Sprintf("postgres://test:test@%s:%s/chitalishte_test?sslmode=disable",
		pgHost, pgPort.Port())

	redisContainer, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)

	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	setup := &TestContainerSetup{
		PostgresContainer: pgContainer,
		RedisContainer:    redisContainer,
		PostgresConnStr:   pgConnStr,
		RedisAddr:         fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
		cleanup: func() {
			if err := pgContainer.Terminate(ctx); err != nil {
				t.Logf("Failed to terminate postgres container: %v", err)
			}
			if err := redisContainer.Terminate(ctx); err != nil {
				t.Logf("Failed to terminate redis container: %v", err)
			}
		},
	}

	return setup
}

// Cleanup terminates all test containers.
func (s *TestContainerSetup) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// RunMigrations applies the schema and waits for the database.
func (s *TestContainerSetup) RunMigrations(t *testing.T) {
	t.Helper()

	db, err := sql.Open("postgres", s.PostgresConnStr)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("Database not ready after 30 seconds")
		case <-time.After(100 * time.Millisecond):
			continue
		}
	}

	migration, err := os.ReadFile("../../db/migrations/0001_init.sql")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, string(migration))
	require.NoError(t, err)
}

// SeedData inserts a small chitalishte dataset.
func (s *TestContainerSetup) SeedData(t *testing.T) {
	t.Helper()

	db, err := sql.Open("postgres", s.PostgresConnStr)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	_, err = db.ExecContext(ctx, `
		INSERT INTO chitalishte (name, region, municipality, town, chairman, members_count, founded_year, status) VALUES
		('Развитие 1869', 'Враца', 'Враца', 'гр. Враца', 'Иван Иванов', 120, 1869, 'активно'),
		('Пробуда 1896', 'Враца', 'Мездра', 'гр. Мездра', NULL, 85, 1896, 'активно'),
		('Съзнание 1927', 'Враца', 'Враца', 'с. Бели извор', 'Мария Петрова', NULL, 1927, 'активно'),
		('Христо Ботев 1884', 'Монтана', 'Монтана', 'гр. Монтана', 'Георги Георгиев', 210, 1884, 'активно')
	`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO activities (chitalishte_id, name, category, participants) VALUES
		(1, 'Танцов състав', 'танци', 40),
		(1, 'Библиотека', 'библиотека', NULL),
		(2, 'Театрална трупа', 'театър', 18),
		(4, 'Хор', 'музика', 25)
	`)
	require.NoError(t, err)
}

func TestPostgresConnection(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := SetupTestContainers(t)
	defer setup.Cleanup()
	setup.RunMigrations(t)

	db, err := sql.Open("postgres", setup.PostgresConnStr)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM chitalishte").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
