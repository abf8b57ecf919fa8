//go:build integration

package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aiox-platform/companion/internal/database"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "companion_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/companion_test?sslmode=disable", host, port.Port())
	require.NoError(t, database.Migrate(dsn, "../../migrations"))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresRepository(t *testing.T) {
	pool := setupPostgres(t)
	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	t.Run("create and search", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &Record{ThreadID: "t1", Content: "Loves Star Wars", SourceMessageID: "m1", Embedding: []float32{1, 0, 0}}))
		require.NoError(t, repo.Create(ctx, &Record{ThreadID: "t1", Content: "Lives in Porto", Embedding: []float32{0, 1, 0}}))
		require.NoError(t, repo.Create(ctx, &Record{ThreadID: "t2", Content: "Other thread", Embedding: []float32{1, 0, 0}}))

		res, err := repo.SearchSimilar(ctx, "t1", []float32{1, 0.1, 0}, 5, 0.5)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "Loves Star Wars", res[0].Record.Content)
		assert.Equal(t, "m1", res[0].Record.SourceMessageID)
		assert.Greater(t, res[0].Similarity, 0.9)
	})

	t.Run("list and count", func(t *testing.T) {
		recs, err := repo.ListByThread(ctx, "t1", 1, 10)
		require.NoError(t, err)
		assert.Len(t, recs, 2)

		n, err := repo.CountByThread(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("reject missing embedding", func(t *testing.T) {
		assert.Error(t, repo.Create(ctx, &Record{ThreadID: "t1", Content: "no vector"}))
	})
}
