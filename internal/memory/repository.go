package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Repository defines memory persistence operations.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	SearchSimilar(ctx context.Context, threadID string, embedding []float32, limit int, threshold float64) ([]SearchResult, error)
	ListByThread(ctx context.Context, threadID string, page, pageSize int) ([]Record, error)
	CountByThread(ctx context.Context, threadID string) (int64, error)
}

// PostgresRepository implements Repository using pgx + pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new memory repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("memory %s has no embedding", rec.ID)
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO memories (id, thread_id, content, source_message_id, embedding)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		 RETURNING created_at`,
		rec.ID, rec.ThreadID, rec.Content, rec.SourceMessageID, pgvector.NewVector(rec.Embedding),
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting memory: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SearchSimilar(ctx context.Context, threadID string, embedding []float32, limit int, threshold float64) ([]SearchResult, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx,
		`SELECT id, thread_id, content, COALESCE(source_message_id, ''), created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM memories
		 WHERE thread_id = $2
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, threadID, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching similar memories: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var m Record
		var similarity float64
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Content, &m.SourceMessageID, &m.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, SearchResult{Record: m, Similarity: similarity})
	}
	return results, rows.Err()
}

func (r *PostgresRepository) ListByThread(ctx context.Context, threadID string, page, pageSize int) ([]Record, error) {
	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT id, thread_id, content, COALESCE(source_message_id, ''), created_at
		 FROM memories
		 WHERE thread_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		threadID, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var m Record
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Content, &m.SourceMessageID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		records = append(records, m)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) CountByThread(ctx context.Context, threadID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memories WHERE thread_id = $1`,
		threadID,
	).Scan(&count)
	return count, err
}
