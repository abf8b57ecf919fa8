package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles turn_events PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a single turn record.
func (r *Repository) Insert(ctx context.Context, rec *TurnRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	var errText *string
	if rec.Error != "" {
		errText = &rec.Error
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO turn_events (id, thread_id, message_id, workflow, status, error, duration_ms, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.ThreadID, rec.MessageID, rec.Workflow, rec.Status, errText, rec.DurationMS, rec.Source, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting turn event: %w", err)
	}
	return nil
}

// ListByThread returns paginated turn records for a thread, newest first.
func (r *Repository) ListByThread(ctx context.Context, threadID string, params ListParams) ([]TurnRecord, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	conditions := []string{"thread_id = $1"}
	args := []any{threadID}
	argIdx := 2

	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}

	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}

	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM turn_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting turn events: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := fmt.Sprintf(
		`SELECT id, thread_id, message_id, workflow, status, COALESCE(error, ''), duration_ms, source, created_at
		 FROM turn_events WHERE %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying turn events: %w", err)
	}
	defer rows.Close()

	var records []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		if err := rows.Scan(&rec.ID, &rec.ThreadID, &rec.MessageID, &rec.Workflow, &rec.Status,
			&rec.Error, &rec.DurationMS, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning turn event: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating turn events: %w", err)
	}

	return records, total, nil
}
