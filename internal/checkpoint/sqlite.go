package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT PRIMARY KEY,
	message_id TEXT NOT NULL,
	stage      TEXT NOT NULL,
	done       INTEGER NOT NULL DEFAULT 0,
	state      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore persists checkpoints in a local SQLite file, for single-node
// deployments and the local chat command.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating checkpoint directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating checkpoint schema: %w", err)
	}

	slog.Info("checkpoint store opened", "driver", "sqlite", "path", path)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	var (
		cp      Checkpoint
		done    int
		raw     string
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id, stage, done, state, updated_at FROM checkpoints WHERE thread_id = ?`, threadID,
	).Scan(&cp.MessageID, &cp.Stage, &done, &raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", threadID, err)
	}
	if err := json.Unmarshal([]byte(raw), &cp.State); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", threadID, err)
	}
	cp.Done = done != 0
	cp.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &cp, nil
}

func (s *SQLiteStore) Save(ctx context.Context, threadID string, cp *Checkpoint) error {
	raw, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	done := 0
	if cp.Done {
		done = 1
	}
	updated := cp.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, message_id, stage, done, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			message_id = excluded.message_id,
			stage      = excluded.stage,
			done       = excluded.done,
			state      = excluded.state,
			updated_at = excluded.updated_at`,
		threadID, cp.MessageID, cp.Stage, done, string(raw), updated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", threadID, err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
