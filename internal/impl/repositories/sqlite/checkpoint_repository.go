package repositories_sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	errors "github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS threads (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	thread_id TEXT    NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	body      TEXT    NOT NULL,
	PRIMARY KEY (thread_id, seq)
);
`

// SQLiteCheckpointRepository stores messages as JSON rows ordered by a per
// thread sequence number. Rows are only ever inserted.
type SQLiteCheckpointRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteCheckpointRepository(path string, logger *zap.Logger) (*SQLiteCheckpointRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Opened checkpoint database", zap.String("path", path))
	return &SQLiteCheckpointRepository{db: db, logger: logger}, nil
}

func (r *SQLiteCheckpointRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteCheckpointRepository) LoadThread(ctx context.Context, threadID string) (*entities.Thread, error) {
	var created, updated int64
	err := r.db.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM threads WHERE id = ?", threadID).Scan(&created, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundErrorf("thread not found: %s", threadID)
	}
	if err != nil {
		return nil, errors.InternalErrorf("failed to load thread: %v", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT body FROM messages WHERE thread_id = ? ORDER BY seq", threadID)
	if err != nil {
		return nil, errors.InternalErrorf("failed to load messages: %v", err)
	}
	defer rows.Close()

	thread := &entities.Thread{
		ID:        threadID,
		Messages:  make([]entities.Message, 0),
		CreatedAt: time.Unix(0, created),
		UpdatedAt: time.Unix(0, updated),
	}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.InternalErrorf("failed to scan message: %v", err)
		}
		var msg entities.Message
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			return nil, errors.InternalErrorf("failed to decode message: %v", err)
		}
		thread.Messages = append(thread.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalErrorf("failed to load messages: %v", err)
	}
	return thread, nil
}

func (r *SQLiteCheckpointRepository) AppendMessages(ctx context.Context, threadID string, messages []entities.Message) error {
	if threadID == "" {
		return errors.ValidationErrorf("thread ID is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.InternalErrorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		threadID, now, now); err != nil {
		return errors.InternalErrorf("failed to upsert thread: %v", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM messages WHERE thread_id = ?", threadID).Scan(&seq); err != nil {
		return errors.InternalErrorf("failed to read sequence: %v", err)
	}

	for _, msg := range messages {
		body, err := json.Marshal(msg)
		if err != nil {
			return errors.InternalErrorf("failed to encode message: %v", err)
		}
		seq++
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (thread_id, seq, body) VALUES (?, ?, ?)",
			threadID, seq, string(body)); err != nil {
			return errors.InternalErrorf("failed to insert message: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.InternalErrorf("failed to commit: %v", err)
	}
	r.logger.Debug("Appended messages", zap.String("thread_id", threadID), zap.Int("count", len(messages)))
	return nil
}

func (r *SQLiteCheckpointRepository) ListThreads(ctx context.Context) ([]entities.ThreadSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.created_at, t.updated_at, COUNT(m.seq)
		FROM threads t LEFT JOIN messages m ON m.thread_id = t.id
		GROUP BY t.id
		ORDER BY t.updated_at DESC`)
	if err != nil {
		return nil, errors.InternalErrorf("failed to list threads: %v", err)
	}
	defer rows.Close()

	summaries := make([]entities.ThreadSummary, 0)
	for rows.Next() {
		var summary entities.ThreadSummary
		var created, updated int64
		if err := rows.Scan(&summary.ID, &created, &updated, &summary.MessageCount); err != nil {
			return nil, errors.InternalErrorf("failed to scan thread: %v", err)
		}
		summary.CreatedAt = time.Unix(0, created)
		summary.UpdatedAt = time.Unix(0, updated)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (r *SQLiteCheckpointRepository) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.InternalErrorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE thread_id = ?", threadID); err != nil {
		return errors.InternalErrorf("failed to delete messages: %v", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM threads WHERE id = ?", threadID)
	if err != nil {
		return errors.InternalErrorf("failed to delete thread: %v", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.NotFoundErrorf("thread not found: %s", threadID)
	}
	if err := tx.Commit(); err != nil {
		return errors.InternalErrorf("failed to commit: %v", err)
	}
	return nil
}

var _ interfaces.CheckpointRepository = (*SQLiteCheckpointRepository)(nil)
