package repositories_postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const Schema = `
CREATE TABLE IF NOT EXISTS threads (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	thread_id TEXT    NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	body      JSONB   NOT NULL,
	PRIMARY KEY (thread_id, seq)
);
`

// DBPool abstracts pgxpool.Pool so the repository can be tested against a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresCheckpointRepository stores messages as JSONB rows ordered by a per
// thread sequence number. Rows are only ever inserted.
type PostgresCheckpointRepository struct {
	pool   DBPool
	logger *zap.Logger
}

// Connect opens a pool for uri and applies the schema.
func Connect(ctx context.Context, uri string, logger *zap.Logger) (*pgxpool.Pool, *PostgresCheckpointRepository, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, nil, errs.InternalErrorf("failed to open pool: %v", err)
	}
	repo, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, nil, errs.InternalErrorf("migration failed: %v", err)
	}
	return pool, repo, nil
}

// New verifies the connection and returns the repository.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresCheckpointRepository, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, errs.InternalErrorf("failed to ping database: %v", err)
	}
	return &PostgresCheckpointRepository{
		pool:   pool,
		logger: logger.Named("checkpoint"),
	}, nil
}

func (r *PostgresCheckpointRepository) LoadThread(ctx context.Context, threadID string) (*entities.Thread, error) {
	thread := &entities.Thread{ID: threadID, Messages: make([]entities.Message, 0)}
	err := r.pool.QueryRow(ctx,
		"SELECT created_at, updated_at FROM threads WHERE id = $1", threadID).
		Scan(&thread.CreatedAt, &thread.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFoundErrorf("thread not found: %s", threadID)
	}
	if err != nil {
		return nil, errs.InternalErrorf("failed to load thread: %v", err)
	}

	rows, err := r.pool.Query(ctx,
		"SELECT body FROM messages WHERE thread_id = $1 ORDER BY seq", threadID)
	if err != nil {
		return nil, errs.InternalErrorf("failed to load messages: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, errs.InternalErrorf("failed to scan message: %v", err)
		}
		var msg entities.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			return nil, errs.InternalErrorf("failed to decode message: %v", err)
		}
		thread.Messages = append(thread.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.InternalErrorf("failed to load messages: %v", err)
	}
	return thread, nil
}

func (r *PostgresCheckpointRepository) AppendMessages(ctx context.Context, threadID string, messages []entities.Message) error {
	if threadID == "" {
		return errs.ValidationErrorf("thread ID is required")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.InternalErrorf("failed to begin transaction: %v", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			r.logger.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		INSERT INTO threads (id, created_at, updated_at) VALUES ($1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		threadID, now); err != nil {
		return errs.InternalErrorf("failed to upsert thread: %v", err)
	}

	var seq int
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM messages WHERE thread_id = $1", threadID).Scan(&seq); err != nil {
		return errs.InternalErrorf("failed to read sequence: %v", err)
	}

	for _, msg := range messages {
		body, err := json.Marshal(msg)
		if err != nil {
			return errs.InternalErrorf("failed to encode message: %v", err)
		}
		seq++
		if _, err := tx.Exec(ctx,
			"INSERT INTO messages (thread_id, seq, body) VALUES ($1, $2, $3)",
			threadID, seq, body); err != nil {
			return errs.InternalErrorf("failed to insert message: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.InternalErrorf("failed to commit transaction: %v", err)
	}
	return nil
}

func (r *PostgresCheckpointRepository) ListThreads(ctx context.Context) ([]entities.ThreadSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.created_at, t.updated_at, COUNT(m.seq)
		FROM threads t LEFT JOIN messages m ON m.thread_id = t.id
		GROUP BY t.id
		ORDER BY t.updated_at DESC`)
	if err != nil {
		return nil, errs.InternalErrorf("failed to list threads: %v", err)
	}
	defer rows.Close()

	summaries := make([]entities.ThreadSummary, 0)
	for rows.Next() {
		var summary entities.ThreadSummary
		var count int64
		if err := rows.Scan(&summary.ID, &summary.CreatedAt, &summary.UpdatedAt, &count); err != nil {
			return nil, errs.InternalErrorf("failed to scan thread: %v", err)
		}
		summary.MessageCount = int(count)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.InternalErrorf("failed to list threads: %v", err)
	}
	return summaries, nil
}

// DeleteThread removes the thread; its messages go with it through the cascade.
func (r *PostgresCheckpointRepository) DeleteThread(ctx context.Context, threadID string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM threads WHERE id = $1", threadID)
	if err != nil {
		return errs.InternalErrorf("failed to delete thread: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFoundErrorf("thread not found: %s", threadID)
	}
	return nil
}

var _ interfaces.CheckpointRepository = (*PostgresCheckpointRepository)(nil)
var _ DBPool = (*pgxpool.Pool)(nil)
