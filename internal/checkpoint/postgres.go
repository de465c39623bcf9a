package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the subset of *pgxpool.Pool the Postgres store uses. It lets
// tests substitute a pgxmock pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore is a Store backed by PostgreSQL. Appends lock the thread row
// so concurrent writers from several processes append whole turns in turn.
type PostgresStore struct {
	pool DBPool
}

// OpenPostgres connects a pool to dsn.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("checkpoint: postgres: CHECKPOINT_DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: postgres: connect: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool DBPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Setup implements Store.
func (s *PostgresStore) Setup(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS studykit_threads (
    thread_id  TEXT        PRIMARY KEY,
    namespace  TEXT        NOT NULL,
    summary    TEXT        NOT NULL,
    user_id    TEXT        NOT NULL,
    route      TEXT        NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS studykit_messages (
    thread_id  TEXT        NOT NULL REFERENCES studykit_threads (thread_id),
    seq        BIGINT      NOT NULL,
    payload    JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (thread_id, seq)
);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("checkpoint: postgres: create schema: %w", err)
	}
	return nil
}

const pgSelectThread = `SELECT thread_id, namespace, summary, user_id, route, created_at FROM studykit_threads WHERE thread_id = $1`

// CreateThread implements Store.
func (s *PostgresStore) CreateThread(ctx context.Context, t Thread) (*Thread, error) {
	if err := validateThread(t); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO studykit_threads (thread_id, namespace, summary, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5) ON CONFLICT (thread_id) DO NOTHING`,
		t.ThreadID, t.Namespace, t.Summary, t.UserID, now,
	); err != nil {
		return nil, fmt.Errorf("checkpoint: postgres: create thread: %w", err)
	}
	stored, _, err := scanThread(s.pool.QueryRow(ctx, pgSelectThread, t.ThreadID), t.ThreadID)
	return stored, err
}

func scanThread(row pgx.Row, id string) (*Thread, string, error) {
	var (
		t     Thread
		route string
	)
	err := row.Scan(&t.ThreadID, &t.Namespace, &t.Summary, &t.UserID, &route, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("checkpoint: postgres: load thread: %w", err)
	}
	return &t, route, nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	t, route, err := scanThread(s.pool.QueryRow(ctx, pgSelectThread, threadID), threadID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT payload FROM studykit_messages WHERE thread_id = $1 ORDER BY seq ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: postgres: load messages: %w", err)
	}
	defer rows.Close()

	cp := &Checkpoint{Thread: *t, Route: route}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("checkpoint: postgres: scan message: %w", err)
		}
		m, err := decodeMessage(payload)
		if err != nil {
			return nil, err
		}
		cp.Messages = append(cp.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checkpoint: postgres: iterate messages: %w", err)
	}
	return cp, nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, threadID, route string, msgs []*schema.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint: postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT thread_id FROM studykit_threads WHERE thread_id = $1 FOR UPDATE`, threadID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	if err != nil {
		return fmt.Errorf("checkpoint: postgres: lock thread: %w", err)
	}

	var last int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM studykit_messages WHERE thread_id = $1`, threadID).Scan(&last); err != nil {
		return fmt.Errorf("checkpoint: postgres: last seq: %w", err)
	}

	now := time.Now().UTC()
	for i, m := range msgs {
		payload, err := encodeMessage(m)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO studykit_messages (thread_id, seq, payload, created_at) VALUES ($1, $2, $3, $4)`,
			threadID, last+int64(i)+1, payload, now,
		); err != nil {
			return fmt.Errorf("checkpoint: postgres: insert message: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE studykit_threads SET route = $1, updated_at = $2 WHERE thread_id = $3`, route, now, threadID); err != nil {
		return fmt.Errorf("checkpoint: postgres: update thread: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("checkpoint: postgres: commit: %w", err)
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("checkpoint: postgres: ping: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
