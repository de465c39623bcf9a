package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/eino/schema"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns ~/.studykit/checkpoints.db, creating the directory
// if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("checkpoint: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".studykit")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("checkpoint: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "checkpoints.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteStore at path and migrates its
// schema. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	// One connection: a single writer avoids SQLITE_BUSY and keeps an
	// in-memory database alive for the life of the store.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.Setup(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Setup implements Store.
func (s *SQLiteStore) Setup(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS threads (
    thread_id    TEXT    PRIMARY KEY,
    namespace    TEXT    NOT NULL,
    summary      TEXT    NOT NULL,
    user_id      TEXT    NOT NULL,
    route        TEXT    NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL,  -- Unix timestamp (seconds)
    updated_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS thread_messages (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    thread_id    TEXT    NOT NULL REFERENCES threads(thread_id),
    seq          INTEGER NOT NULL,
    payload      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL,
    UNIQUE (thread_id, seq)
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("checkpoint: migrate: %w", err)
	}
	return nil
}

// CreateThread implements Store.
func (s *SQLiteStore) CreateThread(ctx context.Context, t Thread) (*Thread, error) {
	if err := validateThread(t); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	const q = `INSERT INTO threads (thread_id, namespace, summary, user_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (thread_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, t.ThreadID, t.Namespace, t.Summary, t.UserID, now, now); err != nil {
		return nil, fmt.Errorf("checkpoint: create thread: %w", err)
	}
	stored, _, err := s.thread(ctx, s.db, t.ThreadID)
	return stored, err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) thread(ctx context.Context, q querier, id string) (*Thread, string, error) {
	var (
		t     Thread
		route string
		ts    int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT thread_id, namespace, summary, user_id, route, created_at FROM threads WHERE thread_id = ?`, id,
	).Scan(&t.ThreadID, &t.Namespace, &t.Summary, &t.UserID, &route, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("checkpoint: load thread: %w", err)
	}
	t.CreatedAt = time.Unix(ts, 0)
	return &t, route, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	t, route, err := s.thread(ctx, s.db, threadID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM thread_messages WHERE thread_id = ? ORDER BY seq ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load messages: %w", err)
	}
	defer rows.Close()

	cp := &Checkpoint{Thread: *t, Route: route}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("checkpoint: load messages scan: %w", err)
		}
		m, err := decodeMessage([]byte(payload))
		if err != nil {
			return nil, err
		}
		cp.Messages = append(cp.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checkpoint: load messages rows: %w", err)
	}
	return cp, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, threadID, route string, msgs []*schema.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("checkpoint: append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, _, err := s.thread(ctx, tx, threadID); err != nil {
		return err
	}

	var last int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM thread_messages WHERE thread_id = ?`, threadID,
	).Scan(&last); err != nil {
		return fmt.Errorf("checkpoint: append: last seq: %w", err)
	}

	now := time.Now().Unix()
	for i, m := range msgs {
		payload, err := encodeMessage(m)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thread_messages (thread_id, seq, payload, created_at) VALUES (?, ?, ?, ?)`,
			threadID, last+int64(i)+1, string(payload), now,
		); err != nil {
			return fmt.Errorf("checkpoint: append message: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET route = ?, updated_at = ? WHERE thread_id = ?`, route, now, threadID,
	); err != nil {
		return fmt.Errorf("checkpoint: append: update thread: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("checkpoint: append: commit: %w", err)
	}
	return nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("checkpoint: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("checkpoint: close: %w", err)
	}
	return nil
}
