// Package checkpoint persists chat threads and their full message history so
// a conversation survives process restarts. History is append-only: a turn
// is written as one atomic batch and existing messages are never rewritten.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var (
	// ErrNotFound is returned when a thread does not exist.
	ErrNotFound = errors.New("checkpoint: thread not found")
	// ErrInvalidThread is returned when a thread is missing its id.
	ErrInvalidThread = errors.New("checkpoint: invalid thread")
)

// Thread is the durable identity of one conversation about one document.
type Thread struct {
	ThreadID  string    `json:"threadId"`
	Namespace string    `json:"namespace"`
	Summary   string    `json:"summary"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Checkpoint is a thread with its ordered history and the routing decision
// of its latest turn.
type Checkpoint struct {
	Thread   Thread            `json:"thread"`
	Messages []*schema.Message `json:"messages"`
	Route    string            `json:"route,omitempty"`
}

// Store persists checkpoints. Implementations must be safe for concurrent use.
type Store interface {
	// Setup creates the backing schema. It is safe to call more than once.
	Setup(ctx context.Context) error

	// CreateThread stores t unless a thread with the same id exists, and
	// returns the stored thread either way.
	CreateThread(ctx context.Context, t Thread) (*Thread, error)

	// Load returns the thread and its full history, oldest first.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// Append adds msgs to the end of the thread's history and records route,
	// all or nothing. An unknown thread yields ErrNotFound.
	Append(ctx context.Context, threadID, route string, msgs []*schema.Message) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the resources held by the store.
	Close() error
}

// Open connects to the named backend and runs Setup. The DSN is a file path
// (or ":memory:") for sqlite, a connection string for postgres and a
// redis:// URL for redis. An empty sqlite DSN selects DefaultDBPath.
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(backend) {
	case BackendSQLite, "":
		if dsn == "" {
			if dsn, err = DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		s, err = OpenSQLite(dsn)
	case BackendPostgres:
		s, err = OpenPostgres(ctx, dsn)
	case BackendRedis:
		s, err = OpenRedis(dsn)
	default:
		return nil, fmt.Errorf("checkpoint: unknown backend %q (want sqlite, postgres or redis)", backend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Setup(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func validateThread(t Thread) error {
	if strings.TrimSpace(t.ThreadID) == "" {
		return fmt.Errorf("%w: thread id is required", ErrInvalidThread)
	}
	return nil
}

func encodeMessage(m *schema.Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode message: %w", err)
	}
	return b, nil
}

func decodeMessage(b []byte) (*schema.Message, error) {
	var m schema.Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("checkpoint: decode message: %w", err)
	}
	return &m, nil
}
