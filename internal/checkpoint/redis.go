package checkpoint

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
)

const redisPrefix = "studykit:"

// RedisStore is a Store backed by Redis: a hash per thread for its identity
// and a list per thread for its history.
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to the redis:// URL dsn. An empty dsn selects
// localhost:6379.
func OpenRedis(dsn string) (*RedisStore, error) {
	if dsn == "" {
		dsn = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: redis: parse url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func threadKey(id string) string   { return redisPrefix + "thread:" + id }
func messagesKey(id string) string { return redisPrefix + "thread:" + id + ":messages" }

// Setup implements Store. Redis needs no schema, so it only checks the
// connection.
func (s *RedisStore) Setup(ctx context.Context) error {
	return s.Ping(ctx)
}

// CreateThread implements Store. Every field is set with HSETNX inside one
// MULTI so a concurrent creator cannot overwrite the first thread written.
func (s *RedisStore) CreateThread(ctx context.Context, t Thread) (*Thread, error) {
	if err := validateThread(t); err != nil {
		return nil, err
	}
	key := threadKey(t.ThreadID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "thread_id", t.ThreadID)
		pipe.HSetNX(ctx, key, "namespace", t.Namespace)
		pipe.HSetNX(ctx, key, "summary", t.Summary)
		pipe.HSetNX(ctx, key, "user_id", t.UserID)
		pipe.HSetNX(ctx, key, "route", "")
		pipe.HSetNX(ctx, key, "created_at", strconv.FormatInt(time.Now().Unix(), 10))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: redis: create thread: %w", err)
	}
	stored, _, err := s.thread(ctx, t.ThreadID)
	return stored, err
}

func (s *RedisStore) thread(ctx context.Context, id string) (*Thread, string, error) {
	fields, err := s.client.HGetAll(ctx, threadKey(id)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("checkpoint: redis: load thread: %w", err)
	}
	if len(fields) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ts, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	return &Thread{
		ThreadID:  fields["thread_id"],
		Namespace: fields["namespace"],
		Summary:   fields["summary"],
		UserID:    fields["user_id"],
		CreatedAt: time.Unix(ts, 0),
	}, fields["route"], nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	t, route, err := s.thread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.LRange(ctx, messagesKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: redis: load messages: %w", err)
	}
	cp := &Checkpoint{Thread: *t, Route: route, Messages: make([]*schema.Message, 0, len(raw))}
	for _, r := range raw {
		m, err := decodeMessage([]byte(r))
		if err != nil {
			return nil, err
		}
		cp.Messages = append(cp.Messages, m)
	}
	return cp, nil
}

// Append implements Store. A turn is pushed in one MULTI/EXEC, so turns
// from concurrent writers interleave whole rather than message by message.
// Threads are never deleted, which keeps the existence check race-free.
func (s *RedisStore) Append(ctx context.Context, threadID, route string, msgs []*schema.Message) error {
	payloads := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := encodeMessage(m)
		if err != nil {
			return err
		}
		payloads = append(payloads, string(b))
	}

	tkey := threadKey(threadID)
	n, err := s.client.Exists(ctx, tkey).Result()
	if err != nil {
		return fmt.Errorf("checkpoint: redis: append: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(payloads) > 0 {
			pipe.RPush(ctx, messagesKey(threadID), payloads...)
		}
		pipe.HSet(ctx, tkey, "route", route)
		return nil
	})
	if err != nil {
		return fmt.Errorf("checkpoint: redis: append: %w", err)
	}
	return nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("checkpoint: redis: ping: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("checkpoint: redis: close: %w", err)
	}
	return nil
}
