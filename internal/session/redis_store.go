package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed token store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "token:",
	}
}

func (r *RedisStore) key(kind TokenKind, token string) string {
	return r.prefix + string(kind) + ":" + token
}

func (r *RedisStore) Create(ctx context.Context, rec Record) error {
	if rec.Token == "" || rec.UserID == "" {
		return fmt.Errorf("session: missing token or user_id")
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	return r.client.Set(ctx, r.key(rec.Kind, rec.Token), data, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, kind TokenKind, token string) (*Record, error) {
	val, err := r.client.Get(ctx, r.key(kind, token)).Result()
	if err == redis.Nil {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}

	return &rec, nil
}

func (r *RedisStore) Delete(ctx context.Context, kind TokenKind, token string) error {
	return r.client.Del(ctx, r.key(kind, token)).Err()
}
