package totp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists TOTP secrets without a TTL: secrets live until
// explicitly revoked.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "totp:",
	}
}

func (r *RedisStore) key(subjectID string) string {
	return r.prefix + subjectID
}

func (r *RedisStore) Get(ctx context.Context, subjectID string) (*Secret, error) {
	val, err := r.client.Get(ctx, r.key(subjectID)).Result()
	if err == redis.Nil {
		return nil, nil // not enrolled
	}
	if err != nil {
		return nil, err
	}

	var s Secret
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("totp: failed to unmarshal secret: %w", err)
	}

	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s Secret) error {
	if s.SubjectID == "" {
		return fmt.Errorf("totp: missing subject_id")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("totp: failed to marshal secret: %w", err)
	}

	return r.client.Set(ctx, r.key(s.SubjectID), data, 0).Err()
}

func (r *RedisStore) Delete(ctx context.Context, subjectID string) error {
	return r.client.Del(ctx, r.key(subjectID)).Err()
}
