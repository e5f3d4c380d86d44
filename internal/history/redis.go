package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lucy-support-gateway/models"
)

// RedisStore persists history as a JSON array, one key per session.
type RedisStore struct {
	rdb   *redis.Client
	limit int
}

func NewRedisStore(rdb *redis.Client, limit int) *RedisStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RedisStore{rdb: rdb, limit: limit}
}

func (s *RedisStore) key(session string) string {
	return StorageKey + ":" + session
}

func (s *RedisStore) Load(ctx context.Context, session string) ([]models.ChatMessage, error) {
	raw, err := s.rdb.Get(ctx, s.key(session)).Result()
	if err == redis.Nil {
		return []models.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var msgs []models.ChatMessage
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		// A corrupt blob behaves like no history at all.
		return []models.ChatMessage{}, nil
	}
	return msgs, nil
}

func (s *RedisStore) Save(ctx context.Context, session string, msgs []models.ChatMessage) error {
	raw, err := json.Marshal(Truncate(msgs, s.limit))
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(session), raw, 0).Err(); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
