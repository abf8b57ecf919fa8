package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON checkpoint per thread.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore expires idle threads after ttl. Zero keeps them forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func checkpointKey(threadID string) string {
	return fmt.Sprintf("checkpoint:%s", threadID)
}

func (s *RedisStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	key := checkpointKey(threadID)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return &cp, nil
}

func (s *RedisStore) Save(ctx context.Context, threadID string, cp *Checkpoint) error {
	key := checkpointKey(threadID)
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete drops the checkpoint of a thread.
func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	return s.client.Del(ctx, checkpointKey(threadID)).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
