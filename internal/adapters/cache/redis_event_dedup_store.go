package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEventDedupStore tracks processed settlement-notification event IDs in
// Redis so every API replica shares one dedup horizon. Expiry is delegated to
// Redis TTLs; the expiresAt argument only sizes the TTL.
type RedisEventDedupStore struct {
	client *redis.Client
}

func NewRedisEventDedupStore(client *redis.Client) *RedisEventDedupStore {
	return &RedisEventDedupStore{client: client}
}

func (s *RedisEventDedupStore) IsDuplicate(ctx context.Context, eventID string, _ time.Time) (bool, error) {
	n, err := s.client.Exists(ctx, "links:event_dedup:"+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisEventDedupStore) MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.Set(ctx, "links:event_dedup:"+eventID, eventType, ttl).Err()
}
