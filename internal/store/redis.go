// internal/store/redis.go
package store

import (
	"context"
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/database"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the networked adapter backed by the shared Redis wrapper.
type RedisStore struct {
	client *database.RedisClient
}

// NewRedisStore wraps an existing Redis client as a Store.
func NewRedisStore(client *database.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key)
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl)
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl)
}

func (s *RedisStore) Append(ctx context.Context, listKey, value string) error {
	return s.client.RPush(ctx, listKey, value)
}

func (s *RedisStore) GetList(ctx context.Context, listKey string) ([]string, error) {
	return s.client.LRange(ctx, listKey, 0, -1)
}

func (s *RedisStore) SetAdd(ctx context.Context, setKey, member string) error {
	return s.client.SAdd(ctx, setKey, member)
}

func (s *RedisStore) SetRemove(ctx context.Context, setKey, member string) error {
	return s.client.SRem(ctx, setKey, member)
}

func (s *RedisStore) SetMembers(ctx context.Context, setKey string) ([]string, error) {
	return s.client.SMembers(ctx, setKey)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key)
}
