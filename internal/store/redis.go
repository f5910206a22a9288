package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/danghamo/groupwatch/pkg/redisx"
)

const redisKeyPrefix = "groupwatch:"

// RedisStore shares identity and group metadata through Redis, for devices
// that run several groupwatch processes for the same member
type RedisStore struct {
	client *redisx.Client
}

// NewRedisStore wraps a connected client
func NewRedisStore(client *redisx.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.GetWithLogging(ctx, redisKeyPrefix+key)
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.SetWithExpiration(ctx, redisKeyPrefix+key, value, 0)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DelWithLogging(ctx, redisKeyPrefix+key)
	return err
}
