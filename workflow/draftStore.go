package workflow

import (
	"context"
	"time"

	"github.com/medequip/equipment_backend/config"
)

// RedisStore keeps one user's draft working copies in redis under
// Draft:<username>:<key>, expiring after ttl of inactivity.
type RedisStore struct {
	namespace string
	ttl       time.Duration
}

func NewRedisStore(username string, ttl time.Duration) *RedisStore {
	return &RedisStore{namespace: "Draft:" + username + ":", ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	return config.GetRedisValue(ctx, s.namespace+key)
}

func (s *RedisStore) Set(ctx context.Context, key string, value string) error {
	return config.SetRedisValue(ctx, s.namespace+key, value, s.ttl)
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	return config.RemoveRedisKey(ctx, s.namespace+key)
}
