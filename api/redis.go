package api

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps session tokens in Redis so sessions survive process
// restarts and can be shared across instances.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store using the provided Redis
// client and inactivity TTL.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return "session:" + token
}

func (s *RedisSessionStore) Create(ctx context.Context) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, sessionKey(token), 1, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Valid refreshes the key TTL; Expire reports false when the key is gone,
// which doubles as the liveness check.
func (s *RedisSessionStore) Valid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return s.client.Expire(ctx, sessionKey(token), s.ttl).Result()
}

func (s *RedisSessionStore) Invalidate(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

// RedisRateLimiter implements a sliding window over a sorted set per key:
// old members are trimmed by score, the cardinality is the in-window count.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisRateLimiter creates a limiter allowing limit calls per window and
// key. The prefix separates independent quotas sharing one Redis database.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window, prefix: prefix}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "ratelimit:" + l.prefix + key
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	cutoff := strconv.FormatFloat(now-l.window.Seconds(), 'f', -1, 64)

	var count *redis.IntCmd
	_, err := l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "0", cutoff)
		count = pipe.ZCard(ctx, k)
		return nil
	})
	if err != nil {
		return false, err
	}
	if count.Val() >= int64(l.limit) {
		return false, nil
	}

	_, err = l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, k, redis.Z{Score: now, Member: uuid.NewString()})
		pipe.Expire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
