package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func codeKey(userID string) string {
	return "otp:code:" + userID
}

func attemptsKey(userID string) string {
	return "otp:attempts:" + userID
}

func (s *RedisStore) SetCode(ctx context.Context, userID string, code string, ttl time.Duration) error {
	return s.client.Set(ctx, codeKey(userID), code, ttl).Err()
}

func (s *RedisStore) GetCode(ctx context.Context, userID string) (string, error) {
	code, err := s.client.Get(ctx, codeKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCodeNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return code, nil
}

func (s *RedisStore) DeleteCode(ctx context.Context, userID string) error {
	return s.client.Del(ctx, codeKey(userID)).Err()
}

func (s *RedisStore) IncrAttempts(ctx context.Context, userID string, ttl time.Duration) (int64, error) {
	key := attemptsKey(userID)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		// Counter outlives the code slightly so expired-code retries
		// still count against the limit.
		if err := s.client.Expire(ctx, key, ttl+time.Minute).Err(); err != nil {
			return count, fmt.Errorf("redis expire: %w", err)
		}
	}
	return count, nil
}

func (s *RedisStore) ResetAttempts(ctx context.Context, userID string) error {
	return s.client.Del(ctx, attemptsKey(userID)).Err()
}
