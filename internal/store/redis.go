package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackesh4086/spr-price-check/internal/client"
)

// RedisStore adapts the shared Redis client to the Store contract. Expiry
// is handled server-side by Redis TTLs.
type RedisStore struct {
	client *client.RedisClient
}

// NewRedisStore wraps an initialized Redis client.
func NewRedisStore(c *client.RedisClient) *RedisStore {
	return &RedisStore{client: c}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis store get: %w", err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("redis store set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key); err != nil {
		return fmt.Errorf("redis store delete: %w", err)
	}
	return nil
}

// Incr runs INCR+EXPIRE in one transaction, so concurrent instances
// sharing the same Redis never lose a count.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.client.IncrWithExpire(ctx, key, ttl)
	if err != nil {
		return 0, fmt.Errorf("redis store incr: %w", err)
	}
	return count, nil
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	set, err := s.client.SetNX(ctx, key, value, ttl)
	if err != nil {
		return false, fmt.Errorf("redis store setnx: %w", err)
	}
	return set, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("redis store ttl: %w", err)
	}
	return ttl, nil
}
