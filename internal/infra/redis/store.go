package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store adapts a redis client to the narrow key-value and counter surfaces the
// cache layer and rate limiter consume.
type Store struct {
	client *redis.Client
}

// NewStore wraps an established redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Set stores value under key with the given TTL.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Del removes key. Deleting a missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// IncrWindow increments the window counter for key, arming the expiry on the
// first hit, and reports the remaining window from PTTL so rejections carry a
// deterministic retry-after.
func (s *Store) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, window, fmt.Errorf("redis expire: %w", err)
		}
		return count, window, nil
	}

	remaining, err := s.client.PTTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		// Counter without an expiry (interrupted first hit): re-arm it.
		_ = s.client.Expire(ctx, key, window).Err()
		remaining = window
	}
	return count, remaining, nil
}
