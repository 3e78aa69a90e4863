package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Alex-Men-VL/sell-pizza/internal/config"
)

const keyPrefix = "session:"

// RedisStore persists sessions as JSON values in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient connects to Redis and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps an established Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get loads the session for a user key, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, userKey string) (*Session, error) {
	raw, err := s.client.Get(ctx, keyPrefix+userKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session get %s: %w", userKey, err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session decode %s: %w", userKey, err)
	}
	return &sess, nil
}

// Set stores the session for a user key.
func (s *RedisStore) Set(ctx context.Context, userKey string, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session encode %s: %w", userKey, err)
	}
	if err := s.client.Set(ctx, keyPrefix+userKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("session set %s: %w", userKey, err)
	}
	return nil
}

// Exists reports whether the user has a stored session.
func (s *RedisStore) Exists(ctx context.Context, userKey string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+userKey).Result()
	if err != nil {
		return false, fmt.Errorf("session exists %s: %w", userKey, err)
	}
	return n > 0, nil
}
