package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps summaries in Redis as JSON strings under Key(id), so that
// several server runs can report into one place.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := NewRedisStore(client, 24*time.Hour)
//
// Parameters:
//   - client: A connected Redis client; the store does not close it
//   - ttl: Expiry for each summary; 0 keeps summaries forever
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisStore) Save(ctx context.Context, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session summary: %w", err)
	}

	if err := r.client.Set(ctx, Key(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (r *RedisStore) Get(ctx context.Context, id uint32) (Summary, bool, error) {
	val, err := r.client.Get(ctx, Key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Summary{}, false, nil
	}

	if err != nil {
		return Summary{}, false, fmt.Errorf("redis get error: %w", err)
	}

	var s Summary
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return Summary{}, false, fmt.Errorf("failed to unmarshal session summary: %w", err)
	}

	return s, true, nil
}

func (r *RedisStore) Count(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}

	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("redis scan error: %w", err)
	}

	return n, nil
}

// Clear deletes every key under KeyPrefix. Other keys in the database are left alone.
func (r *RedisStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan error: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}

	return nil
}

// Ping checks that the Redis server is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping error: %w", err)
	}

	return nil
}
