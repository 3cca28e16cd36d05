package sessionstore

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis returns a client pointed at a loopback port with nothing
// listening on it.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedisStore_Unreachable(t *testing.T) {
	s := NewRedisStore(unreachableRedis(t), time.Hour)
	ctx := context.Background()

	err := s.Save(ctx, summary(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set error")

	_, found, err := s.Get(ctx, 1)
	require.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "redis get error")

	_, err = s.Count(ctx)
	assert.Error(t, err)

	assert.Error(t, s.Clear(ctx))
	assert.Error(t, s.Ping(ctx))
}

// localRedis starts an in-process Redis and returns a store backed by it.
func localRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:            m.Addr(),
		Protocol:        2,
		DisableIdentity: true,
	})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, ttl), m
}

func TestRedisStore_SaveGet(t *testing.T) {
	s, m := localRedis(t, time.Hour)
	ctx := context.Background()

	_, found, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, summary(1)))

	got, found, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, summary(1), got)
	assert.True(t, got.StartedAt.Equal(summary(1).StartedAt))

	raw, err := m.Get("echo:session:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1,
		"remote_addr": "127.0.0.1:40000",
		"messages": 2,
		"bytes_in": 9,
		"started_at": "2026-10-01T12:00:00Z",
		"duration_ms": 12.5,
		"end_reason": "quit"
	}`, raw)
}

func TestRedisStore_SaveReplaces(t *testing.T) {
	s, _ := localRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, summary(1)))
	updated := summary(1)
	updated.EndReason = EndShutdown
	require.NoError(t, s.Save(ctx, updated))

	got, _, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, EndShutdown, got.EndReason)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisStore_TTL(t *testing.T) {
	t.Run("applied to every summary", func(t *testing.T) {
		s, m := localRedis(t, time.Hour)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, summary(3)))
		assert.Equal(t, time.Hour, m.TTL(Key(3)))

		m.FastForward(time.Hour + time.Second)
		_, found, err := s.Get(ctx, 3)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("zero keeps summaries", func(t *testing.T) {
		s, m := localRedis(t, 0)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, summary(4)))
		assert.Zero(t, m.TTL(Key(4)))
		assert.True(t, m.Exists(Key(4)))
	})
}

func TestRedisStore_CountAndClear(t *testing.T) {
	s, m := localRedis(t, time.Hour)
	ctx := context.Background()

	for id := uint32(1); id <= 3; id++ {
		require.NoError(t, s.Save(ctx, summary(id)))
	}
	require.NoError(t, m.Set("other:key", "keep"))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.Clear(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, m.Exists("other:key"))

	require.NoError(t, s.Clear(ctx), "clearing an empty store is not an error")
}

func TestRedisStore_CorruptValue(t *testing.T) {
	s, m := localRedis(t, time.Hour)
	require.NoError(t, m.Set(Key(9), "not json"))

	_, found, err := s.Get(context.Background(), 9)
	require.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "failed to unmarshal session summary")
}

func TestRedisStore_Ping(t *testing.T) {
	s, _ := localRedis(t, time.Hour)
	assert.NoError(t, s.Ping(context.Background()))
}
