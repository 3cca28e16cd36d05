package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/go-echo/config"
	"github.com/cyberinferno/go-echo/logger"
	"github.com/cyberinferno/go-echo/sessionstore"
)

const memoryCleanupInterval = 10 * time.Minute

// openStore builds the session summary store named by cfg. An unreachable
// Redis is not fatal: summaries fall back to memory. The returned func
// releases the store's resources.
func openStore(ctx context.Context, cfg config.Store, log logger.Logger) (sessionstore.Store, func()) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, func() {}

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		store := sessionstore.NewRedisStore(client, cfg.TTL.Duration)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		err := store.Ping(pingCtx)
		if err == nil {
			log.Debug("session summaries go to redis", logger.Field{Key: "addr", Value: cfg.RedisAddr})
			return store, func() { _ = client.Close() }
		}

		log.Warn("redis unavailable, keeping session summaries in memory",
			logger.Field{Key: "addr", Value: cfg.RedisAddr},
			logger.Field{Key: "error", Value: err},
		)
		_ = client.Close()
	}

	return sessionstore.NewMemoryStore(cfg.TTL.Duration, memoryCleanupInterval), func() {}
}
