package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"restaurant-assistant/internal/config"
)

// Client is the go-redis client used by the caches.
type Client = redis.Client

func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Connect builds a client and pings it. A failed ping is returned so the
// caller can decide to run without caches.
func Connect(ctx context.Context, cfg config.RedisConfig, lg *zap.Logger) (*redis.Client, error) {
	client := NewClient(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	lg.Info("redis_connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}
