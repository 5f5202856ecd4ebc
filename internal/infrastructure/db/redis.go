package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ad-autopilot/internal/infrastructure/config"
)

// ConnectRedis 建立 Redis 連線；若未設定位址則回傳 nil。
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := withDefaultTimeout(ctx)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
