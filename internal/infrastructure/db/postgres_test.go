package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"ad-autopilot/internal/infrastructure/config"
)

func TestConnect_Empty(t *testing.T) {
	ctx := context.Background()
	cfg := config.DBConfig{DSN: ""}
	db, err := Connect(ctx, cfg)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if db != nil {
		t.Error("expected nil db for empty DSN")
	}
}

func TestConnectRedis(t *testing.T) {
	ctx := context.Background()

	rdb, err := ConnectRedis(ctx, config.RedisConfig{})
	if err != nil || rdb != nil {
		t.Fatalf("expected nil client for empty addr, got %v %v", rdb, err)
	}

	mr := miniredis.RunT(t)
	rdb, err = ConnectRedis(ctx, config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()
	if err := rdb.Set(ctx, "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("value = %q", got)
	}
}

func TestConnectRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := ConnectRedis(context.Background(), config.RedisConfig{Addr: addr}); err == nil {
		t.Error("expected ping error")
	}
}
