package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ad-autopilot/internal/domain/strategy"
)

const defaultPlanTTL = 7 * 24 * time.Hour

// PlanCache 以 Redis 保存每個客戶最新的策略計畫，值為 JSON。
type PlanCache struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewPlanCache 建立計畫快取；ttl <= 0 時使用 7 天。
func NewPlanCache(rdb redis.Cmdable, prefix string, ttl time.Duration) *PlanCache {
	if ttl <= 0 {
		ttl = defaultPlanTTL
	}
	return &PlanCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *PlanCache) key(clientID string) string {
	if c.prefix == "" {
		return "plan:" + clientID
	}
	return c.prefix + ":plan:" + clientID
}

// Put 覆寫客戶的計畫並重設 TTL。
func (c *PlanCache) Put(ctx context.Context, plan strategy.Plan) error {
	if plan.ClientID == "" {
		return errors.New("plan without client id")
	}
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	return c.rdb.Set(ctx, c.key(plan.ClientID), raw, c.ttl).Err()
}

// Get 取回計畫；不存在時 ok 為 false 且不回傳錯誤。
func (c *PlanCache) Get(ctx context.Context, clientID string) (strategy.Plan, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return strategy.Plan{}, false, nil
	}
	if err != nil {
		return strategy.Plan{}, false, err
	}
	var plan strategy.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return strategy.Plan{}, false, fmt.Errorf("decode plan %s: %w", clientID, err)
	}
	return plan, true, nil
}
