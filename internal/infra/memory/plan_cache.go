package memory

import (
	"context"
	"sync"

	"ad-autopilot/internal/domain/strategy"
)

// PlanCache 為未設定 Redis 時使用的策略計畫快取。
type PlanCache struct {
	mu    sync.RWMutex
	plans map[string]strategy.Plan
}

// NewPlanCache 建立空的快取。
func NewPlanCache() *PlanCache {
	return &PlanCache{plans: make(map[string]strategy.Plan)}
}

// Put 儲存客戶最新的計畫。
func (c *PlanCache) Put(_ context.Context, plan strategy.Plan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[plan.ClientID] = plan
	return nil
}

// Get 取回計畫，不存在時 ok 為 false。
func (c *PlanCache) Get(_ context.Context, clientID string) (strategy.Plan, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plans[clientID]
	return p, ok, nil
}
