package scheduler

import (
	"context"
	"fmt"
	"time"

	"ad-autopilot/internal/application/budget"
	"ad-autopilot/internal/application/collector"
	"ad-autopilot/internal/application/optimizer"
	"ad-autopilot/internal/application/strategy"
)

// 標準工作名稱。
const (
	JobDataSync     = "daily_data_sync"
	JobOptimization = "daily_optimization"
	JobStrategy     = "weekly_strategy"
	JobBudgetCheck  = "budget_check"
)

// Schedule 為四個標準工作的時間設定。
type Schedule struct {
	Location        *time.Location
	SyncHour        int
	OptimizeHour    int
	StrategyWeekday time.Weekday
	StrategyHour    int
	BudgetInterval  time.Duration
}

// DefaultSchedule 同步 02:00、優化 06:00、策略每週一 03:00、預算每 4 小時。
func DefaultSchedule() Schedule {
	return Schedule{
		Location:        time.UTC,
		SyncHour:        2,
		OptimizeHour:    6,
		StrategyWeekday: time.Monday,
		StrategyHour:    3,
		BudgetInterval:  4 * time.Hour,
	}
}

type syncer interface {
	SyncAll(ctx context.Context) (collector.Result, error)
}

type optimizerRunner interface {
	OptimizeAll(ctx context.Context) (optimizer.Result, error)
}

type planRefresher interface {
	RefreshAll(ctx context.Context) ([]strategy.RunRecord, error)
}

type budgetChecker interface {
	CheckAll(ctx context.Context) (budget.Result, error)
}

// Components 為排程驅動的四個元件。
type Components struct {
	Collector syncer
	Optimizer optimizerRunner
	Strategy  planRefresher
	Budget    budgetChecker
}

// StandardJobs 依設定建立四個標準工作，每個觸發器只呼叫一個元件方法。
func StandardJobs(sch Schedule, c Components) []Job {
	loc := sch.Location
	return []Job{
		{
			Name:    JobDataSync,
			Trigger: DailyAt(sch.SyncHour, 0, loc),
			Run: func(ctx context.Context) (string, error) {
				res, err := c.Collector.SyncAll(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("clients=%d failed=%d rows=%d", res.Clients, res.Failed, res.Rows), nil
			},
		},
		{
			Name:    JobOptimization,
			Trigger: DailyAt(sch.OptimizeHour, 0, loc),
			Run: func(ctx context.Context) (string, error) {
				res, err := c.Optimizer.OptimizeAll(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("clients=%d failed=%d actions=%d", res.Clients, res.Failed, res.Actions), nil
			},
		},
		{
			Name:    JobStrategy,
			Trigger: WeeklyAt(sch.StrategyWeekday, sch.StrategyHour, 0, loc),
			Run: func(ctx context.Context) (string, error) {
				records, err := c.Strategy.RefreshAll(ctx)
				if err != nil {
					return "", err
				}
				failed := 0
				for _, r := range records {
					if r.Err != "" {
						failed++
					}
				}
				return fmt.Sprintf("clients=%d failed=%d", len(records), failed), nil
			},
		},
		{
			Name:    JobBudgetCheck,
			Trigger: Every(sch.BudgetInterval),
			Run: func(ctx context.Context) (string, error) {
				res, err := c.Budget.CheckAll(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("clients=%d failed=%d forced_pauses=%d", res.Clients, res.Failed, res.ForcedPauses), nil
			},
		},
	}
}
