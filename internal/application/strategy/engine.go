package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ad-autopilot/internal"
	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/metrics"
	"ad-autopilot/internal/domain/policy"
	strategyDomain "ad-autopilot/internal/domain/strategy"
)

// AnalysisDays 為策略分析使用的完整天數。
const AnalysisDays = 30

const (
	highROASRow      = 4.0
	highROASShare    = 0.3
	allocationStep   = 0.05
	retargetingCapHi = 0.50
	retargetingCapLo = 0.55
	prospectingFloor = 0.30
	testingFloor     = 0.05
)

// PlanCache 保存每個客戶最近一次的計畫。
type PlanCache interface {
	Put(ctx context.Context, plan strategyDomain.Plan) error
	Get(ctx context.Context, clientID string) (strategyDomain.Plan, bool, error)
}

// RunRecord 為單一客戶的策略產生紀錄。
type RunRecord struct {
	ClientID string
	Default  bool
	Flags    int
	Err      string
}

// Engine 由近 30 天成效產生預算配置與活動結構建議。
type Engine struct {
	repo    repository.Repository
	cache   PlanCache
	th      policy.Thresholds
	workers int
	now     func() time.Time
	log     zerolog.Logger
}

// NewEngine 建立策略引擎。
func NewEngine(repo repository.Repository, th policy.Thresholds, workers int) *Engine {
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		repo:    repo,
		th:      th.WithDefaults(),
		workers: workers,
		now:     time.Now,
		log:     log.With().Str("component", "strategy").Logger(),
	}
}

// WithCache 設定計畫快取。
func (e *Engine) WithCache(c PlanCache) *Engine {
	e.cache = c
	return e
}

// GeneratePlan 產生客戶的策略計畫；沒有歷史資料時回傳預設計畫。
func (e *Engine) GeneratePlan(ctx context.Context, clientID string) (strategyDomain.Plan, error) {
	end := metrics.Day(e.now()).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(AnalysisDays - 1))
	rows, err := e.repo.ListMetrics(ctx, repository.MetricsFilter{ClientID: clientID, From: start, To: end})
	if err != nil {
		return strategyDomain.Plan{}, fmt.Errorf("load metrics: %w", err)
	}
	if len(rows) == 0 {
		plan := strategyDomain.DefaultPlan()
		plan.ClientID = clientID
		plan.GeneratedAt = e.now()
		return plan, nil
	}

	var settings *client.BudgetSettings
	s, err := e.repo.GetBudgetSettings(ctx, clientID)
	switch {
	case err == nil:
		settings = &s
	case errors.Is(err, repository.ErrNotFound):
	default:
		return strategyDomain.Plan{}, fmt.Errorf("get budget settings: %w", err)
	}

	plan := Analyze(rows, settings, e.th)
	plan.ClientID = clientID
	plan.GeneratedAt = e.now()
	return plan, nil
}

// Analyze 為純計算：依固定順序調整配置並產生素材警示與三桶結構。
func Analyze(rows []metrics.DailyMetrics, settings *client.BudgetSettings, th policy.Thresholds) strategyDomain.Plan {
	totals := metrics.Sum(rows)
	overallROAS := totals.ROAS()
	avgCTR := totals.MeanCTR()
	avgCPA := totals.MeanCPA()
	avgFreq := totals.MeanFrequency()

	alloc := strategyDomain.DefaultAllocation()
	monthly := 0.0
	if settings != nil {
		alloc = strategyDomain.Allocation{
			Prospecting: settings.ProspectingPct,
			Retargeting: settings.RetargetingPct,
			Testing:     settings.TestingPct,
		}
		monthly = settings.MonthlyCap
	}

	highROAS := 0
	for _, r := range rows {
		if r.ROAS > highROASRow {
			highROAS++
		}
	}
	if float64(highROAS) > float64(len(rows))*highROASShare {
		alloc.Retargeting = min(alloc.Retargeting+allocationStep, retargetingCapHi)
		alloc.Prospecting = max(alloc.Prospecting-allocationStep, prospectingFloor)
	}
	if overallROAS < th.ROAS {
		alloc.Testing = max(alloc.Testing-allocationStep, testingFloor)
		alloc.Retargeting = min(alloc.Retargeting+allocationStep, retargetingCapLo)
	}
	alloc = alloc.Rounded()

	flags := []strategyDomain.CreativeFlag{}
	if avgCTR < th.CTR {
		flags = append(flags, strategyDomain.CreativeFlag{
			Flag:    strategyDomain.FlagWeakCTR,
			Message: fmt.Sprintf("Average CTR (%.2f%%) is below threshold (%.1f%%)", avgCTR*100, th.CTR*100),
			Action:  "Refresh ad creatives with stronger hooks",
		})
	}
	if avgFreq > th.Frequency {
		flags = append(flags, strategyDomain.CreativeFlag{
			Flag:    strategyDomain.FlagHighFrequency,
			Message: fmt.Sprintf("Average frequency (%.1f) exceeds threshold (%.1f)", avgFreq, th.Frequency),
			Action:  "Rotate creatives and expand audiences",
		})
	}

	daily := 0.0
	if monthly > 0 {
		daily = monthly / 30
	}

	return strategyDomain.Plan{
		AnalysisPeriodDays: AnalysisDays,
		Overall: &strategyDomain.OverallMetrics{
			TotalSpend:   strategyDomain.Round2(totals.Spend),
			TotalRevenue: strategyDomain.Round2(totals.Revenue),
			ROAS:         strategyDomain.Round2(overallROAS),
			AvgCTR:       strategyDomain.Round2(avgCTR * 100),
			AvgCPA:       strategyDomain.Round2(avgCPA),
		},
		Allocation:    alloc,
		Structure:     strategyDomain.BuildStructure(daily, alloc),
		CreativeFlags: flags,
		MonthlyBudget: monthly,
		DailyBudget:   strategyDomain.Round2(daily),
	}
}

// CachedPlan 取回快取中的計畫。
func (e *Engine) CachedPlan(ctx context.Context, clientID string) (strategyDomain.Plan, bool, error) {
	if internal.IsNil(e.cache) {
		return strategyDomain.Plan{}, false, nil
	}
	return e.cache.Get(ctx, clientID)
}

// RefreshAll 為所有 active/deploying 客戶重新產生計畫並寫入快取，不修改預算設定。
func (e *Engine) RefreshAll(ctx context.Context) ([]RunRecord, error) {
	clients, err := e.repo.ListClientsByStatus(ctx, client.StatusActive, client.StatusDeploying)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	records := make([]RunRecord, 0, len(clients))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, cl := range clients {
		cl := cl
		g.Go(func() error {
			rec := e.refreshOne(ctx, cl.ID)
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(records, func(i, j int) bool { return records[i].ClientID < records[j].ClientID })
	return records, nil
}

func (e *Engine) refreshOne(ctx context.Context, clientID string) RunRecord {
	rec := RunRecord{ClientID: clientID}
	plan, err := e.GeneratePlan(ctx, clientID)
	if err != nil {
		rec.Err = err.Error()
		e.log.Error().Err(err).Str("client_id", clientID).Msg("generate plan failed")
		return rec
	}
	rec.Default = plan.AnalysisPeriodDays == 0
	rec.Flags = len(plan.CreativeFlags)

	if !internal.IsNil(e.cache) {
		if err := e.cache.Put(ctx, plan); err != nil {
			rec.Err = fmt.Sprintf("cache: %v", err)
			e.log.Warn().Err(err).Str("client_id", clientID).Msg("cache plan failed")
		}
	}
	e.log.Info().
		Str("client_id", clientID).
		Bool("default", rec.Default).
		Float64("prospecting_pct", plan.Allocation.Prospecting).
		Float64("retargeting_pct", plan.Allocation.Retargeting).
		Float64("testing_pct", plan.Allocation.Testing).
		Int("creative_flags", rec.Flags).
		Msg("strategy plan refreshed")
	return rec
}
