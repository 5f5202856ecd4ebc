package strategy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/metrics"
	"ad-autopilot/internal/domain/policy"
	strategyDomain "ad-autopilot/internal/domain/strategy"
	"ad-autopilot/internal/infra/memory"
)

var fixedNow = time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func row(day int, spend, revenue float64, freq float64) metrics.DailyMetrics {
	m := metrics.DailyMetrics{
		ClientID:    "c1",
		CampaignID:  "cmp",
		Platform:    account.PlatformMeta,
		Date:        time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC),
		Spend:       spend,
		Revenue:     revenue,
		Impressions: 1000,
		Clicks:      5,
		Conversions: 2,
		Frequency:   freq,
	}
	m.Recompute()
	return m
}

func TestAnalyzeShiftsToRetargetingOnHighROAS(t *testing.T) {
	rows := []metrics.DailyMetrics{row(20, 100, 500, 3.5), row(21, 100, 100, 3.5)}
	settings := client.DefaultBudgetSettings("c1")
	settings.MonthlyCap = 3000

	plan := Analyze(rows, &settings, policy.Default())

	if plan.AnalysisPeriodDays != AnalysisDays {
		t.Errorf("period = %d", plan.AnalysisPeriodDays)
	}
	want := strategyDomain.Allocation{Prospecting: 0.45, Retargeting: 0.40, Testing: 0.15}
	if plan.Allocation != want {
		t.Errorf("allocation = %+v, want %+v", plan.Allocation, want)
	}
	if !approx(plan.DailyBudget, 100) || plan.MonthlyBudget != 3000 {
		t.Errorf("budget = %v/%v", plan.DailyBudget, plan.MonthlyBudget)
	}
	if !approx(plan.Structure.Prospecting.DailyBudget, 45) || !approx(plan.Structure.Retargeting.DailyBudget, 40) {
		t.Errorf("structure = %+v", plan.Structure)
	}
	if plan.Overall == nil || plan.Overall.ROAS != 3 || plan.Overall.TotalSpend != 200 || plan.Overall.AvgCTR != 0.5 || plan.Overall.AvgCPA != 50 {
		t.Errorf("overall = %+v", plan.Overall)
	}

	if len(plan.CreativeFlags) != 2 {
		t.Fatalf("flags = %+v", plan.CreativeFlags)
	}
	if plan.CreativeFlags[0].Flag != strategyDomain.FlagWeakCTR || plan.CreativeFlags[0].Message != "Average CTR (0.50%) is below threshold (0.8%)" {
		t.Errorf("ctr flag = %+v", plan.CreativeFlags[0])
	}
	if plan.CreativeFlags[1].Flag != strategyDomain.FlagHighFrequency || plan.CreativeFlags[1].Message != "Average frequency (3.5) exceeds threshold (3.0)" {
		t.Errorf("frequency flag = %+v", plan.CreativeFlags[1])
	}
}

func TestAnalyzeLowROASWithoutSettings(t *testing.T) {
	rows := []metrics.DailyMetrics{row(20, 100, 100, 1), row(21, 100, 150, 1)}

	plan := Analyze(rows, nil, policy.Default())

	want := strategyDomain.Allocation{Prospecting: 0.50, Retargeting: 0.40, Testing: 0.10}
	if plan.Allocation != want {
		t.Errorf("allocation = %+v, want %+v", plan.Allocation, want)
	}
	if plan.DailyBudget != 0 || plan.Structure.Testing.DailyBudget != 0 {
		t.Errorf("no settings should give zero budgets: %+v", plan)
	}
	if len(plan.CreativeFlags) != 1 || plan.CreativeFlags[0].Flag != strategyDomain.FlagWeakCTR {
		t.Errorf("flags = %+v", plan.CreativeFlags)
	}
}

func TestAnalyzeRespectsBounds(t *testing.T) {
	th := policy.Default()

	high := client.BudgetSettings{ClientID: "c1", ProspectingPct: 0.32, RetargetingPct: 0.48, TestingPct: 0.20}
	plan := Analyze([]metrics.DailyMetrics{row(20, 100, 500, 1)}, &high, th)
	if plan.Allocation.Retargeting != 0.50 || plan.Allocation.Prospecting != 0.30 {
		t.Errorf("high ROAS bounds: %+v", plan.Allocation)
	}

	low := client.BudgetSettings{ClientID: "c1", ProspectingPct: 0.40, RetargetingPct: 0.52, TestingPct: 0.08}
	plan = Analyze([]metrics.DailyMetrics{row(20, 100, 100, 1)}, &low, th)
	if plan.Allocation.Retargeting != 0.55 || plan.Allocation.Testing != 0.05 || plan.Allocation.Prospecting != 0.40 {
		t.Errorf("low ROAS bounds: %+v", plan.Allocation)
	}
}

func newEngine(t *testing.T, store *memory.Store) *Engine {
	t.Helper()
	e := NewEngine(store, policy.Default(), 2)
	e.now = func() time.Time { return fixedNow }
	return e
}

func TestGeneratePlanWithoutHistory(t *testing.T) {
	store := memory.NewStore()
	e := newEngine(t, store)

	plan, err := e.GeneratePlan(context.Background(), "c9")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if plan.ClientID != "c9" || plan.AnalysisPeriodDays != 0 || plan.Overall != nil {
		t.Errorf("expected default plan, got %+v", plan)
	}
	if plan.Allocation != strategyDomain.DefaultAllocation() {
		t.Errorf("allocation = %+v", plan.Allocation)
	}
	if !plan.GeneratedAt.Equal(fixedNow) {
		t.Errorf("generated at = %s", plan.GeneratedAt)
	}
}

func TestGeneratePlanIgnoresRowsOutsideWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	// 今日與 30 天以前的資料都不在分析區間內。
	_ = store.UpsertDailyMetrics(ctx, row(31, 100, 900, 1))
	old := row(1, 100, 900, 1)
	old.Date = time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	_ = store.UpsertDailyMetrics(ctx, old)

	plan, err := newEngine(t, store).GeneratePlan(ctx, "c1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if plan.AnalysisPeriodDays != 0 {
		t.Errorf("rows outside 2024-05-01..2024-05-30 should be ignored: %+v", plan.Overall)
	}

	_ = store.UpsertDailyMetrics(ctx, row(2, 100, 900, 1))
	plan, err = newEngine(t, store).GeneratePlan(ctx, "c1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if plan.Overall == nil || plan.Overall.TotalSpend != 100 {
		t.Errorf("overall = %+v", plan.Overall)
	}
}

type failingRepo struct {
	repository.Repository
}

func (failingRepo) ListMetrics(context.Context, repository.MetricsFilter) ([]metrics.DailyMetrics, error) {
	return nil, errors.New("db down")
}

func TestGeneratePlanPropagatesErrors(t *testing.T) {
	e := NewEngine(failingRepo{Repository: memory.NewStore()}, policy.Default(), 1)
	if _, err := e.GeneratePlan(context.Background(), "c1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRefreshAllCachesPlans(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_ = store.SaveClient(ctx, client.Client{ID: "c1", IsActive: true, AutomationStatus: client.StatusActive})
	_ = store.SaveClient(ctx, client.Client{ID: "c2", IsActive: true, AutomationStatus: client.StatusDeploying})
	_ = store.SaveClient(ctx, client.Client{ID: "c3", IsActive: true, AutomationStatus: client.StatusPaused})
	_ = store.UpsertDailyMetrics(ctx, row(29, 100, 500, 4))
	settings := client.DefaultBudgetSettings("c1")
	settings.MonthlyCap = 900
	_ = store.SaveBudgetSettings(ctx, settings)

	cache := memory.NewPlanCache()
	e := newEngine(t, store).WithCache(cache)

	records, err := e.RefreshAll(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(records) != 2 || records[0].ClientID != "c1" || records[1].ClientID != "c2" {
		t.Fatalf("records = %+v", records)
	}
	if records[0].Default || records[0].Flags != 2 || !records[1].Default {
		t.Errorf("records = %+v", records)
	}

	plan, ok, err := e.CachedPlan(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("cached plan missing: %v", err)
	}
	if !approx(plan.DailyBudget, 30) {
		t.Errorf("daily budget = %v", plan.DailyBudget)
	}
	if _, ok, _ := e.CachedPlan(ctx, "c3"); ok {
		t.Error("paused client must not be refreshed")
	}

	got, _ := store.GetBudgetSettings(ctx, "c1")
	if got.ProspectingPct != settings.ProspectingPct || got.RetargetingPct != settings.RetargetingPct {
		t.Errorf("refresh must not modify settings: %+v", got)
	}
}

func TestCachedPlanWithoutCache(t *testing.T) {
	e := newEngine(t, memory.NewStore())
	if _, ok, err := e.CachedPlan(context.Background(), "c1"); ok || err != nil {
		t.Errorf("ok=%v err=%v", ok, err)
	}
}
