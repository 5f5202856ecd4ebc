package strategy

import (
	"reflect"
	"testing"

	"ad-autopilot/internal/domain/campaign"
)

func TestDefaultPlanIsReproducible(t *testing.T) {
	a := DefaultPlan()
	b := DefaultPlan()
	if !reflect.DeepEqual(a, b) {
		t.Fatal("default plan must be identical across calls")
	}
	if a.Allocation != (Allocation{Prospecting: 0.5, Retargeting: 0.35, Testing: 0.15}) {
		t.Errorf("unexpected allocation %+v", a.Allocation)
	}
	for _, bkt := range a.Structure.Buckets() {
		if bkt.DailyBudget != 0 {
			t.Errorf("%s budget = %v, want 0", bkt.Type, bkt.DailyBudget)
		}
	}
	if len(a.CreativeFlags) != 0 || a.AnalysisPeriodDays != 0 {
		t.Errorf("default plan should have no flags and zero period: %+v", a)
	}

	// 修改回傳值不可影響下一次的預設計畫
	a.Structure.Prospecting.AdSets[0].BudgetPct = 0.99
	if DefaultPlan().Structure.Prospecting.AdSets[0].BudgetPct != 0.40 {
		t.Error("ad set constants leaked through shared slice")
	}
}

func TestBuildStructure(t *testing.T) {
	s := BuildStructure(100, Allocation{Prospecting: 0.5, Retargeting: 0.25, Testing: 0.25})
	if s.Prospecting.DailyBudget != 50 || s.Retargeting.DailyBudget != 25 || s.Testing.DailyBudget != 25 {
		t.Errorf("unexpected budgets: %+v", s)
	}
	want := []campaign.TargetingType{campaign.TargetingBroad, campaign.TargetingInterest, campaign.TargetingLookalike}
	for i, as := range s.Prospecting.AdSets {
		if as.Type != want[i] {
			t.Errorf("prospecting ad set %d = %s, want %s", i, as.Type, want[i])
		}
	}
	if len(s.Testing.AdSets) != 2 || s.Testing.AdSets[0].BudgetPct != 0.60 {
		t.Errorf("unexpected testing ad sets: %+v", s.Testing.AdSets)
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(0.35 + 0.05); got != 0.4 {
		t.Errorf("Round2 = %v", got)
	}
}
