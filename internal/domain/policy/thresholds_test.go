package policy

import "testing"

func TestWithDefaults(t *testing.T) {
	got := Thresholds{ROAS: 4}.WithDefaults()
	if got.ROAS != 4 {
		t.Errorf("explicit ROAS overwritten: %v", got.ROAS)
	}
	if got.CPA != 50 || got.MinDailyBudget != 5 || got.PauseSpendGate != 50 {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}
	bad := Default()
	bad.BudgetDecreasePct = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for decrease pct >= 1")
	}
}
