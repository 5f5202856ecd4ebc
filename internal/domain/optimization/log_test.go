package optimization

import (
	"errors"
	"testing"
)

func TestMoney(t *testing.T) {
	if got := Money(100); got != "$100.00" {
		t.Errorf("Money(100) = %q", got)
	}
	if got := Money(4.675); got != "$4.67" && got != "$4.68" {
		t.Errorf("Money(4.675) = %q", got)
	}
}

func TestOutcome(t *testing.T) {
	base := Log{Action: ActionBudgetIncrease}
	ok := base.Outcome(nil)
	if ok.Status != StatusCompleted || ok.ErrorMessage != "" {
		t.Errorf("unexpected success log: %+v", ok)
	}
	failed := base.Outcome(errors.New("rate limited"))
	if failed.Status != StatusFailed || failed.ErrorMessage != "rate limited" {
		t.Errorf("unexpected failed log: %+v", failed)
	}
	if base.Status != "" {
		t.Error("Outcome must not mutate the receiver")
	}
}
