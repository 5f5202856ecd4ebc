package client

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const allocationTolerance = 0.01

// BudgetSettings 為每個客戶唯一的一組預算設定。
// CurrentMonthSpend 只是快取，權威資料是每日成效。
type BudgetSettings struct {
	ID                   string
	ClientID             string
	MonthlyCap           float64
	CurrentMonthSpend    float64
	ProspectingPct       float64
	RetargetingPct       float64
	TestingPct           float64
	DailySpendAlertPct   float64
	MonthlySpendAlertPct float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DefaultBudgetSettings 回傳新客戶的預設配置。
func DefaultBudgetSettings(clientID string) BudgetSettings {
	return BudgetSettings{
		ClientID:             clientID,
		ProspectingPct:       0.50,
		RetargetingPct:       0.35,
		TestingPct:           0.15,
		DailySpendAlertPct:   0.10,
		MonthlySpendAlertPct: 0.90,
	}
}

// ValidationError 收集多個驗證失敗原因。
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("budget settings validation failed: %v", e.Reasons)
}

// IsValidationError 檢查錯誤是否為設定驗證錯誤。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AllocationSum 回傳三個配置比例總和。
func (b BudgetSettings) AllocationSum() float64 {
	return b.ProspectingPct + b.RetargetingPct + b.TestingPct
}

// Validate 檢查配置比例總和落在 [0.99, 1.01] 以及警示門檻。
func (b BudgetSettings) Validate() error {
	var reasons []string
	if b.ClientID == "" {
		reasons = append(reasons, "client_id is required")
	}
	if b.MonthlyCap < 0 {
		reasons = append(reasons, "monthly_cap must be >= 0")
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"prospecting_pct", b.ProspectingPct},
		{"retargeting_pct", b.RetargetingPct},
		{"testing_pct", b.TestingPct},
	} {
		if p.v < 0 || p.v > 1 {
			reasons = append(reasons, fmt.Sprintf("%s must be within [0, 1]", p.name))
		}
	}
	if sum := b.AllocationSum(); math.Abs(sum-1.0) > allocationTolerance+1e-9 {
		reasons = append(reasons, fmt.Sprintf("allocation percentages must sum to 1.0 (got %.2f)", sum))
	}
	if b.MonthlySpendAlertPct <= 0 || b.MonthlySpendAlertPct > 1 {
		reasons = append(reasons, "monthly_spend_alert_pct must be within (0, 1]")
	}
	if b.DailySpendAlertPct < 0 || b.DailySpendAlertPct > 1 {
		reasons = append(reasons, "daily_spend_alert_pct must be within [0, 1]")
	}
	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

// UsagePct 回傳本月花費佔上限的比例，未設定上限時為 0。
func (b BudgetSettings) UsagePct() float64 {
	if b.MonthlyCap <= 0 {
		return 0
	}
	return b.CurrentMonthSpend / b.MonthlyCap
}
