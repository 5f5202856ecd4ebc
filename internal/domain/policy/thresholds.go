package policy

import "fmt"

// Thresholds 是自動化決策使用的固定門檻。
type Thresholds struct {
	ROAS              float64 // 擴量與策略調整的 ROAS 門檻
	CPA               float64 // 降預算的平均 CPA 門檻
	CTR               float64 // 以比例表示，0.008 = 0.8%
	Frequency         float64
	BudgetIncreasePct float64
	BudgetDecreasePct float64
	MinDailyBudget    float64
	PauseSpendGate    float64 // 零轉換暫停前需達到的花費
	AnomalyMultiplier float64
}

// Default 回傳預設門檻。
func Default() Thresholds {
	return Thresholds{
		ROAS:              3.0,
		CPA:               50.0,
		CTR:               0.008,
		Frequency:         3.0,
		BudgetIncreasePct: 0.20,
		BudgetDecreasePct: 0.15,
		MinDailyBudget:    5.0,
		PauseSpendGate:    50.0,
		AnomalyMultiplier: 2.0,
	}
}

// WithDefaults 以預設值補齊未設定（<=0）的欄位。
func (t Thresholds) WithDefaults() Thresholds {
	d := Default()
	if t.ROAS <= 0 {
		t.ROAS = d.ROAS
	}
	if t.CPA <= 0 {
		t.CPA = d.CPA
	}
	if t.CTR <= 0 {
		t.CTR = d.CTR
	}
	if t.Frequency <= 0 {
		t.Frequency = d.Frequency
	}
	if t.BudgetIncreasePct <= 0 {
		t.BudgetIncreasePct = d.BudgetIncreasePct
	}
	if t.BudgetDecreasePct <= 0 {
		t.BudgetDecreasePct = d.BudgetDecreasePct
	}
	if t.MinDailyBudget <= 0 {
		t.MinDailyBudget = d.MinDailyBudget
	}
	if t.PauseSpendGate <= 0 {
		t.PauseSpendGate = d.PauseSpendGate
	}
	if t.AnomalyMultiplier <= 0 {
		t.AnomalyMultiplier = d.AnomalyMultiplier
	}
	return t
}

// Validate 檢查百分比欄位是否落在合理範圍。
func (t Thresholds) Validate() error {
	if t.BudgetIncreasePct >= 1 {
		return fmt.Errorf("budget increase pct must be < 1, got %.2f", t.BudgetIncreasePct)
	}
	if t.BudgetDecreasePct >= 1 {
		return fmt.Errorf("budget decrease pct must be < 1, got %.2f", t.BudgetDecreasePct)
	}
	if t.CTR >= 1 {
		return fmt.Errorf("ctr threshold is a ratio and must be < 1, got %.4f", t.CTR)
	}
	return nil
}
