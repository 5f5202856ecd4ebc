package optimization

import (
	"fmt"
	"time"
)

// Action 是自動化決策的種類。
type Action string

const (
	ActionBudgetIncrease     Action = "budget_increase"
	ActionBudgetDecrease     Action = "budget_decrease"
	ActionCampaignPaused     Action = "campaign_paused"
	ActionBudgetCapPause     Action = "campaign_paused_budget_cap"
	ActionClientForcedPause  Action = "automation_forced_pause"
	ActionCampaignCreate     Action = "campaign_create"
	ActionAdSetCreate        Action = "adset_create"
	ActionAutomationDeploy   Action = "automation_deploy"
	ActionAutomationPause    Action = "automation_pause"
	ActionAutomationResume   Action = "automation_resume"
	ActionBudgetSettingsEdit Action = "budget_settings_update"
)

// EntityType 是被操作的對象。
type EntityType string

const (
	EntityCampaign EntityType = "campaign"
	EntityAdSet    EntityType = "ad_set"
	EntityClient   EntityType = "client"
)

// Status 為決策執行結果。
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Log 是不可變的稽核紀錄，每次自動化決策（成功或失敗）恰好一筆。
type Log struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	CampaignID   string     `json:"campaign_id,omitempty"`
	EntityType   EntityType `json:"entity_type"`
	EntityID     string     `json:"entity_id"`
	Action       Action     `json:"action"`
	Reason       string     `json:"reason"`
	OldValue     string     `json:"old_value,omitempty"`
	NewValue     string     `json:"new_value,omitempty"`
	Status       Status     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Money 以 "$%.2f" 格式化金額，稽核紀錄的新舊值皆使用此格式。
func Money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// Outcome 依遠端呼叫結果設定狀態與錯誤訊息。
func (l Log) Outcome(err error) Log {
	if err != nil {
		l.Status = StatusFailed
		l.ErrorMessage = err.Error()
		return l
	}
	l.Status = StatusCompleted
	return l
}
