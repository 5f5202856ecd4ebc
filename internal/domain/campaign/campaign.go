package campaign

import (
	"time"

	"ad-autopilot/internal/domain/account"
)

// Type 是預算分桶類型，外部既有活動則為 adhoc。
type Type string

const (
	TypeProspecting Type = "prospecting"
	TypeRetargeting Type = "retargeting"
	TypeTesting     Type = "testing"
	TypeAdHoc       Type = "adhoc"
)

// Status 為活動或廣告組合狀態。
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Campaign 為受追蹤的活動；PlatformCampaignID 在實際建立於平台前為空。
type Campaign struct {
	ID                 string
	ClientID           string
	AdAccountID        string
	Platform           account.Platform
	PlatformCampaignID string
	Name               string
	Type               Type
	Objective          string
	Status             Status
	DailyBudget        float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AdSet 為活動下的受眾與預算單位（Google 對應廣告群組）。
type AdSet struct {
	ID              string
	CampaignID      string
	PlatformAdSetID string
	Name            string
	TargetingType   TargetingType
	Status          Status
	DailyBudget     float64
	TargetingSpec   map[string]interface{}
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
