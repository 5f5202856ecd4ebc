package repository

import (
	"context"
	"errors"
	"time"

	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/metrics"
	"ad-autopilot/internal/domain/optimization"
)

// ErrNotFound 表示查無資料。
var ErrNotFound = errors.New("not found")

// MetricsFilter 查詢每日成效的條件，日期區間為含頭含尾。
type MetricsFilter struct {
	ClientID   string
	CampaignID string
	From       time.Time
	To         time.Time
	Desc       bool
	Limit      int
}

// LogFilter 查詢稽核紀錄的條件。
type LogFilter struct {
	ClientID   string
	CampaignID string
	Action     optimization.Action
	Limit      int
	Offset     int
}

// DaySpend 為單日總花費。
type DaySpend struct {
	Date  time.Time
	Spend float64
}

// Repository 是自動化流程共用的持久化操作。
type Repository interface {
	GetClient(ctx context.Context, id string) (client.Client, error)
	ListClientsByStatus(ctx context.Context, statuses ...client.AutomationStatus) ([]client.Client, error)
	SaveClient(ctx context.Context, c client.Client) error
	UpdateClientStatus(ctx context.Context, id string, status client.AutomationStatus) error

	ListAdAccounts(ctx context.Context, clientID string, status account.Status) ([]account.AdAccount, error)
	GetAdAccount(ctx context.Context, id string) (account.AdAccount, error)
	UpsertAdAccount(ctx context.Context, a account.AdAccount) (account.AdAccount, error)

	GetBudgetSettings(ctx context.Context, clientID string) (client.BudgetSettings, error)
	SaveBudgetSettings(ctx context.Context, s client.BudgetSettings) error
	UpdateMonthSpend(ctx context.Context, clientID string, spend float64) error

	FindCampaignByPlatformID(ctx context.Context, clientID, platformCampaignID string) (campaign.Campaign, error)
	ListCampaigns(ctx context.Context, clientID string, status campaign.Status) ([]campaign.Campaign, error)
	CreateCampaign(ctx context.Context, c campaign.Campaign) error
	UpdateCampaignBudget(ctx context.Context, id string, dailyBudget float64) error
	UpdateCampaignStatus(ctx context.Context, id string, status campaign.Status) error
	CreateAdSet(ctx context.Context, a campaign.AdSet) error

	UpsertDailyMetrics(ctx context.Context, m metrics.DailyMetrics) error
	ListMetrics(ctx context.Context, filter MetricsFilter) ([]metrics.DailyMetrics, error)
	SumSpend(ctx context.Context, clientID string, from, to time.Time) (float64, error)
	DailySpend(ctx context.Context, clientID string, from, to time.Time) ([]DaySpend, error)

	AppendLog(ctx context.Context, l optimization.Log) error
	ListLogs(ctx context.Context, filter LogFilter) ([]optimization.Log, error)
}

// Store 在 Repository 之上提供以客戶為單位的交易。
// fn 回傳錯誤時整批回滾，成功時一次提交。
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
	Ping(ctx context.Context) error
}
