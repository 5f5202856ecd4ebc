package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
	"ad-autopilot/internal/domain/client"
)

// ErrUnsupportedPlatform 表示沒有註冊對應平台的 Adapter。
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// PerformanceRow 為正規化後的每日活動成效，一個 (活動, 日期) 一列。
type PerformanceRow struct {
	CampaignID   string
	CampaignName string
	Date         time.Time
	Spend        float64
	Impressions  int64
	Clicks       int64
	Conversions  int64
	Revenue      float64
	Reach        int64
	Frequency    float64
}

// Credentials 為單次呼叫使用的授權資訊；App 欄位為客戶自帶設定，空值代表使用系統預設。
type Credentials struct {
	AccessToken    string
	RefreshToken   string
	AppID          string
	AppSecret      string
	DeveloperToken string
}

// CredentialsFor 組合帳戶 token 與客戶自帶的平台設定。
func CredentialsFor(a account.AdAccount, c client.Client) Credentials {
	creds := Credentials{AccessToken: a.AccessToken, RefreshToken: a.RefreshToken}
	switch a.Platform {
	case account.PlatformMeta:
		creds.AppID = c.Credentials.MetaAppID
		creds.AppSecret = c.Credentials.MetaAppSecret
	case account.PlatformGoogle:
		creds.AppID = c.Credentials.GoogleClientID
		creds.AppSecret = c.Credentials.GoogleClientSecret
		creds.DeveloperToken = c.Credentials.GoogleDeveloperToken
	}
	return creds
}

// CampaignRef 指向平台上的活動。
type CampaignRef struct {
	AccountID  string
	CampaignID string
}

// CampaignSpec 描述要建立的活動；初始狀態一律為暫停。
type CampaignSpec struct {
	Name        string
	Type        campaign.Type
	Objective   string
	DailyBudget float64
}

// AdSetSpec 描述要建立的廣告組合。
type AdSetSpec struct {
	CampaignID    string
	Name          string
	TargetingType campaign.TargetingType
	DailyBudget   float64
	Targeting     map[string]interface{}
}

// OAuthToken 為授權碼交換結果。
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// AccountInfo 為可存取的平台帳戶。
type AccountInfo struct {
	ID   string
	Name string
}

// Adapter 是單一廣告平台的協定轉接層。所有方法失敗時回傳 error，由呼叫端轉為稽核紀錄。
type Adapter interface {
	Platform() account.Platform
	FetchPerformance(ctx context.Context, accountID string, creds Credentials, start, end time.Time) ([]PerformanceRow, error)
	CreateCampaign(ctx context.Context, accountID string, creds Credentials, spec CampaignSpec) (string, error)
	CreateAdSet(ctx context.Context, accountID string, creds Credentials, spec AdSetSpec) (string, error)
	UpdateBudget(ctx context.Context, ref CampaignRef, creds Credentials, dailyBudget float64) error
	UpdateStatus(ctx context.Context, ref CampaignRef, creds Credentials, status campaign.Status) error
	ExchangeOAuthCode(ctx context.Context, code, redirectURI string, creds Credentials) (OAuthToken, error)
	ListAccounts(ctx context.Context, creds Credentials) ([]AccountInfo, error)
}

// Registry 依平台查找 Adapter。
type Registry struct {
	adapters map[account.Platform]Adapter
}

// NewRegistry 建立 Registry。
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[account.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

// Get 回傳平台對應的 Adapter。
func (r *Registry) Get(p account.Platform) (Adapter, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	return a, nil
}
