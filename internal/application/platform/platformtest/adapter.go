// Package platformtest 提供測試用的可設定 Adapter。
package platformtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
)

// Call 記錄一次 Adapter 呼叫。
type Call struct {
	Op         string
	AccountID  string
	CampaignID string
	Budget     float64
	Status     campaign.Status
	Name       string
}

// Adapter 為可注入行為的假 Adapter；未設定的函式回傳零值。
type Adapter struct {
	P account.Platform

	Rows          map[string][]platform.PerformanceRow // accountID -> rows
	FetchErr      map[string]error                     // accountID -> error
	BudgetErr     map[string]error                     // campaignID -> error
	StatusErr     map[string]error                     // campaignID -> error
	CreateErr     map[string]error                     // campaign name -> error
	AdSetErr      map[string]error                     // ad set name -> error
	Token         platform.OAuthToken
	ExchangeErr   error
	Accounts      []platform.AccountInfo
	ListErr       error

	mu    sync.Mutex
	calls []Call
	seq   int
}

// New 建立指定平台的假 Adapter。
func New(p account.Platform) *Adapter {
	return &Adapter{P: p}
}

func (a *Adapter) record(c Call) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, c)
}

// Calls 回傳呼叫紀錄副本。
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallsOf 回傳指定操作的呼叫。
func (a *Adapter) CallsOf(op string) []Call {
	var out []Call
	for _, c := range a.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (a *Adapter) Platform() account.Platform { return a.P }

func (a *Adapter) FetchPerformance(_ context.Context, accountID string, _ platform.Credentials, _, _ time.Time) ([]platform.PerformanceRow, error) {
	a.record(Call{Op: "fetch", AccountID: accountID})
	if err := a.FetchErr[accountID]; err != nil {
		return nil, err
	}
	return a.Rows[accountID], nil
}

func (a *Adapter) CreateCampaign(_ context.Context, accountID string, _ platform.Credentials, spec platform.CampaignSpec) (string, error) {
	a.record(Call{Op: "create_campaign", AccountID: accountID, Name: spec.Name, Budget: spec.DailyBudget})
	if err := a.CreateErr[spec.Name]; err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return fmt.Sprintf("remote-cmp-%d", a.seq), nil
}

func (a *Adapter) CreateAdSet(_ context.Context, accountID string, _ platform.Credentials, spec platform.AdSetSpec) (string, error) {
	a.record(Call{Op: "create_adset", AccountID: accountID, CampaignID: spec.CampaignID, Name: spec.Name, Budget: spec.DailyBudget})
	if err := a.AdSetErr[spec.Name]; err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return fmt.Sprintf("remote-adset-%d", a.seq), nil
}

func (a *Adapter) UpdateBudget(_ context.Context, ref platform.CampaignRef, _ platform.Credentials, dailyBudget float64) error {
	a.record(Call{Op: "update_budget", AccountID: ref.AccountID, CampaignID: ref.CampaignID, Budget: dailyBudget})
	return a.BudgetErr[ref.CampaignID]
}

func (a *Adapter) UpdateStatus(_ context.Context, ref platform.CampaignRef, _ platform.Credentials, status campaign.Status) error {
	a.record(Call{Op: "update_status", AccountID: ref.AccountID, CampaignID: ref.CampaignID, Status: status})
	return a.StatusErr[ref.CampaignID]
}

func (a *Adapter) ExchangeOAuthCode(_ context.Context, code, _ string, _ platform.Credentials) (platform.OAuthToken, error) {
	a.record(Call{Op: "exchange", Name: code})
	return a.Token, a.ExchangeErr
}

func (a *Adapter) ListAccounts(_ context.Context, _ platform.Credentials) ([]platform.AccountInfo, error) {
	a.record(Call{Op: "list_accounts"})
	return a.Accounts, a.ListErr
}
