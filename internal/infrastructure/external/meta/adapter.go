package meta

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
)

const defaultObjective = "OUTCOME_SALES"

var purchaseActions = map[string]bool{
	"purchase":                             true,
	"offsite_conversion.fb_pixel_purchase": true,
}

// Adapter 以 Graph API 實作 platform.Adapter。
type Adapter struct {
	client *Client
	now    func() time.Time
}

var _ platform.Adapter = (*Adapter)(nil)

// NewAdapter 建立 Meta Adapter。
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client, now: time.Now}
}

func (a *Adapter) Platform() account.Platform { return account.PlatformMeta }

// FetchPerformance 取得區間內（含頭尾）每個活動每天一列的成效。
func (a *Adapter) FetchPerformance(ctx context.Context, accountID string, creds platform.Credentials, start, end time.Time) ([]platform.PerformanceRow, error) {
	rows, err := a.client.Insights(ctx, accountID, creds.AccessToken, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]platform.PerformanceRow, 0, len(rows))
	for _, r := range rows {
		day, err := time.Parse("2006-01-02", r.DateStart)
		if err != nil {
			return nil, fmt.Errorf("meta insights: bad date %q: %w", r.DateStart, err)
		}
		out = append(out, platform.PerformanceRow{
			CampaignID:   r.CampaignID,
			CampaignName: r.CampaignName,
			Date:         day,
			Spend:        parseFloat(r.Spend),
			Impressions:  parseInt(r.Impressions),
			Clicks:       parseInt(r.Clicks),
			Conversions:  int64(purchaseValue(r.Actions)),
			Revenue:      purchaseValue(r.ActionValues),
			Reach:        parseInt(r.Reach),
			Frequency:    parseFloat(r.Frequency),
		})
	}
	return out, nil
}

// purchaseValue 取第一個購買類型 action 的值。
func purchaseValue(actions []ActionValue) float64 {
	for _, act := range actions {
		if purchaseActions[act.ActionType] {
			return parseFloat(act.Value)
		}
	}
	return 0
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int64 {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	return int64(parseFloat(s))
}

// cents 將金額轉為 Meta 使用的最小貨幣單位。
func cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (a *Adapter) CreateCampaign(ctx context.Context, accountID string, creds platform.Credentials, spec platform.CampaignSpec) (string, error) {
	objective := spec.Objective
	if objective == "" {
		objective = defaultObjective
	}
	return a.client.Create(ctx, "create_campaign", accountID, "campaigns", creds.AccessToken, map[string]interface{}{
		"name":                  spec.Name,
		"objective":             objective,
		"status":                "PAUSED",
		"special_ad_categories": []string{},
		"daily_budget":          cents(spec.DailyBudget),
	})
}

func (a *Adapter) CreateAdSet(ctx context.Context, accountID string, creds platform.Credentials, spec platform.AdSetSpec) (string, error) {
	return a.client.Create(ctx, "create_adset", accountID, "adsets", creds.AccessToken, map[string]interface{}{
		"name":              spec.Name,
		"campaign_id":       spec.CampaignID,
		"daily_budget":      cents(spec.DailyBudget),
		"targeting":         spec.Targeting,
		"optimization_goal": "OFFSITE_CONVERSIONS",
		"billing_event":     "IMPRESSIONS",
		"bid_strategy":      "LOWEST_COST_WITHOUT_CAP",
		"status":            "PAUSED",
	})
}

func (a *Adapter) UpdateBudget(ctx context.Context, ref platform.CampaignRef, creds platform.Credentials, dailyBudget float64) error {
	return a.client.Update(ctx, "update_budget", ref.CampaignID, creds.AccessToken, map[string]interface{}{
		"daily_budget": cents(dailyBudget),
	})
}

func (a *Adapter) UpdateStatus(ctx context.Context, ref platform.CampaignRef, creds platform.Credentials, status campaign.Status) error {
	var remote string
	switch status {
	case campaign.StatusActive:
		remote = "ACTIVE"
	case campaign.StatusPaused:
		remote = "PAUSED"
	case campaign.StatusCompleted:
		remote = "ARCHIVED"
	default:
		return fmt.Errorf("meta: unsupported campaign status %q", status)
	}
	return a.client.Update(ctx, "update_status", ref.CampaignID, creds.AccessToken, map[string]interface{}{
		"status": remote,
	})
}

// ExchangeOAuthCode 換得長效 token；Meta 不發 refresh token。
func (a *Adapter) ExchangeOAuthCode(ctx context.Context, code, redirectURI string, creds platform.Credentials) (platform.OAuthToken, error) {
	tok, err := a.client.ExchangeCode(ctx, code, redirectURI, creds.AppID, creds.AppSecret)
	if err != nil {
		return platform.OAuthToken{}, err
	}
	out := platform.OAuthToken{AccessToken: tok.AccessToken}
	if tok.ExpiresIn > 0 {
		exp := a.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
		out.ExpiresAt = &exp
	}
	return out, nil
}

// ListAccounts 回傳不含 act_ 前綴的帳戶 id。
func (a *Adapter) ListAccounts(ctx context.Context, creds platform.Credentials) ([]platform.AccountInfo, error) {
	accts, err := a.client.AdAccounts(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}
	out := make([]platform.AccountInfo, 0, len(accts))
	for _, acct := range accts {
		id := acct.AccountID
		if id == "" {
			id = strings.TrimPrefix(acct.ID, "act_")
		}
		out = append(out, platform.AccountInfo{ID: id, Name: acct.Name})
	}
	return out, nil
}
