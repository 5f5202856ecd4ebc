package google

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
)

const performanceQuery = `SELECT campaign.id, campaign.name, metrics.cost_micros, metrics.impressions, metrics.clicks,
metrics.conversions, metrics.conversions_value, segments.date
FROM campaign
WHERE segments.date BETWEEN '%s' AND '%s'
ORDER BY segments.date`

const budgetLookupQuery = `SELECT campaign.id, campaign.campaign_budget FROM campaign WHERE campaign.id = %s`

// channelTypes 依分桶決定 Google 活動通路。
var channelTypes = map[campaign.Type]string{
	campaign.TypeProspecting: "SHOPPING",
	campaign.TypeRetargeting: "SEARCH",
	campaign.TypeTesting:     "DISPLAY",
}

// Adapter 以 Google Ads REST API 實作 platform.Adapter。
type Adapter struct {
	client *Client
	now    func() time.Time
}

var _ platform.Adapter = (*Adapter)(nil)

// NewAdapter 建立 Google Adapter。
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client, now: time.Now}
}

func (a *Adapter) Platform() account.Platform { return account.PlatformGoogle }

func toCredentials(c platform.Credentials) Credentials {
	return Credentials{
		AccessToken:    c.AccessToken,
		RefreshToken:   c.RefreshToken,
		ClientID:       c.AppID,
		ClientSecret:   c.AppSecret,
		DeveloperToken: c.DeveloperToken,
	}
}

func micros(amount float64) string {
	return fmt.Sprintf("%d", int64(math.Round(amount*1e6)))
}

func number(n json.Number) float64 {
	if n == "" {
		return 0
	}
	v, _ := n.Float64()
	return v
}

// FetchPerformance 取得區間內（含頭尾）每個活動每天一列的成效；花費由 micros 換算，轉換數無條件捨去。
func (a *Adapter) FetchPerformance(ctx context.Context, accountID string, creds platform.Credentials, start, end time.Time) ([]platform.PerformanceRow, error) {
	query := fmt.Sprintf(performanceQuery, start.Format("2006-01-02"), end.Format("2006-01-02"))
	rows, err := a.client.SearchStream(ctx, "fetch_performance", accountID, query, toCredentials(creds))
	if err != nil {
		return nil, err
	}
	out := make([]platform.PerformanceRow, 0, len(rows))
	for _, r := range rows {
		day, err := time.Parse("2006-01-02", r.Segments.Date)
		if err != nil {
			return nil, fmt.Errorf("google ads: bad date %q: %w", r.Segments.Date, err)
		}
		out = append(out, platform.PerformanceRow{
			CampaignID:   r.Campaign.ID,
			CampaignName: r.Campaign.Name,
			Date:         day,
			Spend:        number(r.Metrics.CostMicros) / 1e6,
			Impressions:  int64(number(r.Metrics.Impressions)),
			Clicks:       int64(number(r.Metrics.Clicks)),
			Conversions:  int64(math.Floor(number(r.Metrics.Conversions))),
			Revenue:      number(r.Metrics.ConversionsValue),
		})
	}
	return out, nil
}

// CreateCampaign 先建立專屬預算，再建立暫停中的活動。
func (a *Adapter) CreateCampaign(ctx context.Context, accountID string, creds platform.Credentials, spec platform.CampaignSpec) (string, error) {
	gc := toCredentials(creds)
	budgetRN, err := a.client.Mutate(ctx, "create_campaign", accountID, "campaignBudgets", map[string]interface{}{
		"create": map[string]interface{}{
			"name":             fmt.Sprintf("%s Budget %d", spec.Name, a.now().Unix()),
			"amountMicros":     micros(spec.DailyBudget),
			"deliveryMethod":   "STANDARD",
			"explicitlyShared": false,
		},
	}, gc)
	if err != nil {
		return "", fmt.Errorf("create budget: %w", err)
	}

	channel, ok := channelTypes[spec.Type]
	if !ok {
		channel = "SEARCH"
	}
	campaignRN, err := a.client.Mutate(ctx, "create_campaign", accountID, "campaigns", map[string]interface{}{
		"create": map[string]interface{}{
			"name":                    spec.Name,
			"advertisingChannelType":  channel,
			"status":                  "PAUSED",
			"campaignBudget":          budgetRN,
			"maximizeConversionValue": map[string]interface{}{},
		},
	}, gc)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return lastSegment(campaignRN), nil
}

// CreateAdSet 建立廣告群組；Google 廣告群組沒有獨立日預算。
func (a *Adapter) CreateAdSet(ctx context.Context, accountID string, creds platform.Credentials, spec platform.AdSetSpec) (string, error) {
	rn, err := a.client.Mutate(ctx, "create_adset", accountID, "adGroups", map[string]interface{}{
		"create": map[string]interface{}{
			"name":     spec.Name,
			"campaign": fmt.Sprintf("customers/%s/campaigns/%s", customerID(accountID), spec.CampaignID),
			"status":   "PAUSED",
			"type":     "SEARCH_STANDARD",
		},
	}, toCredentials(creds))
	if err != nil {
		return "", err
	}
	return lastSegment(rn), nil
}

// UpdateBudget 查出活動綁定的預算資源後更新金額。
func (a *Adapter) UpdateBudget(ctx context.Context, ref platform.CampaignRef, creds platform.Credentials, dailyBudget float64) error {
	gc := toCredentials(creds)
	rows, err := a.client.SearchStream(ctx, "update_budget", ref.AccountID, fmt.Sprintf(budgetLookupQuery, ref.CampaignID), gc)
	if err != nil {
		return fmt.Errorf("lookup campaign budget: %w", err)
	}
	if len(rows) == 0 || rows[0].Campaign.CampaignBudget == "" {
		return fmt.Errorf("google ads: campaign %s has no budget", ref.CampaignID)
	}
	_, err = a.client.Mutate(ctx, "update_budget", ref.AccountID, "campaignBudgets", map[string]interface{}{
		"update": map[string]interface{}{
			"resourceName": rows[0].Campaign.CampaignBudget,
			"amountMicros": micros(dailyBudget),
		},
		"updateMask": "amount_micros",
	}, gc)
	return err
}

func (a *Adapter) UpdateStatus(ctx context.Context, ref platform.CampaignRef, creds platform.Credentials, status campaign.Status) error {
	var remote string
	switch status {
	case campaign.StatusActive:
		remote = "ENABLED"
	case campaign.StatusPaused:
		remote = "PAUSED"
	case campaign.StatusCompleted:
		remote = "REMOVED"
	default:
		return fmt.Errorf("google ads: unsupported campaign status %q", status)
	}
	_, err := a.client.Mutate(ctx, "update_status", ref.AccountID, "campaigns", map[string]interface{}{
		"update": map[string]interface{}{
			"resourceName": fmt.Sprintf("customers/%s/campaigns/%s", customerID(ref.AccountID), ref.CampaignID),
			"status":       remote,
		},
		"updateMask": "status",
	}, toCredentials(creds))
	return err
}

func (a *Adapter) ExchangeOAuthCode(ctx context.Context, code, redirectURI string, creds platform.Credentials) (platform.OAuthToken, error) {
	tok, err := a.client.ExchangeCode(ctx, code, redirectURI, toCredentials(creds))
	if err != nil {
		return platform.OAuthToken{}, err
	}
	out := platform.OAuthToken{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		out.ExpiresAt = &exp
	}
	return out, nil
}

// ListAccounts 回傳可存取的 customer；名稱留空由連線流程補預設值。
func (a *Adapter) ListAccounts(ctx context.Context, creds platform.Credentials) ([]platform.AccountInfo, error) {
	ids, err := a.client.AccessibleCustomers(ctx, toCredentials(creds))
	if err != nil {
		return nil, err
	}
	out := make([]platform.AccountInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, platform.AccountInfo{ID: id})
	}
	return out, nil
}
