package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
)

const campaignColumns = `id, client_id, ad_account_id, platform, platform_campaign_id, name, campaign_type,
       objective, status, daily_budget, created_at, updated_at`

func scanCampaign(row rowScanner) (campaign.Campaign, error) {
	var c campaign.Campaign
	var accountID, platformID sql.NullString
	var platform, typ, status string
	err := row.Scan(&c.ID, &c.ClientID, &accountID, &platform, &platformID, &c.Name, &typ,
		&c.Objective, &status, &c.DailyBudget, &c.CreatedAt, &c.UpdatedAt)
	c.AdAccountID = accountID.String
	c.PlatformCampaignID = platformID.String
	c.Platform = account.Platform(platform)
	c.Type = campaign.Type(typ)
	c.Status = campaign.Status(status)
	return c, err
}

// FindCampaignByPlatformID 以平台活動 id 查詢受追蹤活動。
func (r *Repo) FindCampaignByPlatformID(ctx context.Context, clientID, platformCampaignID string) (campaign.Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE client_id = $1 AND platform_campaign_id = $2`
	c, err := scanCampaign(r.q.QueryRowContext(ctx, q, clientID, platformCampaignID))
	if err != nil {
		return campaign.Campaign{}, notFound(err)
	}
	return c, nil
}

// ListCampaigns 依建立時間列出客戶活動，status 為空時不過濾。
func (r *Repo) ListCampaigns(ctx context.Context, clientID string, status campaign.Status) ([]campaign.Campaign, error) {
	conds := []string{"client_id = $1"}
	args := []interface{}{clientID}
	if status != "" {
		args = append(args, string(status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at, id`

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCampaign 新增活動。
func (r *Repo) CreateCampaign(ctx context.Context, c campaign.Campaign) error {
	const q = `
INSERT INTO campaigns (id, client_id, ad_account_id, platform, platform_campaign_id, name, campaign_type, objective, status, daily_budget)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := r.q.ExecContext(ctx, q,
		newID(c.ID), c.ClientID, nullString(c.AdAccountID), string(c.Platform), nullString(c.PlatformCampaignID),
		c.Name, string(c.Type), c.Objective, string(c.Status), c.DailyBudget,
	)
	return err
}

// UpdateCampaignBudget 更新活動日預算。
func (r *Repo) UpdateCampaignBudget(ctx context.Context, id string, dailyBudget float64) error {
	const q = `UPDATE campaigns SET daily_budget = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.q.ExecContext(ctx, q, id, dailyBudget)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// UpdateCampaignStatus 更新活動狀態。
func (r *Repo) UpdateCampaignStatus(ctx context.Context, id string, status campaign.Status) error {
	const q = `UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.q.ExecContext(ctx, q, id, string(status))
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// CreateAdSet 新增廣告組合，targeting 以 JSONB 保存。
func (r *Repo) CreateAdSet(ctx context.Context, a campaign.AdSet) error {
	const q = `
INSERT INTO ad_sets (id, campaign_id, platform_adset_id, name, targeting_type, status, daily_budget, targeting_spec)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	var spec sql.NullString
	if a.TargetingSpec != nil {
		b, err := json.Marshal(a.TargetingSpec)
		if err != nil {
			return fmt.Errorf("marshal targeting: %w", err)
		}
		spec = sql.NullString{String: string(b), Valid: true}
	}
	_, err := r.q.ExecContext(ctx, q,
		newID(a.ID), a.CampaignID, nullString(a.PlatformAdSetID), a.Name,
		string(a.TargetingType), string(a.Status), a.DailyBudget, spec,
	)
	return err
}
