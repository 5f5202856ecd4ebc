package creator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/optimization"
	"ad-autopilot/internal/domain/strategy"
)

// 各平台建立活動時使用的目標。
const (
	ObjectiveMeta   = "OUTCOME_SALES"
	ObjectiveGoogle = "MAXIMIZE_CONVERSION_VALUE"
)

// Result 為一次策略落地的結果。
type Result struct {
	ClientID    string
	Campaigns   int
	AdSets      int
	Failed      int
	CampaignIDs []string
}

// Creator 將策略計畫的活動結構建立到各平台。
type Creator struct {
	store    repository.Store
	adapters *platform.Registry
	now      func() time.Time
	log      zerolog.Logger
}

// NewCreator 建立活動建立器。
func NewCreator(store repository.Store, adapters *platform.Registry) *Creator {
	return &Creator{
		store:    store,
		adapters: adapters,
		now:      time.Now,
		log:      log.With().Str("component", "creator").Logger(),
	}
}

type pending struct {
	campaigns []campaign.Campaign
	adSets    []campaign.AdSet
	logs      []optimization.Log
}

// CampaignName 回傳自動建立活動的名稱。
func CampaignName(bucket campaign.Type, accountID string) string {
	short := accountID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("AUTO_%s_%s", title(string(bucket)), short)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func objectiveFor(p account.Platform) string {
	if p == account.PlatformGoogle {
		return ObjectiveGoogle
	}
	return ObjectiveMeta
}

// ExecuteStrategy 對每個已連線帳戶、每個預算非零的分桶建立暫停中的活動與廣告組合。
// 每次建立嘗試恰好寫一筆稽核紀錄；單一分桶或廣告組合失敗不影響其餘項目。
func (c *Creator) ExecuteStrategy(ctx context.Context, cl client.Client, plan strategy.Plan) (Result, error) {
	res := Result{ClientID: cl.ID}
	accounts, err := c.store.ListAdAccounts(ctx, cl.ID, account.StatusConnected)
	if err != nil {
		return res, fmt.Errorf("list ad accounts: %w", err)
	}

	var p pending
	for _, acct := range accounts {
		c.createForAccount(ctx, cl, acct, plan.Structure, &p)
	}
	if len(p.logs) == 0 {
		c.log.Info().Str("client_id", cl.ID).Int("accounts", len(accounts)).Msg("nothing to create")
		return res, nil
	}

	err = c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		for _, camp := range p.campaigns {
			if err := tx.CreateCampaign(ctx, camp); err != nil {
				return fmt.Errorf("create campaign %s: %w", camp.Name, err)
			}
		}
		for _, as := range p.adSets {
			if err := tx.CreateAdSet(ctx, as); err != nil {
				return fmt.Errorf("create ad set %s: %w", as.Name, err)
			}
		}
		for _, l := range p.logs {
			if err := tx.AppendLog(ctx, l); err != nil {
				return fmt.Errorf("append log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{ClientID: cl.ID}, err
	}

	res.Campaigns = len(p.campaigns)
	res.AdSets = len(p.adSets)
	for _, camp := range p.campaigns {
		res.CampaignIDs = append(res.CampaignIDs, camp.ID)
	}
	for _, l := range p.logs {
		if l.Status == optimization.StatusFailed {
			res.Failed++
		}
	}
	c.log.Info().
		Str("client_id", cl.ID).
		Int("campaigns", res.Campaigns).
		Int("ad_sets", res.AdSets).
		Int("failed", res.Failed).
		Msg("strategy executed")
	return res, nil
}

func (c *Creator) createForAccount(ctx context.Context, cl client.Client, acct account.AdAccount, structure strategy.Structure, p *pending) {
	adapter, adapterErr := c.adapters.Get(acct.Platform)
	creds := platform.CredentialsFor(acct, cl)
	objective := objectiveFor(acct.Platform)

	for _, bucket := range structure.Buckets() {
		if bucket.DailyBudget <= 0 {
			continue
		}
		name := CampaignName(bucket.Type, acct.AccountID)
		entry := optimization.Log{
			ID:         uuid.NewString(),
			ClientID:   cl.ID,
			EntityType: optimization.EntityCampaign,
			Action:     optimization.ActionCampaignCreate,
			Reason:     fmt.Sprintf("Strategy-driven %s campaign on %s", bucket.Type, acct.Platform),
			NewValue:   name,
			CreatedAt:  c.now(),
		}

		remoteID, err := "", adapterErr
		if err == nil {
			remoteID, err = adapter.CreateCampaign(ctx, acct.AccountID, creds, platform.CampaignSpec{
				Name:        name,
				Type:        bucket.Type,
				Objective:   objective,
				DailyBudget: bucket.DailyBudget,
			})
		}
		if err != nil {
			c.log.Warn().Err(err).
				Str("client_id", cl.ID).
				Str("account_id", acct.AccountID).
				Str("bucket", string(bucket.Type)).
				Msg("create campaign failed")
			p.logs = append(p.logs, entry.Outcome(err))
			continue
		}

		now := c.now()
		camp := campaign.Campaign{
			ID:                 uuid.NewString(),
			ClientID:           cl.ID,
			AdAccountID:        acct.ID,
			Platform:           acct.Platform,
			PlatformCampaignID: remoteID,
			Name:               name,
			Type:               bucket.Type,
			Objective:          objective,
			Status:             campaign.StatusPaused,
			DailyBudget:        bucket.DailyBudget,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		entry.CampaignID = camp.ID
		entry.EntityID = remoteID
		p.campaigns = append(p.campaigns, camp)
		p.logs = append(p.logs, entry.Outcome(nil))

		for _, alloc := range bucket.AdSets {
			c.createAdSet(ctx, cl, acct, adapter, creds, camp, alloc, p)
		}
	}
}

func (c *Creator) createAdSet(ctx context.Context, cl client.Client, acct account.AdAccount, adapter platform.Adapter, creds platform.Credentials, camp campaign.Campaign, alloc strategy.AdSetAllocation, p *pending) {
	name := fmt.Sprintf("%s_%s", camp.Name, alloc.Type)
	budget := camp.DailyBudget * alloc.BudgetPct
	targeting := campaign.TargetingFor(acct.Platform, alloc.Type)

	remoteID, err := adapter.CreateAdSet(ctx, acct.AccountID, creds, platform.AdSetSpec{
		CampaignID:    camp.PlatformCampaignID,
		Name:          name,
		TargetingType: alloc.Type,
		DailyBudget:   budget,
		Targeting:     targeting,
	})
	entry := optimization.Log{
		ID:         uuid.NewString(),
		ClientID:   cl.ID,
		CampaignID: camp.ID,
		EntityType: optimization.EntityAdSet,
		EntityID:   remoteID,
		Action:     optimization.ActionAdSetCreate,
		Reason:     fmt.Sprintf("Strategy-driven %s ad set", alloc.Type),
		NewValue:   optimization.Money(budget),
		CreatedAt:  c.now(),
	}
	if err != nil {
		c.log.Warn().Err(err).
			Str("client_id", cl.ID).
			Str("campaign", camp.Name).
			Str("ad_set", name).
			Msg("create ad set failed")
		p.logs = append(p.logs, entry.Outcome(err))
		return
	}

	now := c.now()
	p.adSets = append(p.adSets, campaign.AdSet{
		ID:              uuid.NewString(),
		CampaignID:      camp.ID,
		PlatformAdSetID: remoteID,
		Name:            name,
		TargetingType:   alloc.Type,
		Status:          campaign.StatusPaused,
		DailyBudget:     budget,
		TargetingSpec:   targeting,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	p.logs = append(p.logs, entry.Outcome(nil))
}
