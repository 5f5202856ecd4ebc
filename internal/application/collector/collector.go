package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/metrics"
)

// LookbackDays 為每次同步的完整天數（不含今天）。
const LookbackDays = 7

// Failure 記錄單一客戶的同步失敗。
type Failure struct {
	ClientID string
	Err      string
}

// Result 彙總一次批次同步。
type Result struct {
	Clients   int
	Succeeded int
	Failed    int
	Rows      int
	Failures  []Failure
}

// ClientResult 為單一客戶的同步結果。
type ClientResult struct {
	ClientID         string
	Accounts         int
	FailedAccounts   []string
	Rows             int
	SkippedRows      int
	CampaignsCreated int
}

// Collector 透過各平台 Adapter 拉取成效並寫入每日成效表。
type Collector struct {
	store    repository.Store
	adapters *platform.Registry
	workers  int
	now      func() time.Time
	log      zerolog.Logger
}

// NewCollector 建立資料收集器；workers 為同時處理的客戶數上限。
func NewCollector(store repository.Store, adapters *platform.Registry, workers int) *Collector {
	if workers <= 0 {
		workers = 1
	}
	return &Collector{
		store:    store,
		adapters: adapters,
		workers:  workers,
		now:      time.Now,
		log:      log.With().Str("component", "collector").Logger(),
	}
}

// Window 回傳同步區間：昨天往前共 LookbackDays 天。
func Window(now time.Time) (time.Time, time.Time) {
	end := metrics.Day(now).AddDate(0, 0, -1)
	return end.AddDate(0, 0, -(LookbackDays - 1)), end
}

// SyncAll 同步所有 active/deploying 客戶，單一客戶失敗不影響其他客戶。
func (c *Collector) SyncAll(ctx context.Context) (Result, error) {
	clients, err := c.store.ListClientsByStatus(ctx, client.StatusActive, client.StatusDeploying)
	if err != nil {
		return Result{}, fmt.Errorf("list clients: %w", err)
	}

	res := Result{Clients: len(clients)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, cl := range clients {
		cl := cl
		g.Go(func() error {
			cr, err := c.SyncClient(ctx, cl)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Error().Err(err).Str("client_id", cl.ID).Msg("client sync failed")
				res.Failed++
				res.Failures = append(res.Failures, Failure{ClientID: cl.ID, Err: err.Error()})
				return nil
			}
			res.Succeeded++
			res.Rows += cr.Rows
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].ClientID < res.Failures[j].ClientID })
	c.log.Info().Int("clients", res.Clients).Int("failed", res.Failed).Int("rows", res.Rows).Msg("sync finished")
	return res, nil
}

type accountBatch struct {
	acct account.AdAccount
	rows []platform.PerformanceRow
}

// SyncClient 拉取客戶所有已連線帳戶的成效，並在單一交易中寫入。
// 單一帳戶拉取失敗只記錄並略過。
func (c *Collector) SyncClient(ctx context.Context, cl client.Client) (ClientResult, error) {
	res := ClientResult{ClientID: cl.ID}
	accounts, err := c.store.ListAdAccounts(ctx, cl.ID, account.StatusConnected)
	if err != nil {
		return res, fmt.Errorf("list ad accounts: %w", err)
	}
	res.Accounts = len(accounts)
	if len(accounts) == 0 {
		c.log.Info().Str("client_id", cl.ID).Msg("no connected ad accounts, skipping")
		return res, nil
	}

	start, end := Window(c.now())
	var batches []accountBatch
	for _, acct := range accounts {
		rows, err := c.fetch(ctx, cl, acct, start, end)
		if err != nil {
			c.log.Warn().Err(err).
				Str("client_id", cl.ID).
				Str("account_id", acct.AccountID).
				Str("platform", string(acct.Platform)).
				Msg("fetch performance failed")
			res.FailedAccounts = append(res.FailedAccounts, acct.ID)
			continue
		}
		batches = append(batches, accountBatch{acct: acct, rows: rows})
	}

	err = c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		for _, b := range batches {
			for _, row := range b.rows {
				if row.CampaignID == "" || row.Date.IsZero() {
					res.SkippedRows++
					continue
				}
				camp, created, err := c.ensureCampaign(ctx, tx, cl.ID, b.acct, row)
				if err != nil {
					return err
				}
				if created {
					res.CampaignsCreated++
				}
				m := metrics.DailyMetrics{
					ID:          uuid.NewString(),
					ClientID:    cl.ID,
					CampaignID:  camp.ID,
					Platform:    b.acct.Platform,
					Date:        metrics.Day(row.Date),
					Spend:       row.Spend,
					Impressions: row.Impressions,
					Clicks:      row.Clicks,
					Conversions: row.Conversions,
					Revenue:     row.Revenue,
					Reach:       row.Reach,
					Frequency:   row.Frequency,
				}
				m.Recompute()
				if err := tx.UpsertDailyMetrics(ctx, m); err != nil {
					return fmt.Errorf("upsert metrics %s/%s: %w", camp.ID, m.Date.Format("2006-01-02"), err)
				}
				res.Rows++
			}
		}
		return nil
	})
	if err != nil {
		return ClientResult{ClientID: cl.ID, Accounts: res.Accounts}, err
	}

	c.log.Info().
		Str("client_id", cl.ID).
		Int("accounts", res.Accounts).
		Int("failed_accounts", len(res.FailedAccounts)).
		Int("rows", res.Rows).
		Int("campaigns_created", res.CampaignsCreated).
		Msg("client synced")
	return res, nil
}

func (c *Collector) fetch(ctx context.Context, cl client.Client, acct account.AdAccount, start, end time.Time) ([]platform.PerformanceRow, error) {
	adapter, err := c.adapters.Get(acct.Platform)
	if err != nil {
		return nil, err
	}
	return adapter.FetchPerformance(ctx, acct.AccountID, platform.CredentialsFor(acct, cl), start, end)
}

// ensureCampaign 以 (客戶, 平台活動 ID) 找出本地活動，不存在時以 active 建立。
func (c *Collector) ensureCampaign(ctx context.Context, tx repository.Repository, clientID string, acct account.AdAccount, row platform.PerformanceRow) (campaign.Campaign, bool, error) {
	existing, err := tx.FindCampaignByPlatformID(ctx, clientID, row.CampaignID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return campaign.Campaign{}, false, fmt.Errorf("find campaign %s: %w", row.CampaignID, err)
	}

	name := row.CampaignName
	if name == "" {
		name = row.CampaignID
	}
	camp := campaign.Campaign{
		ID:                 uuid.NewString(),
		ClientID:           clientID,
		AdAccountID:        acct.ID,
		Platform:           acct.Platform,
		PlatformCampaignID: row.CampaignID,
		Name:               name,
		Type:               campaign.TypeAdHoc,
		Status:             campaign.StatusActive,
	}
	if err := tx.CreateCampaign(ctx, camp); err != nil {
		return campaign.Campaign{}, false, fmt.Errorf("create campaign %s: %w", row.CampaignID, err)
	}
	return camp, true, nil
}
