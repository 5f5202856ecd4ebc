package optimizer

import (
	"context"
	"fmt"
	"math"
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
	"ad-autopilot/internal/domain/optimization"
	"ad-autopilot/internal/domain/policy"
)

// WindowDays 為每個活動評估的最近天數。
const WindowDays = 3

// Failure 記錄單一客戶的優化失敗。
type Failure struct {
	ClientID string
	Err      string
}

// Result 彙總一次批次優化。
type Result struct {
	Clients   int
	Succeeded int
	Failed    int
	Actions   int
	Failures  []Failure
}

// ClientResult 為單一客戶的優化結果。
type ClientResult struct {
	ClientID  string
	Campaigns int
	Completed int
	Failed    int
	Skipped   int
}

// Optimizer 對每個進行中的活動依序套用三條規則。
type Optimizer struct {
	store    repository.Store
	adapters *platform.Registry
	th       policy.Thresholds
	workers  int
	now      func() time.Time
	log      zerolog.Logger
}

// NewOptimizer 建立優化器。
func NewOptimizer(store repository.Store, adapters *platform.Registry, th policy.Thresholds, workers int) *Optimizer {
	if workers <= 0 {
		workers = 1
	}
	return &Optimizer{
		store:    store,
		adapters: adapters,
		th:       th.WithDefaults(),
		workers:  workers,
		now:      time.Now,
		log:      log.With().Str("component", "optimizer").Logger(),
	}
}

// OptimizeAll 優化所有 active/deploying 客戶，客戶之間互相隔離。
func (o *Optimizer) OptimizeAll(ctx context.Context) (Result, error) {
	clients, err := o.store.ListClientsByStatus(ctx, client.StatusActive, client.StatusDeploying)
	if err != nil {
		return Result{}, fmt.Errorf("list clients: %w", err)
	}

	res := Result{Clients: len(clients)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.workers)
	for _, cl := range clients {
		cl := cl
		g.Go(func() error {
			cr, err := o.OptimizeClient(ctx, cl)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.log.Error().Err(err).Str("client_id", cl.ID).Msg("client optimization failed")
				res.Failed++
				res.Failures = append(res.Failures, Failure{ClientID: cl.ID, Err: err.Error()})
				return nil
			}
			res.Succeeded++
			res.Actions += cr.Completed + cr.Failed
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].ClientID < res.Failures[j].ClientID })
	o.log.Info().Int("clients", res.Clients).Int("failed", res.Failed).Int("actions", res.Actions).Msg("optimization finished")
	return res, nil
}

// outcome 為單一活動本輪的結果：最終狀態與稽核紀錄。
type outcome struct {
	before campaign.Campaign
	after  campaign.Campaign
	logs   []optimization.Log
}

// OptimizeClient 評估客戶所有 active 活動；遠端呼叫完成後在單一交易內寫回本地狀態與稽核紀錄。
func (o *Optimizer) OptimizeClient(ctx context.Context, cl client.Client) (ClientResult, error) {
	res := ClientResult{ClientID: cl.ID}
	camps, err := o.store.ListCampaigns(ctx, cl.ID, campaign.StatusActive)
	if err != nil {
		return res, fmt.Errorf("list campaigns: %w", err)
	}
	res.Campaigns = len(camps)
	if len(camps) == 0 {
		return res, nil
	}

	accounts, err := o.store.ListAdAccounts(ctx, cl.ID, "")
	if err != nil {
		return res, fmt.Errorf("list ad accounts: %w", err)
	}
	byID := make(map[string]account.AdAccount, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	end := metrics.Day(o.now()).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(WindowDays - 1))

	var outcomes []outcome
	for _, camp := range camps {
		acct, ok := byID[camp.AdAccountID]
		if !ok || camp.PlatformCampaignID == "" {
			o.log.Warn().Str("client_id", cl.ID).Str("campaign_id", camp.ID).Msg("campaign has no ad account or platform id, skipping")
			res.Skipped++
			continue
		}
		rows, err := o.store.ListMetrics(ctx, repository.MetricsFilter{
			CampaignID: camp.ID,
			From:       start,
			To:         end,
			Desc:       true,
			Limit:      WindowDays,
		})
		if err != nil {
			return res, fmt.Errorf("load metrics for %s: %w", camp.ID, err)
		}
		if len(rows) == 0 {
			continue
		}
		out := o.evaluate(ctx, cl, acct, camp, rows)
		if len(out.logs) > 0 {
			outcomes = append(outcomes, out)
		}
	}

	if len(outcomes) == 0 {
		return res, nil
	}

	err = o.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		for _, out := range outcomes {
			if out.after.DailyBudget != out.before.DailyBudget {
				if err := tx.UpdateCampaignBudget(ctx, out.after.ID, out.after.DailyBudget); err != nil {
					return fmt.Errorf("update budget %s: %w", out.after.ID, err)
				}
			}
			if out.after.Status != out.before.Status {
				if err := tx.UpdateCampaignStatus(ctx, out.after.ID, out.after.Status); err != nil {
					return fmt.Errorf("update status %s: %w", out.after.ID, err)
				}
			}
			for _, l := range out.logs {
				if err := tx.AppendLog(ctx, l); err != nil {
					return fmt.Errorf("append log: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return ClientResult{ClientID: cl.ID, Campaigns: res.Campaigns}, err
	}

	for _, out := range outcomes {
		for _, l := range out.logs {
			if l.Status == optimization.StatusCompleted {
				res.Completed++
			} else {
				res.Failed++
			}
			o.log.Info().
				Str("client_id", cl.ID).
				Str("campaign_id", l.CampaignID).
				Str("action", string(l.Action)).
				Str("status", string(l.Status)).
				Str("old", l.OldValue).
				Str("new", l.NewValue).
				Msg(l.Reason)
		}
	}
	return res, nil
}

// evaluate 依序套用三條規則；rows 需依日期由新到舊排序。
// 每條規則都以進入該規則時的預算計算，遠端失敗時不變更本地值。
func (o *Optimizer) evaluate(ctx context.Context, cl client.Client, acct account.AdAccount, camp campaign.Campaign, rows []metrics.DailyMetrics) outcome {
	out := outcome{before: camp, after: camp}
	ref := platform.CampaignRef{AccountID: acct.AccountID, CampaignID: camp.PlatformCampaignID}
	creds := platform.CredentialsFor(acct, cl)
	adapter, adapterErr := o.adapters.Get(camp.Platform)

	remote := func(fn func(a platform.Adapter) error) error {
		if adapterErr != nil {
			return adapterErr
		}
		return fn(adapter)
	}
	newLog := func(action optimization.Action, reason, oldV, newV string) optimization.Log {
		return optimization.Log{
			ID:         uuid.NewString(),
			ClientID:   cl.ID,
			CampaignID: camp.ID,
			EntityType: optimization.EntityCampaign,
			EntityID:   camp.PlatformCampaignID,
			Action:     action,
			Reason:     reason,
			OldValue:   oldV,
			NewValue:   newV,
			CreatedAt:  o.now(),
		}
	}

	// 規則一：連續三天 ROAS 皆高於門檻則加預算
	if len(rows) >= WindowDays && allROASAbove(rows[:WindowDays], o.th.ROAS) {
		oldB := out.after.DailyBudget
		newB := oldB * (1 + o.th.BudgetIncreasePct)
		err := remote(func(a platform.Adapter) error { return a.UpdateBudget(ctx, ref, creds, newB) })
		out.logs = append(out.logs, newLog(
			optimization.ActionBudgetIncrease,
			fmt.Sprintf("ROAS > %.1f for 3 consecutive days", o.th.ROAS),
			optimization.Money(oldB), optimization.Money(newB),
		).Outcome(err))
		if err == nil {
			out.after.DailyBudget = newB
		}
	}

	totals := metrics.Sum(rows)

	// 規則二：平均 CPA 過高則降預算，不低於下限
	if avgCPA := totals.MeanCPA(); avgCPA > o.th.CPA && avgCPA != 0 {
		oldB := out.after.DailyBudget
		newB := math.Max(oldB*(1-o.th.BudgetDecreasePct), o.th.MinDailyBudget)
		// 已在下限時仍推送並記錄，每次規則觸發都有一筆紀錄
		err := remote(func(a platform.Adapter) error { return a.UpdateBudget(ctx, ref, creds, newB) })
		out.logs = append(out.logs, newLog(
			optimization.ActionBudgetDecrease,
			fmt.Sprintf("CPA ($%.2f) exceeds threshold ($%.2f)", avgCPA, o.th.CPA),
			optimization.Money(oldB), optimization.Money(newB),
		).Outcome(err))
		if err == nil {
			out.after.DailyBudget = newB
		}
	}

	// 規則三：有花費但零轉換則暫停
	if totals.Conversions == 0 && totals.Spend >= o.th.PauseSpendGate {
		err := remote(func(a platform.Adapter) error { return a.UpdateStatus(ctx, ref, creds, campaign.StatusPaused) })
		out.logs = append(out.logs, newLog(
			optimization.ActionCampaignPaused,
			fmt.Sprintf("Spent $%.2f with 0 conversions in last %d days", totals.Spend, len(rows)),
			string(campaign.StatusActive), string(campaign.StatusPaused),
		).Outcome(err))
		if err == nil {
			out.after.Status = campaign.StatusPaused
		}
	}

	return out
}

func allROASAbove(rows []metrics.DailyMetrics, threshold float64) bool {
	for _, r := range rows {
		if r.ROAS <= threshold {
			return false
		}
	}
	return true
}
