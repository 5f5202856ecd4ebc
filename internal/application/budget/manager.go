package budget

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

	"ad-autopilot/internal"
	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/alert"
	"ad-autopilot/internal/domain/campaign"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/metrics"
	"ad-autopilot/internal/domain/optimization"
	"ad-autopilot/internal/domain/policy"
)

// Notifier 送出通知；實作需自行吞下錯誤。
type Notifier interface {
	Notify(ctx context.Context, title, message string, level alert.Level)
}

// AnomalyBaselineDays 為異常偵測的比較天數（不含昨天）。
const AnomalyBaselineDays = 7

const defaultMonthlyAlertPct = 0.90

// Failure 記錄單一客戶的檢查失敗。
type Failure struct {
	ClientID string
	Err      string
}

// Result 彙總一次批次檢查。
type Result struct {
	Clients      int
	Succeeded    int
	Failed       int
	ForcedPauses int
	Failures     []Failure
}

// CheckResult 為單一客戶的檢查結果。
type CheckResult struct {
	ClientID       string
	Skipped        bool
	MonthSpend     float64
	MonthlyCap     float64
	UsagePct       float64
	Warned         bool
	CapExceeded    bool
	PausedCount    int
	PauseFailed    int
	Anomaly        bool
	AnomalyRatio   float64
	YesterdaySpend float64
	BaselineMean   float64
}

// Manager 執行月度上限與異常花費檢查。
type Manager struct {
	store    repository.Store
	adapters *platform.Registry
	notifier Notifier
	th       policy.Thresholds
	workers  int
	now      func() time.Time
	log      zerolog.Logger
}

// NewManager 建立預算管理器；notifier 可為 nil。
func NewManager(store repository.Store, adapters *platform.Registry, notifier Notifier, th policy.Thresholds, workers int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		store:    store,
		adapters: adapters,
		notifier: notifier,
		th:       th.WithDefaults(),
		workers:  workers,
		now:      time.Now,
		log:      log.With().Str("component", "budget").Logger(),
	}
}

// CheckAll 檢查所有 active 客戶，單一客戶失敗不影響其他客戶。
func (m *Manager) CheckAll(ctx context.Context) (Result, error) {
	clients, err := m.store.ListClientsByStatus(ctx, client.StatusActive)
	if err != nil {
		return Result{}, fmt.Errorf("list clients: %w", err)
	}

	res := Result{Clients: len(clients)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(m.workers)
	for _, cl := range clients {
		cl := cl
		g.Go(func() error {
			cr, err := m.CheckClient(ctx, cl)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.log.Error().Err(err).Str("client_id", cl.ID).Msg("budget check failed")
				res.Failed++
				res.Failures = append(res.Failures, Failure{ClientID: cl.ID, Err: err.Error()})
				return nil
			}
			res.Succeeded++
			if cr.CapExceeded {
				res.ForcedPauses++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].ClientID < res.Failures[j].ClientID })
	m.log.Info().Int("clients", res.Clients).Int("failed", res.Failed).Int("forced_pauses", res.ForcedPauses).Msg("budget check finished")
	return res, nil
}

// CheckClient 依序執行：重算本月花費、接近上限警示、超過上限強制暫停、異常花費偵測。
// 未設定上限（<=0）或沒有預算設定時直接略過。
func (m *Manager) CheckClient(ctx context.Context, cl client.Client) (CheckResult, error) {
	res := CheckResult{ClientID: cl.ID}
	settings, err := m.store.GetBudgetSettings(ctx, cl.ID)
	if errors.Is(err, repository.ErrNotFound) {
		m.log.Warn().Str("client_id", cl.ID).Msg("no budget settings, skipping")
		res.Skipped = true
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("get budget settings: %w", err)
	}
	if settings.MonthlyCap <= 0 {
		res.Skipped = true
		return res, nil
	}

	today := metrics.Day(m.now())
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	spend, err := m.store.SumSpend(ctx, cl.ID, monthStart, today)
	if err != nil {
		return res, fmt.Errorf("sum month spend: %w", err)
	}
	res.MonthSpend = spend
	res.MonthlyCap = settings.MonthlyCap
	res.UsagePct = spend / settings.MonthlyCap

	alertPct := settings.MonthlySpendAlertPct
	if alertPct <= 0 {
		alertPct = defaultMonthlyAlertPct
	}
	res.Warned = res.UsagePct >= alertPct
	res.CapExceeded = spend >= settings.MonthlyCap

	var (
		toPause []campaign.Campaign
		logs    []optimization.Log
		pauseTo client.AutomationStatus
	)
	if res.CapExceeded {
		toPause, logs, err = m.pauseCampaigns(ctx, cl, spend, settings.MonthlyCap)
		if err != nil {
			return res, err
		}
		res.PausedCount = len(toPause)
		res.PauseFailed = len(logs) - len(toPause)
		if next, err := cl.AutomationStatus.Transition(client.StatusPaused); err == nil {
			pauseTo = next
			logs = append(logs, optimization.Log{
				ID:         uuid.NewString(),
				ClientID:   cl.ID,
				EntityType: optimization.EntityClient,
				EntityID:   cl.ID,
				Action:     optimization.ActionClientForcedPause,
				Reason:     fmt.Sprintf("Monthly budget cap reached ($%.2f of $%.2f)", spend, settings.MonthlyCap),
				OldValue:   string(cl.AutomationStatus),
				NewValue:   string(client.StatusPaused),
				Status:     optimization.StatusCompleted,
				CreatedAt:  m.now(),
			})
		}
	}

	err = m.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := tx.UpdateMonthSpend(ctx, cl.ID, spend); err != nil {
			return fmt.Errorf("update month spend: %w", err)
		}
		for _, c := range toPause {
			if err := tx.UpdateCampaignStatus(ctx, c.ID, campaign.StatusPaused); err != nil {
				return fmt.Errorf("pause campaign %s: %w", c.ID, err)
			}
		}
		if pauseTo != "" {
			if err := tx.UpdateClientStatus(ctx, cl.ID, pauseTo); err != nil {
				return fmt.Errorf("pause client: %w", err)
			}
		}
		for _, l := range logs {
			if err := tx.AppendLog(ctx, l); err != nil {
				return fmt.Errorf("append log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	if res.Warned {
		m.notify(ctx, "Budget Alert: Monthly Cap Approaching",
			fmt.Sprintf("Client %s has spent $%.2f of $%.2f monthly budget (%.1f%%)", clientLabel(cl), spend, settings.MonthlyCap, res.UsagePct*100),
			alert.LevelWarning)
	}
	if res.CapExceeded {
		m.log.Warn().Str("client_id", cl.ID).Int("paused", res.PausedCount).Int("pause_failed", res.PauseFailed).Msg("monthly cap reached, automation paused")
		m.notify(ctx, "Budget Cap Reached - Campaigns Paused",
			fmt.Sprintf("Monthly budget of $%.2f exceeded for %s. %d campaign(s) paused, %d failed to pause.", settings.MonthlyCap, clientLabel(cl), res.PausedCount, res.PauseFailed),
			alert.LevelCritical)
	}

	if err := m.checkAnomaly(ctx, cl, today, &res); err != nil {
		return res, err
	}
	return res, nil
}

// pauseCampaigns 逐一遠端暫停 active 活動；失敗者保持 active 並寫入 failed 紀錄。
// 讀取活動或帳號失敗時回傳錯誤，客戶維持 active，下次檢查重試。
func (m *Manager) pauseCampaigns(ctx context.Context, cl client.Client, spend, monthlyCap float64) ([]campaign.Campaign, []optimization.Log, error) {
	camps, err := m.store.ListCampaigns(ctx, cl.ID, campaign.StatusActive)
	if err != nil {
		return nil, nil, fmt.Errorf("list active campaigns: %w", err)
	}
	accounts, err := m.store.ListAdAccounts(ctx, cl.ID, "")
	if err != nil {
		return nil, nil, fmt.Errorf("list ad accounts: %w", err)
	}
	byID := make(map[string]account.AdAccount, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	reason := fmt.Sprintf("Monthly budget cap reached ($%.2f of $%.2f)", spend, monthlyCap)
	var paused []campaign.Campaign
	var logs []optimization.Log
	for _, c := range camps {
		err := m.pauseRemote(ctx, cl, byID, c)
		l := optimization.Log{
			ID:         uuid.NewString(),
			ClientID:   cl.ID,
			CampaignID: c.ID,
			EntityType: optimization.EntityCampaign,
			EntityID:   c.PlatformCampaignID,
			Action:     optimization.ActionBudgetCapPause,
			Reason:     reason,
			OldValue:   string(campaign.StatusActive),
			NewValue:   string(campaign.StatusPaused),
			CreatedAt:  m.now(),
		}.Outcome(err)
		logs = append(logs, l)
		if err != nil {
			m.log.Error().Err(err).Str("client_id", cl.ID).Str("campaign_id", c.ID).Msg("failed to pause campaign on platform")
			continue
		}
		paused = append(paused, c)
	}
	return paused, logs, nil
}

func (m *Manager) pauseRemote(ctx context.Context, cl client.Client, accounts map[string]account.AdAccount, c campaign.Campaign) error {
	// 尚未在平台建立的活動只需本地暫停
	if c.PlatformCampaignID == "" {
		return nil
	}
	acct, ok := accounts[c.AdAccountID]
	if !ok {
		return fmt.Errorf("ad account %s not found", c.AdAccountID)
	}
	adapter, err := m.adapters.Get(c.Platform)
	if err != nil {
		return err
	}
	ref := platform.CampaignRef{AccountID: acct.AccountID, CampaignID: c.PlatformCampaignID}
	return adapter.UpdateStatus(ctx, ref, platform.CredentialsFor(acct, cl), campaign.StatusPaused)
}

// checkAnomaly 比較昨天花費與前 7 天（-8 至 -2 天）有資料日的平均，只發通知不改狀態。
func (m *Manager) checkAnomaly(ctx context.Context, cl client.Client, today time.Time, res *CheckResult) error {
	yesterday := today.AddDate(0, 0, -1)
	from := yesterday.AddDate(0, 0, -AnomalyBaselineDays)
	days, err := m.store.DailySpend(ctx, cl.ID, from, yesterday)
	if err != nil {
		return fmt.Errorf("daily spend: %w", err)
	}

	var baselineSum float64
	var baselineDays int
	for _, d := range days {
		if metrics.Day(d.Date).Equal(yesterday) {
			res.YesterdaySpend = d.Spend
			continue
		}
		baselineSum += d.Spend
		baselineDays++
	}
	if baselineDays == 0 {
		return nil
	}
	res.BaselineMean = baselineSum / float64(baselineDays)
	if res.BaselineMean <= 0 || res.YesterdaySpend <= res.BaselineMean*m.th.AnomalyMultiplier {
		return nil
	}

	res.Anomaly = true
	res.AnomalyRatio = res.YesterdaySpend / res.BaselineMean
	m.notify(ctx, "Abnormal Spend Detected",
		fmt.Sprintf("Yesterday's spend for %s ($%.2f) was %.1fx the 7-day average ($%.2f)", clientLabel(cl), res.YesterdaySpend, res.AnomalyRatio, res.BaselineMean),
		alert.LevelWarning)
	return nil
}

func (m *Manager) notify(ctx context.Context, title, message string, level alert.Level) {
	if internal.IsNil(m.notifier) {
		m.log.Warn().Str("level", string(level)).Str("title", title).Msg(message)
		return
	}
	m.notifier.Notify(ctx, title, message, level)
}

func clientLabel(cl client.Client) string {
	if cl.CompanyName != "" {
		return cl.CompanyName
	}
	return cl.ID
}
