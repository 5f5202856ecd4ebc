package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ad-autopilot/internal"
	"ad-autopilot/internal/application/creator"
	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/optimization"
	"ad-autopilot/internal/domain/strategy"
)

var (
	ErrNoConnectedAccounts = errors.New("please connect at least one ad account before deploying")
	ErrBudgetNotSet        = errors.New("please set a monthly budget before deploying")
	ErrNotActive           = errors.New("automation is not active")
	ErrNotPaused           = errors.New("automation is not paused")
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 200
)

// Planner 產生客戶的策略計畫。
type Planner interface {
	GeneratePlan(ctx context.Context, clientID string) (strategy.Plan, error)
}

// Executor 將計畫建立為平台上的活動。
type Executor interface {
	ExecuteStrategy(ctx context.Context, cl client.Client, plan strategy.Plan) (creator.Result, error)
}

// DeployOptions 控制部署流程。
type DeployOptions struct {
	// CreateCampaigns 為 true 時在 deploying 階段產生計畫並建立活動。
	CreateCampaigns bool
}

// DeployResult 為部署結果。
type DeployResult struct {
	ClientID          string
	Status            client.AutomationStatus
	ConnectedAccounts int
	Plan              *strategy.Plan
	Created           *creator.Result
}

// StatusView 為客戶自動化狀態摘要。
type StatusView struct {
	ClientID          string                   `json:"client_id"`
	AutomationStatus  client.AutomationStatus  `json:"automation_status"`
	MonthlyBudget     float64                  `json:"monthly_budget"`
	Country           string                   `json:"country"`
	ConnectedAccounts map[account.Platform]int `json:"connected_accounts"`
	CurrentMonthSpend float64                  `json:"current_month_spend"`
	UsagePct          float64                  `json:"usage_pct"`
}

// Service 負責客戶自動化生命週期：部署、暫停、恢復與設定更新。
type Service struct {
	store    repository.Store
	planner  Planner
	executor Executor
	now      func() time.Time
	log      zerolog.Logger
}

// NewService 建立生命週期服務；planner 與 executor 可為 nil，此時部署只切換狀態。
func NewService(store repository.Store, planner Planner, executor Executor) *Service {
	return &Service{
		store:    store,
		planner:  planner,
		executor: executor,
		now:      time.Now,
		log:      log.With().Str("component", "automation").Logger(),
	}
}

func (s *Service) activeClient(ctx context.Context, clientID string) (client.Client, error) {
	cl, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return client.Client{}, fmt.Errorf("get client %s: %w", clientID, err)
	}
	if !cl.IsActive {
		return client.Client{}, fmt.Errorf("client %s: %w", clientID, repository.ErrNotFound)
	}
	return cl, nil
}

func (s *Service) newLog(clientID string, action optimization.Action, reason string, from, to client.AutomationStatus) optimization.Log {
	return optimization.Log{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		EntityType: optimization.EntityClient,
		EntityID:   clientID,
		Action:     action,
		Reason:     reason,
		OldValue:   string(from),
		NewValue:   string(to),
		CreatedAt:  s.now(),
	}
}

// Deploy 啟動客戶的自動化：inactive/error -> deploying -> active。
// 需至少一個已連線帳戶且月預算大於 0，否則拒絕且不轉換狀態。
func (s *Service) Deploy(ctx context.Context, clientID string, opts DeployOptions) (DeployResult, error) {
	cl, err := s.activeClient(ctx, clientID)
	if err != nil {
		return DeployResult{}, err
	}
	res := DeployResult{ClientID: cl.ID, Status: cl.AutomationStatus}

	accounts, err := s.store.ListAdAccounts(ctx, cl.ID, account.StatusConnected)
	if err != nil {
		return res, fmt.Errorf("list ad accounts: %w", err)
	}
	if len(accounts) == 0 {
		return res, ErrNoConnectedAccounts
	}
	res.ConnectedAccounts = len(accounts)

	settings, err := s.store.GetBudgetSettings(ctx, cl.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		settings = client.DefaultBudgetSettings(cl.ID)
		settings.MonthlyCap = cl.MonthlyBudget
	case err != nil:
		return res, fmt.Errorf("get budget settings: %w", err)
	}
	if cl.MonthlyBudget <= 0 && settings.MonthlyCap <= 0 {
		return res, ErrBudgetNotSet
	}
	if settings.MonthlyCap <= 0 {
		settings.MonthlyCap = cl.MonthlyBudget
	}

	deploying, err := cl.AutomationStatus.Transition(client.StatusDeploying)
	if err != nil {
		return res, err
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := tx.SaveBudgetSettings(ctx, settings); err != nil {
			return fmt.Errorf("save budget settings: %w", err)
		}
		return tx.UpdateClientStatus(ctx, cl.ID, deploying)
	})
	if err != nil {
		return res, fmt.Errorf("start deployment: %w", err)
	}
	from := cl.AutomationStatus
	cl.AutomationStatus = deploying
	res.Status = deploying

	if opts.CreateCampaigns {
		if err := s.materialize(ctx, cl, settings, &res); err != nil {
			s.fail(ctx, cl, from, err)
			res.Status = client.StatusError
			return res, err
		}
	}

	active, err := deploying.Transition(client.StatusActive)
	if err != nil {
		return res, err
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := tx.UpdateClientStatus(ctx, cl.ID, active); err != nil {
			return err
		}
		l := s.newLog(cl.ID, optimization.ActionAutomationDeploy, "User initiated full automation deployment", from, active)
		return tx.AppendLog(ctx, l.Outcome(nil))
	})
	if err != nil {
		s.fail(ctx, cl, from, err)
		res.Status = client.StatusError
		return res, fmt.Errorf("finish deployment: %w", err)
	}
	res.Status = active

	s.log.Info().
		Str("client_id", cl.ID).
		Int("connected_accounts", res.ConnectedAccounts).
		Bool("campaigns_created", res.Created != nil).
		Msg("automation deployed")
	return res, nil
}

// materialize 產生計畫並建立活動。沒有歷史資料時以預設配置搭配月預算上限建立首批活動。
func (s *Service) materialize(ctx context.Context, cl client.Client, settings client.BudgetSettings, res *DeployResult) error {
	if internal.IsNil(s.planner) || internal.IsNil(s.executor) {
		return nil
	}
	plan, err := s.planner.GeneratePlan(ctx, cl.ID)
	if err != nil {
		return fmt.Errorf("generate plan: %w", err)
	}
	if plan.AnalysisPeriodDays == 0 && plan.DailyBudget == 0 {
		plan.MonthlyBudget = settings.MonthlyCap
		plan.DailyBudget = strategy.Round2(settings.MonthlyCap / 30)
		plan.Structure = strategy.BuildStructure(settings.MonthlyCap/30, plan.Allocation)
	}
	res.Plan = &plan
	created, err := s.executor.ExecuteStrategy(ctx, cl, plan)
	if err != nil {
		return fmt.Errorf("execute strategy: %w", err)
	}
	res.Created = &created
	return nil
}

// fail 將客戶轉為 error 並記錄失敗的部署紀錄。
func (s *Service) fail(ctx context.Context, cl client.Client, from client.AutomationStatus, cause error) {
	l := s.newLog(cl.ID, optimization.ActionAutomationDeploy, "Automation deployment failed", from, client.StatusError)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := tx.UpdateClientStatus(ctx, cl.ID, client.StatusError); err != nil {
			return err
		}
		return tx.AppendLog(ctx, l.Outcome(cause))
	})
	if err != nil {
		s.log.Error().Err(err).Str("client_id", cl.ID).Msg("mark client as error failed")
	}
	s.log.Error().Err(cause).Str("client_id", cl.ID).Msg("deployment failed")
}

// Pause 由使用者暫停自動化，只允許 active -> paused。
func (s *Service) Pause(ctx context.Context, clientID string) (client.AutomationStatus, error) {
	cl, err := s.activeClient(ctx, clientID)
	if err != nil {
		return "", err
	}
	if cl.AutomationStatus != client.StatusActive {
		return cl.AutomationStatus, ErrNotActive
	}
	return s.move(ctx, cl, client.StatusPaused, optimization.ActionAutomationPause, "User paused automation")
}

// Resume 恢復使用者暫停或預算上限暫停的自動化，只允許 paused -> active。
func (s *Service) Resume(ctx context.Context, clientID string) (client.AutomationStatus, error) {
	cl, err := s.activeClient(ctx, clientID)
	if err != nil {
		return "", err
	}
	if cl.AutomationStatus != client.StatusPaused {
		return cl.AutomationStatus, ErrNotPaused
	}
	return s.move(ctx, cl, client.StatusActive, optimization.ActionAutomationResume, "User resumed automation")
}

func (s *Service) move(ctx context.Context, cl client.Client, to client.AutomationStatus, action optimization.Action, reason string) (client.AutomationStatus, error) {
	next, err := cl.AutomationStatus.Transition(to)
	if err != nil {
		return cl.AutomationStatus, err
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := tx.UpdateClientStatus(ctx, cl.ID, next); err != nil {
			return err
		}
		return tx.AppendLog(ctx, s.newLog(cl.ID, action, reason, cl.AutomationStatus, next).Outcome(nil))
	})
	if err != nil {
		return cl.AutomationStatus, fmt.Errorf("update automation status: %w", err)
	}
	s.log.Info().Str("client_id", cl.ID).Str("from", string(cl.AutomationStatus)).Str("to", string(next)).Msg(reason)
	return next, nil
}

// Status 回傳客戶目前的自動化狀態與連線帳戶數。
func (s *Service) Status(ctx context.Context, clientID string) (StatusView, error) {
	cl, err := s.activeClient(ctx, clientID)
	if err != nil {
		return StatusView{}, err
	}
	accounts, err := s.store.ListAdAccounts(ctx, cl.ID, account.StatusConnected)
	if err != nil {
		return StatusView{}, fmt.Errorf("list ad accounts: %w", err)
	}
	view := StatusView{
		ClientID:          cl.ID,
		AutomationStatus:  cl.AutomationStatus,
		MonthlyBudget:     cl.MonthlyBudget,
		Country:           cl.Country,
		ConnectedAccounts: map[account.Platform]int{account.PlatformMeta: 0, account.PlatformGoogle: 0},
	}
	for _, a := range accounts {
		view.ConnectedAccounts[a.Platform]++
	}
	settings, err := s.store.GetBudgetSettings(ctx, cl.ID)
	switch {
	case err == nil:
		view.CurrentMonthSpend = settings.CurrentMonthSpend
		view.UsagePct = settings.UsagePct()
	case !errors.Is(err, repository.ErrNotFound):
		return StatusView{}, fmt.Errorf("get budget settings: %w", err)
	}
	return view, nil
}

// UpdateBudgetSettings 驗證後儲存預算設定，並同步客戶的月預算。
// 驗證失敗回傳 *client.ValidationError，不做任何修改。
func (s *Service) UpdateBudgetSettings(ctx context.Context, settings client.BudgetSettings) (client.BudgetSettings, error) {
	if err := settings.Validate(); err != nil {
		return client.BudgetSettings{}, err
	}
	cl, err := s.activeClient(ctx, settings.ClientID)
	if err != nil {
		return client.BudgetSettings{}, err
	}

	oldCap := 0.0
	existing, err := s.store.GetBudgetSettings(ctx, cl.ID)
	switch {
	case err == nil:
		oldCap = existing.MonthlyCap
		settings.CurrentMonthSpend = existing.CurrentMonthSpend
	case !errors.Is(err, repository.ErrNotFound):
		return client.BudgetSettings{}, fmt.Errorf("get budget settings: %w", err)
	}

	cl.MonthlyBudget = settings.MonthlyCap
	reason := fmt.Sprintf("Allocation set to %.0f/%.0f/%.0f",
		settings.ProspectingPct*100, settings.RetargetingPct*100, settings.TestingPct*100)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := tx.SaveBudgetSettings(ctx, settings); err != nil {
			return fmt.Errorf("save budget settings: %w", err)
		}
		if err := tx.SaveClient(ctx, cl); err != nil {
			return fmt.Errorf("save client: %w", err)
		}
		l := optimization.Log{
			ID:         uuid.NewString(),
			ClientID:   cl.ID,
			EntityType: optimization.EntityClient,
			EntityID:   cl.ID,
			Action:     optimization.ActionBudgetSettingsEdit,
			Reason:     reason,
			OldValue:   optimization.Money(oldCap),
			NewValue:   optimization.Money(settings.MonthlyCap),
			CreatedAt:  s.now(),
		}
		return tx.AppendLog(ctx, l.Outcome(nil))
	})
	if err != nil {
		return client.BudgetSettings{}, err
	}
	saved, err := s.store.GetBudgetSettings(ctx, cl.ID)
	if err != nil {
		return client.BudgetSettings{}, fmt.Errorf("reload budget settings: %w", err)
	}
	return saved, nil
}

// Logs 回傳客戶的稽核紀錄，新到舊；limit 預設 50、上限 200。
func (s *Service) Logs(ctx context.Context, clientID string, limit, offset int) ([]optimization.Log, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := s.store.ListLogs(ctx, repository.LogFilter{ClientID: clientID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return logs, nil
}
