package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/metrics"
	"ad-autopilot/internal/domain/optimization"
)

// Store 為記憶體版的 repository.Store，供開發與測試使用。
// 交易在開始時複製整份狀態，提交時在短暫的寫鎖內重播變更；執行交易內容時不持有鎖。
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

type state struct {
	clients   map[string]client.Client
	accounts  map[string]account.AdAccount
	settings  map[string]client.BudgetSettings // clientID -> settings
	campaigns map[string]campaign.Campaign
	adSets    map[string]campaign.AdSet
	metrics   map[string]metrics.DailyMetrics // DailyMetrics.Key() -> row
	logs      []optimization.Log
	idSeq     int64
}

func newState() *state {
	return &state{
		clients:   make(map[string]client.Client),
		accounts:  make(map[string]account.AdAccount),
		settings:  make(map[string]client.BudgetSettings),
		campaigns: make(map[string]campaign.Campaign),
		adSets:    make(map[string]campaign.AdSet),
		metrics:   make(map[string]metrics.DailyMetrics),
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.clients {
		out.clients[k] = v
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.settings {
		out.settings[k] = v
	}
	for k, v := range s.campaigns {
		out.campaigns[k] = v
	}
	for k, v := range s.adSets {
		out.adSets[k] = v
	}
	for k, v := range s.metrics {
		out.metrics[k] = v
	}
	out.logs = append([]optimization.Log(nil), s.logs...)
	out.idSeq = s.idSeq
	return out
}

// NewStore 建立新的記憶體 Store 實例。
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) live() *view {
	return &view{st: s.st, now: s.now}
}

// WithinTx 在狀態快照上執行 fn，成功後一次套用所有變更。
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repository) error) error {
	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	var ops []func(*state)
	tx := &view{st: snapshot, ops: &ops, now: s.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		op(s.st)
	}
	if snapshot.idSeq > s.st.idSeq {
		s.st.idSeq = snapshot.idSeq
	}
	return nil
}

// Ping 永遠成功。
func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) GetClient(ctx context.Context, id string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().GetClient(ctx, id)
}

func (s *Store) ListClientsByStatus(ctx context.Context, statuses ...client.AutomationStatus) ([]client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().ListClientsByStatus(ctx, statuses...)
}

func (s *Store) SaveClient(ctx context.Context, c client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().SaveClient(ctx, c)
}

func (s *Store) UpdateClientStatus(ctx context.Context, id string, status client.AutomationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().UpdateClientStatus(ctx, id, status)
}

func (s *Store) ListAdAccounts(ctx context.Context, clientID string, status account.Status) ([]account.AdAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().ListAdAccounts(ctx, clientID, status)
}

func (s *Store) GetAdAccount(ctx context.Context, id string) (account.AdAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().GetAdAccount(ctx, id)
}

func (s *Store) UpsertAdAccount(ctx context.Context, a account.AdAccount) (account.AdAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().UpsertAdAccount(ctx, a)
}

func (s *Store) GetBudgetSettings(ctx context.Context, clientID string) (client.BudgetSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().GetBudgetSettings(ctx, clientID)
}

func (s *Store) SaveBudgetSettings(ctx context.Context, b client.BudgetSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().SaveBudgetSettings(ctx, b)
}

func (s *Store) UpdateMonthSpend(ctx context.Context, clientID string, spend float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().UpdateMonthSpend(ctx, clientID, spend)
}

func (s *Store) FindCampaignByPlatformID(ctx context.Context, clientID, platformCampaignID string) (campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().FindCampaignByPlatformID(ctx, clientID, platformCampaignID)
}

func (s *Store) ListCampaigns(ctx context.Context, clientID string, status campaign.Status) ([]campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().ListCampaigns(ctx, clientID, status)
}

func (s *Store) CreateCampaign(ctx context.Context, c campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().CreateCampaign(ctx, c)
}

func (s *Store) UpdateCampaignBudget(ctx context.Context, id string, dailyBudget float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().UpdateCampaignBudget(ctx, id, dailyBudget)
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, id string, status campaign.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().UpdateCampaignStatus(ctx, id, status)
}

func (s *Store) CreateAdSet(ctx context.Context, a campaign.AdSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().CreateAdSet(ctx, a)
}

// ListAdSets 回傳活動底下的廣告組合，依名稱排序。
func (s *Store) ListAdSets(campaignID string) []campaign.AdSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []campaign.AdSet
	for _, a := range s.st.adSets {
		if a.CampaignID == campaignID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) UpsertDailyMetrics(ctx context.Context, m metrics.DailyMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().UpsertDailyMetrics(ctx, m)
}

func (s *Store) ListMetrics(ctx context.Context, filter repository.MetricsFilter) ([]metrics.DailyMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().ListMetrics(ctx, filter)
}

func (s *Store) SumSpend(ctx context.Context, clientID string, from, to time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().SumSpend(ctx, clientID, from, to)
}

func (s *Store) DailySpend(ctx context.Context, clientID string, from, to time.Time) ([]repository.DaySpend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().DailySpend(ctx, clientID, from, to)
}

func (s *Store) AppendLog(ctx context.Context, l optimization.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().AppendLog(ctx, l)
}

func (s *Store) ListLogs(ctx context.Context, filter repository.LogFilter) ([]optimization.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live().ListLogs(ctx, filter)
}

// view 在某一份狀態上實作 repository.Repository；ops 非 nil 時記錄變更以便提交時重播。
type view struct {
	st  *state
	ops *[]func(*state)
	now func() time.Time
}

func (v *view) apply(op func(*state)) {
	op(v.st)
	if v.ops != nil {
		*v.ops = append(*v.ops, op)
	}
}

func (v *view) nextID() string {
	v.st.idSeq++
	return fmt.Sprintf("id-%d", v.st.idSeq)
}

func (v *view) GetClient(_ context.Context, id string) (client.Client, error) {
	c, ok := v.st.clients[id]
	if !ok {
		return client.Client{}, repository.ErrNotFound
	}
	return c, nil
}

func (v *view) ListClientsByStatus(_ context.Context, statuses ...client.AutomationStatus) ([]client.Client, error) {
	want := make(map[client.AutomationStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []client.Client
	for _, c := range v.st.clients {
		if !c.IsActive {
			continue
		}
		if len(want) > 0 && !want[c.AutomationStatus] {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *view) SaveClient(_ context.Context, c client.Client) error {
	if c.ID == "" {
		c.ID = v.nextID()
	}
	now := v.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	v.apply(func(st *state) { st.clients[c.ID] = c })
	return nil
}

func (v *view) UpdateClientStatus(_ context.Context, id string, status client.AutomationStatus) error {
	if _, ok := v.st.clients[id]; !ok {
		return repository.ErrNotFound
	}
	now := v.now()
	v.apply(func(st *state) {
		if c, ok := st.clients[id]; ok {
			c.AutomationStatus = status
			c.UpdatedAt = now
			st.clients[id] = c
		}
	})
	return nil
}

func (v *view) ListAdAccounts(_ context.Context, clientID string, status account.Status) ([]account.AdAccount, error) {
	var out []account.AdAccount
	for _, a := range v.st.accounts {
		if a.ClientID != clientID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *view) GetAdAccount(_ context.Context, id string) (account.AdAccount, error) {
	a, ok := v.st.accounts[id]
	if !ok {
		return account.AdAccount{}, repository.ErrNotFound
	}
	return a, nil
}

func (v *view) UpsertAdAccount(_ context.Context, a account.AdAccount) (account.AdAccount, error) {
	now := v.now()
	for _, existing := range v.st.accounts {
		if existing.ClientID == a.ClientID && existing.Platform == a.Platform && existing.AccountID == a.AccountID {
			a.ID = existing.ID
			a.CreatedAt = existing.CreatedAt
			if a.AccountName == "" {
				a.AccountName = existing.AccountName
			}
			break
		}
	}
	if a.ID == "" {
		a.ID = v.nextID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	v.apply(func(st *state) { st.accounts[a.ID] = a })
	return a, nil
}

func (v *view) GetBudgetSettings(_ context.Context, clientID string) (client.BudgetSettings, error) {
	b, ok := v.st.settings[clientID]
	if !ok {
		return client.BudgetSettings{}, repository.ErrNotFound
	}
	return b, nil
}

func (v *view) SaveBudgetSettings(_ context.Context, b client.BudgetSettings) error {
	now := v.now()
	if existing, ok := v.st.settings[b.ClientID]; ok {
		b.ID = existing.ID
		b.CreatedAt = existing.CreatedAt
	}
	if b.ID == "" {
		b.ID = v.nextID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	v.apply(func(st *state) { st.settings[b.ClientID] = b })
	return nil
}

func (v *view) UpdateMonthSpend(_ context.Context, clientID string, spend float64) error {
	if _, ok := v.st.settings[clientID]; !ok {
		return repository.ErrNotFound
	}
	now := v.now()
	v.apply(func(st *state) {
		if b, ok := st.settings[clientID]; ok {
			b.CurrentMonthSpend = spend
			b.UpdatedAt = now
			st.settings[clientID] = b
		}
	})
	return nil
}

func (v *view) FindCampaignByPlatformID(_ context.Context, clientID, platformCampaignID string) (campaign.Campaign, error) {
	for _, c := range v.st.campaigns {
		if c.ClientID == clientID && c.PlatformCampaignID == platformCampaignID {
			return c, nil
		}
	}
	return campaign.Campaign{}, repository.ErrNotFound
}

func (v *view) ListCampaigns(_ context.Context, clientID string, status campaign.Status) ([]campaign.Campaign, error) {
	var out []campaign.Campaign
	for _, c := range v.st.campaigns {
		if c.ClientID != clientID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (v *view) CreateCampaign(_ context.Context, c campaign.Campaign) error {
	if c.ID == "" {
		c.ID = v.nextID()
	}
	if _, ok := v.st.campaigns[c.ID]; ok {
		return fmt.Errorf("campaign %s already exists", c.ID)
	}
	now := v.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	v.apply(func(st *state) { st.campaigns[c.ID] = c })
	return nil
}

func (v *view) UpdateCampaignBudget(_ context.Context, id string, dailyBudget float64) error {
	if _, ok := v.st.campaigns[id]; !ok {
		return repository.ErrNotFound
	}
	now := v.now()
	v.apply(func(st *state) {
		if c, ok := st.campaigns[id]; ok {
			c.DailyBudget = dailyBudget
			c.UpdatedAt = now
			st.campaigns[id] = c
		}
	})
	return nil
}

func (v *view) UpdateCampaignStatus(_ context.Context, id string, status campaign.Status) error {
	if _, ok := v.st.campaigns[id]; !ok {
		return repository.ErrNotFound
	}
	now := v.now()
	v.apply(func(st *state) {
		if c, ok := st.campaigns[id]; ok {
			c.Status = status
			c.UpdatedAt = now
			st.campaigns[id] = c
		}
	})
	return nil
}

func (v *view) CreateAdSet(_ context.Context, a campaign.AdSet) error {
	if a.ID == "" {
		a.ID = v.nextID()
	}
	now := v.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	v.apply(func(st *state) { st.adSets[a.ID] = a })
	return nil
}

func (v *view) UpsertDailyMetrics(_ context.Context, m metrics.DailyMetrics) error {
	m.Date = metrics.Day(m.Date)
	m.Recompute()
	key := m.Key()
	now := v.now()
	if existing, ok := v.st.metrics[key]; ok {
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
	}
	if m.ID == "" {
		m.ID = v.nextID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	v.apply(func(st *state) { st.metrics[key] = m })
	return nil
}

func inRange(d, from, to time.Time) bool {
	d = metrics.Day(d)
	if !from.IsZero() && d.Before(metrics.Day(from)) {
		return false
	}
	if !to.IsZero() && d.After(metrics.Day(to)) {
		return false
	}
	return true
}

func (v *view) ListMetrics(_ context.Context, filter repository.MetricsFilter) ([]metrics.DailyMetrics, error) {
	var out []metrics.DailyMetrics
	for _, m := range v.st.metrics {
		if filter.ClientID != "" && m.ClientID != filter.ClientID {
			continue
		}
		if filter.CampaignID != "" && m.CampaignID != filter.CampaignID {
			continue
		}
		if !inRange(m.Date, filter.From, filter.To) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].Key() < out[j].Key()
		}
		if filter.Desc {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Date.Before(out[j].Date)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (v *view) SumSpend(_ context.Context, clientID string, from, to time.Time) (float64, error) {
	var total float64
	for _, m := range v.st.metrics {
		if m.ClientID == clientID && inRange(m.Date, from, to) {
			total += m.Spend
		}
	}
	return total, nil
}

func (v *view) DailySpend(_ context.Context, clientID string, from, to time.Time) ([]repository.DaySpend, error) {
	byDay := map[time.Time]float64{}
	for _, m := range v.st.metrics {
		if m.ClientID == clientID && inRange(m.Date, from, to) {
			byDay[metrics.Day(m.Date)] += m.Spend
		}
	}
	out := make([]repository.DaySpend, 0, len(byDay))
	for d, spend := range byDay {
		out = append(out, repository.DaySpend{Date: d, Spend: spend})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (v *view) AppendLog(_ context.Context, l optimization.Log) error {
	if l.ID == "" {
		l.ID = v.nextID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = v.now()
	}
	v.apply(func(st *state) { st.logs = append(st.logs, l) })
	return nil
}

func (v *view) ListLogs(_ context.Context, filter repository.LogFilter) ([]optimization.Log, error) {
	var out []optimization.Log
	for i := len(v.st.logs) - 1; i >= 0; i-- {
		l := v.st.logs[i]
		if filter.ClientID != "" && l.ClientID != filter.ClientID {
			continue
		}
		if filter.CampaignID != "" && l.CampaignID != filter.CampaignID {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		out = append(out, l)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
