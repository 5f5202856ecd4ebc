package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/metrics"
	"ad-autopilot/internal/domain/optimization"
	"ad-autopilot/internal/domain/strategy"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func TestStore_Clients(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_ = s.SaveClient(ctx, client.Client{ID: "c1", IsActive: true, AutomationStatus: client.StatusActive})
	_ = s.SaveClient(ctx, client.Client{ID: "c2", IsActive: true, AutomationStatus: client.StatusPaused})
	_ = s.SaveClient(ctx, client.Client{ID: "c3", IsActive: false, AutomationStatus: client.StatusActive})
	_ = s.SaveClient(ctx, client.Client{ID: "c4", IsActive: true, AutomationStatus: client.StatusDeploying})

	got, err := s.ListClientsByStatus(ctx, client.StatusActive, client.StatusDeploying)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "c1" || got[1].ID != "c4" {
		t.Fatalf("unexpected clients: %+v", got)
	}

	if err := s.UpdateClientStatus(ctx, "c1", client.StatusPaused); err != nil {
		t.Fatal(err)
	}
	c, _ := s.GetClient(ctx, "c1")
	if c.AutomationStatus != client.StatusPaused {
		t.Errorf("status = %s", c.AutomationStatus)
	}
	if _, err := s.GetClient(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UpsertAdAccount(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first, err := s.UpsertAdAccount(ctx, account.AdAccount{ClientID: "c1", Platform: account.PlatformMeta, AccountID: "act_1", AccessToken: "old", Status: account.StatusError})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.UpsertAdAccount(ctx, account.AdAccount{ClientID: "c1", Platform: account.PlatformMeta, AccountID: "act_1", AccessToken: "new", Status: account.StatusConnected})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("re-authorization must not duplicate: %s vs %s", first.ID, second.ID)
	}
	all, _ := s.ListAdAccounts(ctx, "c1", "")
	if len(all) != 1 || all[0].AccessToken != "new" || all[0].Status != account.StatusConnected {
		t.Fatalf("unexpected accounts: %+v", all)
	}
}

func TestStore_UpsertDailyMetrics(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	base := metrics.DailyMetrics{ClientID: "c1", CampaignID: "cmp", Platform: account.PlatformMeta, Date: day(3), Spend: 10, Revenue: 20, ROAS: 99}
	if err := s.UpsertDailyMetrics(ctx, base); err != nil {
		t.Fatal(err)
	}
	base.Spend, base.Revenue = 50, 250
	if err := s.UpsertDailyMetrics(ctx, base); err != nil {
		t.Fatal(err)
	}

	rows, _ := s.ListMetrics(ctx, repository.MetricsFilter{ClientID: "c1"})
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(rows))
	}
	if rows[0].Spend != 50 || rows[0].ROAS != 5 {
		t.Errorf("row not overwritten or derived fields stale: %+v", rows[0])
	}
}

func TestStore_MetricsQueries(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for d := 1; d <= 5; d++ {
		_ = s.UpsertDailyMetrics(ctx, metrics.DailyMetrics{ClientID: "c1", CampaignID: "a", Platform: account.PlatformMeta, Date: day(d), Spend: float64(d)})
		_ = s.UpsertDailyMetrics(ctx, metrics.DailyMetrics{ClientID: "c1", CampaignID: "b", Platform: account.PlatformGoogle, Date: day(d), Spend: 1})
	}

	rows, _ := s.ListMetrics(ctx, repository.MetricsFilter{CampaignID: "a", From: day(2), To: day(5), Desc: true, Limit: 3})
	if len(rows) != 3 || !rows[0].Date.Equal(day(5)) || !rows[2].Date.Equal(day(3)) {
		t.Fatalf("unexpected window: %+v", rows)
	}

	total, _ := s.SumSpend(ctx, "c1", day(1), day(2))
	if total != 5 {
		t.Errorf("sum = %v, want 5", total)
	}

	daily, _ := s.DailySpend(ctx, "c1", day(4), day(5))
	if len(daily) != 2 || daily[0].Spend != 5 || daily[1].Spend != 6 {
		t.Errorf("unexpected daily spend: %+v", daily)
	}
}

func TestStore_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		s := NewStore()
		_ = s.SaveClient(ctx, client.Client{ID: "c1"})
		err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
			if err := tx.CreateCampaign(ctx, campaign.Campaign{ID: "cmp", ClientID: "c1", PlatformCampaignID: "p1", Status: campaign.StatusActive}); err != nil {
				return err
			}
			// 交易內可讀到自己的寫入
			if _, err := tx.FindCampaignByPlatformID(ctx, "c1", "p1"); err != nil {
				return err
			}
			// 提交前外部看不到
			if _, err := s.FindCampaignByPlatformID(ctx, "c1", "p1"); !errors.Is(err, repository.ErrNotFound) {
				t.Error("uncommitted campaign visible outside tx")
			}
			return tx.UpdateCampaignBudget(ctx, "cmp", 42)
		})
		if err != nil {
			t.Fatal(err)
		}
		c, err := s.FindCampaignByPlatformID(ctx, "c1", "p1")
		if err != nil || c.DailyBudget != 42 {
			t.Fatalf("commit not applied: %+v, %v", c, err)
		}
	})

	t.Run("rollback", func(t *testing.T) {
		s := NewStore()
		boom := errors.New("boom")
		err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
			_ = tx.AppendLog(ctx, optimization.Log{ClientID: "c1", Action: optimization.ActionBudgetIncrease})
			_ = tx.UpsertDailyMetrics(ctx, metrics.DailyMetrics{ClientID: "c1", CampaignID: "a", Date: day(1)})
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		logs, _ := s.ListLogs(ctx, repository.LogFilter{ClientID: "c1"})
		rows, _ := s.ListMetrics(ctx, repository.MetricsFilter{ClientID: "c1"})
		if len(logs) != 0 || len(rows) != 0 {
			t.Errorf("rolled back writes leaked: logs=%d rows=%d", len(logs), len(rows))
		}
	})
}

func TestStore_ListLogs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, a := range []optimization.Action{optimization.ActionBudgetIncrease, optimization.ActionBudgetDecrease, optimization.ActionCampaignPaused} {
		_ = s.AppendLog(ctx, optimization.Log{ClientID: "c1", Action: a})
	}
	logs, _ := s.ListLogs(ctx, repository.LogFilter{ClientID: "c1", Limit: 2})
	if len(logs) != 2 || logs[0].Action != optimization.ActionCampaignPaused {
		t.Fatalf("expected newest first, got %+v", logs)
	}
	logs, _ = s.ListLogs(ctx, repository.LogFilter{ClientID: "c1", Offset: 2})
	if len(logs) != 1 || logs[0].Action != optimization.ActionBudgetIncrease {
		t.Fatalf("unexpected offset page: %+v", logs)
	}
}

func TestPlanCache(t *testing.T) {
	c := NewPlanCache()
	ctx := context.Background()
	if _, ok, _ := c.Get(ctx, "c1"); ok {
		t.Fatal("expected miss")
	}
	p := strategy.DefaultPlan()
	p.ClientID = "c1"
	_ = c.Put(ctx, p)
	got, ok, err := c.Get(ctx, "c1")
	if err != nil || !ok || got.ClientID != "c1" {
		t.Fatalf("unexpected get: %+v %v %v", got, ok, err)
	}
}
