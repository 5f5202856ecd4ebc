package creator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/application/platform/platformtest"
	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/campaign"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/domain/optimization"
	"ad-autopilot/internal/domain/strategy"
	"ad-autopilot/internal/infra/memory"
)

var cl = client.Client{ID: "c1", IsActive: true, AutomationStatus: client.StatusDeploying}

func seed(t *testing.T, store *memory.Store, accounts ...account.AdAccount) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveClient(ctx, cl))
	for _, a := range accounts {
		_, err := store.UpsertAdAccount(ctx, a)
		require.NoError(t, err)
	}
}

var (
	metaAcct   = account.AdAccount{ID: "a-meta", ClientID: "c1", Platform: account.PlatformMeta, AccountID: "act_123456789", Status: account.StatusConnected}
	googleAcct = account.AdAccount{ID: "a-google", ClientID: "c1", Platform: account.PlatformGoogle, AccountID: "1234567890", Status: account.StatusConnected}
	offAcct    = account.AdAccount{ID: "a-off", ClientID: "c1", Platform: account.PlatformMeta, AccountID: "act_off", Status: account.StatusDisconnected}
)

func planWithBudget(daily float64) strategy.Plan {
	p := strategy.DefaultPlan()
	p.ClientID = "c1"
	p.DailyBudget = daily
	p.Structure = strategy.BuildStructure(daily, p.Allocation)
	return p
}

func logsOf(t *testing.T, store *memory.Store, action optimization.Action) []optimization.Log {
	t.Helper()
	logs, err := store.ListLogs(context.Background(), repository.LogFilter{ClientID: "c1", Action: action})
	require.NoError(t, err)
	return logs
}

func TestCampaignName(t *testing.T) {
	assert.Equal(t, "AUTO_Prospecting_act_1234", CampaignName(campaign.TypeProspecting, "act_123456789"))
	assert.Equal(t, "AUTO_Testing_42", CampaignName(campaign.TypeTesting, "42"))
}

func TestExecuteStrategyCreatesPausedStructure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seed(t, store, metaAcct, googleAcct, offAcct)
	meta := platformtest.New(account.PlatformMeta)
	google := platformtest.New(account.PlatformGoogle)
	c := NewCreator(store, platform.NewRegistry(meta, google))

	res, err := c.ExecuteStrategy(ctx, cl, planWithBudget(100))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Campaigns)
	assert.Equal(t, 16, res.AdSets)
	assert.Equal(t, 0, res.Failed)

	campaigns, err := store.ListCampaigns(ctx, "c1", "")
	require.NoError(t, err)
	require.Len(t, campaigns, 6)
	for _, camp := range campaigns {
		assert.Equal(t, campaign.StatusPaused, camp.Status, camp.Name)
		if camp.Platform == account.PlatformGoogle {
			assert.Equal(t, ObjectiveGoogle, camp.Objective)
		} else {
			assert.Equal(t, ObjectiveMeta, camp.Objective)
		}
	}

	assert.Len(t, meta.CallsOf("create_campaign"), 3)
	assert.Len(t, google.CallsOf("create_campaign"), 3)
	for _, call := range meta.CallsOf("create_campaign") {
		assert.NotEqual(t, "act_off", call.AccountID)
	}

	prospecting, err := store.FindCampaignByPlatformID(ctx, "c1", meta.CallsOf("create_adset")[0].CampaignID)
	require.NoError(t, err)
	assert.Equal(t, "AUTO_Prospecting_act_1234", prospecting.Name)
	assert.InDelta(t, 50, prospecting.DailyBudget, 1e-9)

	adSets := store.ListAdSets(prospecting.ID)
	require.Len(t, adSets, 3)
	assert.Equal(t, "AUTO_Prospecting_act_1234_broad", adSets[0].Name)
	assert.InDelta(t, 20, adSets[0].DailyBudget, 1e-9)
	assert.Equal(t, campaign.StatusPaused, adSets[0].Status)
	assert.NotNil(t, adSets[0].TargetingSpec)
	assert.Contains(t, adSets[1].TargetingSpec, "flexible_spec")
	assert.Contains(t, adSets[2].TargetingSpec, "custom_audiences")

	googleCamp, err := store.FindCampaignByPlatformID(ctx, "c1", google.CallsOf("create_adset")[0].CampaignID)
	require.NoError(t, err)
	for _, as := range store.ListAdSets(googleCamp.ID) {
		assert.Nil(t, as.TargetingSpec)
	}

	assert.Len(t, logsOf(t, store, optimization.ActionCampaignCreate), 6)
	assert.Len(t, logsOf(t, store, optimization.ActionAdSetCreate), 16)
}

func TestExecuteStrategySkipsZeroBudgetBuckets(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, metaAcct)
	meta := platformtest.New(account.PlatformMeta)
	c := NewCreator(store, platform.NewRegistry(meta))

	res, err := c.ExecuteStrategy(context.Background(), cl, strategy.DefaultPlan())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Campaigns)
	assert.Empty(t, meta.Calls())
	assert.Empty(t, logsOf(t, store, ""))
}

func TestExecuteStrategyIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seed(t, store, metaAcct)
	meta := platformtest.New(account.PlatformMeta)
	meta.CreateErr = map[string]error{"AUTO_Retargeting_act_1234": errors.New("rate limited")}
	meta.AdSetErr = map[string]error{"AUTO_Prospecting_act_1234_interest": errors.New("invalid targeting")}
	c := NewCreator(store, platform.NewRegistry(meta))

	res, err := c.ExecuteStrategy(ctx, cl, planWithBudget(100))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Campaigns)
	assert.Equal(t, 4, res.AdSets)
	assert.Equal(t, 2, res.Failed)

	for _, call := range meta.CallsOf("create_adset") {
		assert.NotContains(t, call.Name, "Retargeting")
	}

	campaignLogs := logsOf(t, store, optimization.ActionCampaignCreate)
	require.Len(t, campaignLogs, 3)
	var failed []optimization.Log
	for _, l := range campaignLogs {
		if l.Status == optimization.StatusFailed {
			failed = append(failed, l)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "rate limited", failed[0].ErrorMessage)
	assert.Empty(t, failed[0].CampaignID)

	adSetLogs := logsOf(t, store, optimization.ActionAdSetCreate)
	assert.Len(t, adSetLogs, 5)
}

func TestExecuteStrategyWithoutAdapter(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, googleAcct)
	c := NewCreator(store, platform.NewRegistry(platformtest.New(account.PlatformMeta)))

	res, err := c.ExecuteStrategy(context.Background(), cl, planWithBudget(30))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Campaigns)
	assert.Equal(t, 3, res.Failed)
	for _, l := range logsOf(t, store, optimization.ActionCampaignCreate) {
		assert.Equal(t, optimization.StatusFailed, l.Status)
		assert.Contains(t, l.ErrorMessage, "unsupported platform")
	}
}
