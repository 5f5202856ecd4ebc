package strategy

import (
	"math"
	"time"

	"ad-autopilot/internal/domain/campaign"
)

// Allocation 為三個分桶的預算比例。
type Allocation struct {
	Prospecting float64 `json:"prospecting_pct"`
	Retargeting float64 `json:"retargeting_pct"`
	Testing     float64 `json:"testing_pct"`
}

// DefaultAllocation 為冷啟動配置 50/35/15。
func DefaultAllocation() Allocation {
	return Allocation{Prospecting: 0.50, Retargeting: 0.35, Testing: 0.15}
}

// Rounded 將比例四捨五入到小數第二位。
func (a Allocation) Rounded() Allocation {
	return Allocation{
		Prospecting: Round2(a.Prospecting),
		Retargeting: Round2(a.Retargeting),
		Testing:     Round2(a.Testing),
	}
}

// AdSetAllocation 是分桶內固定的廣告組合比例。
type AdSetAllocation struct {
	Type      campaign.TargetingType `json:"type"`
	BudgetPct float64                `json:"budget_pct"`
}

// Bucket 為一個分桶的每日預算與廣告組合。
type Bucket struct {
	Type        campaign.Type     `json:"type"`
	DailyBudget float64           `json:"daily_budget"`
	AdSets      []AdSetAllocation `json:"ad_sets"`
}

// Structure 為固定三桶的活動結構。
type Structure struct {
	Prospecting Bucket `json:"prospecting"`
	Retargeting Bucket `json:"retargeting"`
	Testing     Bucket `json:"testing"`
}

// Buckets 以固定順序回傳三個分桶。
func (s Structure) Buckets() []Bucket {
	return []Bucket{s.Prospecting, s.Retargeting, s.Testing}
}

// FlagKind 為素材警示種類。
type FlagKind string

const (
	FlagWeakCTR       FlagKind = "weak_ctr"
	FlagHighFrequency FlagKind = "high_frequency"
)

// CreativeFlag 為素材警示與建議動作。
type CreativeFlag struct {
	Flag    FlagKind `json:"flag"`
	Message string   `json:"message"`
	Action  string   `json:"action"`
}

// OverallMetrics 為分析期間的整體指標，CTR 以百分比表示。
type OverallMetrics struct {
	TotalSpend   float64 `json:"total_spend"`
	TotalRevenue float64 `json:"total_revenue"`
	ROAS         float64 `json:"roas"`
	AvgCTR       float64 `json:"avg_ctr"`
	AvgCPA       float64 `json:"avg_cpa"`
}

// Plan 是策略引擎的輸出。
type Plan struct {
	ClientID           string          `json:"client_id,omitempty"`
	AnalysisPeriodDays int             `json:"analysis_period_days"`
	Overall            *OverallMetrics `json:"overall_metrics"`
	Allocation         Allocation      `json:"budget_allocation"`
	Structure          Structure       `json:"campaign_structure"`
	CreativeFlags      []CreativeFlag  `json:"creative_flags"`
	MonthlyBudget      float64         `json:"monthly_budget"`
	DailyBudget        float64         `json:"daily_budget"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

var (
	prospectingAdSets = []AdSetAllocation{
		{Type: campaign.TargetingBroad, BudgetPct: 0.40},
		{Type: campaign.TargetingInterest, BudgetPct: 0.35},
		{Type: campaign.TargetingLookalike, BudgetPct: 0.25},
	}
	retargetingAdSets = []AdSetAllocation{
		{Type: campaign.TargetingWebsiteVisitors, BudgetPct: 0.50},
		{Type: campaign.TargetingEngagedUsers, BudgetPct: 0.30},
		{Type: campaign.TargetingCartAbandoners, BudgetPct: 0.20},
	}
	testingAdSets = []AdSetAllocation{
		{Type: campaign.TargetingCreativeTest, BudgetPct: 0.60},
		{Type: campaign.TargetingAudienceTest, BudgetPct: 0.40},
	}
)

// AdSetsFor 回傳分桶的固定廣告組合比例（每次回傳新的 slice）。
func AdSetsFor(t campaign.Type) []AdSetAllocation {
	var src []AdSetAllocation
	switch t {
	case campaign.TypeProspecting:
		src = prospectingAdSets
	case campaign.TypeRetargeting:
		src = retargetingAdSets
	case campaign.TypeTesting:
		src = testingAdSets
	}
	out := make([]AdSetAllocation, len(src))
	copy(out, src)
	return out
}

// BuildStructure 以每日預算與配置比例產生三桶結構。
func BuildStructure(dailyBudget float64, a Allocation) Structure {
	return Structure{
		Prospecting: Bucket{Type: campaign.TypeProspecting, DailyBudget: dailyBudget * a.Prospecting, AdSets: AdSetsFor(campaign.TypeProspecting)},
		Retargeting: Bucket{Type: campaign.TypeRetargeting, DailyBudget: dailyBudget * a.Retargeting, AdSets: AdSetsFor(campaign.TypeRetargeting)},
		Testing:     Bucket{Type: campaign.TypeTesting, DailyBudget: dailyBudget * a.Testing, AdSets: AdSetsFor(campaign.TypeTesting)},
	}
}

// DefaultPlan 為沒有歷史資料時的冷啟動計畫，與客戶無關且每次相同。
func DefaultPlan() Plan {
	return Plan{
		AnalysisPeriodDays: 0,
		Allocation:         DefaultAllocation(),
		Structure:          BuildStructure(0, DefaultAllocation()),
		CreativeFlags:      []CreativeFlag{},
	}
}

// Round2 四捨五入到小數第二位。
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
