package metrics

import (
	"time"

	"ad-autopilot/internal/domain/account"
)

// DailyMetrics 為 (ClientID, CampaignID, Platform, Date) 唯一的每日成效。
// 衍生欄位一律在寫入時由原始計數重新計算。
type DailyMetrics struct {
	ID          string
	ClientID    string
	CampaignID  string
	Platform    account.Platform
	Date        time.Time
	Spend       float64
	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
	Reach       int64
	Frequency   float64

	CTR  float64
	CPC  float64
	CPM  float64
	ROAS float64
	CPA  float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SafeDivide 在分母為 0 時回傳 0。
func SafeDivide(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Recompute 由原始計數重算 ctr/cpc/cpm/roas/cpa。
func (m *DailyMetrics) Recompute() {
	m.CTR = SafeDivide(float64(m.Clicks), float64(m.Impressions))
	m.CPC = SafeDivide(m.Spend, float64(m.Clicks))
	m.CPM = SafeDivide(m.Spend*1000, float64(m.Impressions))
	m.ROAS = SafeDivide(m.Revenue, m.Spend)
	m.CPA = SafeDivide(m.Spend, float64(m.Conversions))
}

// Key 回傳唯一鍵，供記憶體實作使用。
func (m DailyMetrics) Key() string {
	return m.ClientID + "|" + m.CampaignID + "|" + string(m.Platform) + "|" + m.Date.Format("2006-01-02")
}

// Day 將時間截斷為 UTC 日期。
func Day(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
