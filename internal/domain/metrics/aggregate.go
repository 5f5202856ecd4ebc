package metrics

// Totals 彙總一段期間的原始計數。
type Totals struct {
	Rows        int
	Spend       float64
	Revenue     float64
	Conversions int64
	Clicks      int64
	Impressions int64
	SumCTR      float64
	SumCPA      float64
	SumFreq     float64
}

// Sum 彙總多筆每日成效。
func Sum(rows []DailyMetrics) Totals {
	var t Totals
	for _, r := range rows {
		t.Rows++
		t.Spend += r.Spend
		t.Revenue += r.Revenue
		t.Conversions += r.Conversions
		t.Clicks += r.Clicks
		t.Impressions += r.Impressions
		t.SumCTR += r.CTR
		t.SumCPA += r.CPA
		t.SumFreq += r.Frequency
	}
	return t
}

// ROAS 為總營收 / 總花費。
func (t Totals) ROAS() float64 { return SafeDivide(t.Revenue, t.Spend) }

// MeanCTR 為各列 CTR 的平均。
func (t Totals) MeanCTR() float64 { return SafeDivide(t.SumCTR, float64(t.Rows)) }

// MeanCPA 為各列 CPA 的平均。
func (t Totals) MeanCPA() float64 { return SafeDivide(t.SumCPA, float64(t.Rows)) }

// MeanFrequency 為各列頻次的平均。
func (t Totals) MeanFrequency() float64 { return SafeDivide(t.SumFreq, float64(t.Rows)) }
