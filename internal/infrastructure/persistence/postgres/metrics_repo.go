package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/metrics"
	"ad-autopilot/internal/domain/optimization"
)

// UpsertDailyMetrics 以 (client_id, campaign_id, platform, date) 為唯一鍵寫入，衍生欄位寫入前重算。
func (r *Repo) UpsertDailyMetrics(ctx context.Context, m metrics.DailyMetrics) error {
	const q = `
INSERT INTO daily_metrics (id, client_id, campaign_id, platform, date, spend, impressions, clicks, conversions,
                           revenue, reach, frequency, ctr, cpc, cpm, roas, cpa)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (client_id, campaign_id, platform, date)
DO UPDATE SET spend = EXCLUDED.spend,
              impressions = EXCLUDED.impressions,
              clicks = EXCLUDED.clicks,
              conversions = EXCLUDED.conversions,
              revenue = EXCLUDED.revenue,
              reach = EXCLUDED.reach,
              frequency = EXCLUDED.frequency,
              ctr = EXCLUDED.ctr,
              cpc = EXCLUDED.cpc,
              cpm = EXCLUDED.cpm,
              roas = EXCLUDED.roas,
              cpa = EXCLUDED.cpa,
              updated_at = NOW();
`
	m.Date = metrics.Day(m.Date)
	m.Recompute()
	_, err := r.q.ExecContext(ctx, q,
		newID(m.ID), m.ClientID, m.CampaignID, string(m.Platform), m.Date,
		m.Spend, m.Impressions, m.Clicks, m.Conversions, m.Revenue, m.Reach, m.Frequency,
		m.CTR, m.CPC, m.CPM, m.ROAS, m.CPA,
	)
	return err
}

// ListMetrics 依條件查詢每日成效，預設日期遞增。
func (r *Repo) ListMetrics(ctx context.Context, filter repository.MetricsFilter) ([]metrics.DailyMetrics, error) {
	q := `
SELECT id, client_id, campaign_id, platform, date, spend, impressions, clicks, conversions, revenue, reach,
       frequency, ctr, cpc, cpm, roas, cpa, created_at, updated_at
FROM daily_metrics`
	conds := []string{}
	args := []interface{}{}
	if filter.ClientID != "" {
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}
	if filter.CampaignID != "" {
		conds = append(conds, fmt.Sprintf("campaign_id = $%d", len(args)+1))
		args = append(args, filter.CampaignID)
	}
	if !filter.From.IsZero() {
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, metrics.Day(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, metrics.Day(filter.To))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.Desc {
		q += " ORDER BY date DESC, campaign_id, platform"
	} else {
		q += " ORDER BY date, campaign_id, platform"
	}
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.DailyMetrics
	for rows.Next() {
		var m metrics.DailyMetrics
		var platform string
		if err := rows.Scan(&m.ID, &m.ClientID, &m.CampaignID, &platform, &m.Date,
			&m.Spend, &m.Impressions, &m.Clicks, &m.Conversions, &m.Revenue, &m.Reach,
			&m.Frequency, &m.CTR, &m.CPC, &m.CPM, &m.ROAS, &m.CPA, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Platform = account.Platform(platform)
		m.Date = metrics.Day(m.Date)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SumSpend 加總客戶在區間內（含頭尾）的花費。
func (r *Repo) SumSpend(ctx context.Context, clientID string, from, to time.Time) (float64, error) {
	const q = `
SELECT COALESCE(SUM(spend), 0)
FROM daily_metrics
WHERE client_id = $1 AND date BETWEEN $2 AND $3;
`
	var total float64
	if err := r.q.QueryRowContext(ctx, q, clientID, metrics.Day(from), metrics.Day(to)).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// DailySpend 依日期彙總客戶花費。
func (r *Repo) DailySpend(ctx context.Context, clientID string, from, to time.Time) ([]repository.DaySpend, error) {
	const q = `
SELECT date, SUM(spend)
FROM daily_metrics
WHERE client_id = $1 AND date BETWEEN $2 AND $3
GROUP BY date
ORDER BY date;
`
	rows, err := r.q.QueryContext(ctx, q, clientID, metrics.Day(from), metrics.Day(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.DaySpend
	for rows.Next() {
		var d repository.DaySpend
		if err := rows.Scan(&d.Date, &d.Spend); err != nil {
			return nil, err
		}
		d.Date = metrics.Day(d.Date)
		out = append(out, d)
	}
	return out, rows.Err()
}

// AppendLog 寫入一筆稽核紀錄。
func (r *Repo) AppendLog(ctx context.Context, l optimization.Log) error {
	const q = `
INSERT INTO optimization_logs (id, client_id, campaign_id, entity_type, entity_id, action, reason,
                               old_value, new_value, status, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err := r.q.ExecContext(ctx, q,
		newID(l.ID), l.ClientID, nullString(l.CampaignID), string(l.EntityType), l.EntityID, string(l.Action),
		l.Reason, l.OldValue, l.NewValue, string(l.Status), l.ErrorMessage,
	)
	return err
}

// ListLogs 依建立時間新到舊列出稽核紀錄。
func (r *Repo) ListLogs(ctx context.Context, filter repository.LogFilter) ([]optimization.Log, error) {
	q := `
SELECT id, client_id, COALESCE(campaign_id::text, ''), entity_type, entity_id, action, reason,
       old_value, new_value, status, error_message, created_at
FROM optimization_logs`
	conds := []string{}
	args := []interface{}{}
	if filter.ClientID != "" {
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}
	if filter.CampaignID != "" {
		conds = append(conds, fmt.Sprintf("campaign_id = $%d", len(args)+1))
		args = append(args, filter.CampaignID)
	}
	if filter.Action != "" {
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)+1))
		args = append(args, string(filter.Action))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []optimization.Log
	for rows.Next() {
		var l optimization.Log
		var entity, action, status string
		if err := rows.Scan(&l.ID, &l.ClientID, &l.CampaignID, &entity, &l.EntityID, &action, &l.Reason,
			&l.OldValue, &l.NewValue, &status, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.EntityType = optimization.EntityType(entity)
		l.Action = optimization.Action(action)
		l.Status = optimization.Status(status)
		out = append(out, l)
	}
	return out, rows.Err()
}
