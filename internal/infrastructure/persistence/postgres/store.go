package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/client"
)

// querier 為 *sql.DB 與 *sql.Tx 共同的查詢介面。
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repo 在單一連線或交易上實作 repository.Repository。
type Repo struct {
	q querier
}

// Store 提供 Postgres 資料存取與以客戶為單位的交易。
type Store struct {
	*Repo
	db *sql.DB
}

var (
	_ repository.Repository = (*Repo)(nil)
	_ repository.Store      = (*Store)(nil)
)

// NewStore 建立 Postgres Store。
func NewStore(db *sql.DB) *Store {
	return &Store{Repo: &Repo{q: db}, db: db}
}

// WithinTx 在同一個交易中執行 fn，fn 失敗時回滾。
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &Repo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping 檢查資料庫連線。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

const clientColumns = `id, user_id, company_name, website, country, industry, monthly_budget, currency,
       automation_status, is_active, meta_app_id, meta_app_secret, google_client_id,
       google_client_secret, google_developer_token, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(row rowScanner) (client.Client, error) {
	var c client.Client
	var status string
	err := row.Scan(
		&c.ID, &c.UserID, &c.CompanyName, &c.Website, &c.Country, &c.Industry, &c.MonthlyBudget, &c.Currency,
		&status, &c.IsActive,
		&c.Credentials.MetaAppID, &c.Credentials.MetaAppSecret,
		&c.Credentials.GoogleClientID, &c.Credentials.GoogleClientSecret, &c.Credentials.GoogleDeveloperToken,
		&c.CreatedAt, &c.UpdatedAt,
	)
	c.AutomationStatus = client.AutomationStatus(status)
	return c, err
}

// GetClient 依 id 取得客戶。
func (r *Repo) GetClient(ctx context.Context, id string) (client.Client, error) {
	q := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	c, err := scanClient(r.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return client.Client{}, notFound(err)
	}
	return c, nil
}

// ListClientsByStatus 列出啟用中且狀態符合的客戶，未指定狀態時列出全部啟用客戶。
func (r *Repo) ListClientsByStatus(ctx context.Context, statuses ...client.AutomationStatus) ([]client.Client, error) {
	q := `SELECT ` + clientColumns + ` FROM clients WHERE is_active = TRUE`
	var args []interface{}
	if len(statuses) > 0 {
		vals := make([]string, len(statuses))
		for i, s := range statuses {
			vals[i] = string(s)
		}
		args = append(args, pq.Array(vals))
		q += fmt.Sprintf(" AND automation_status = ANY($%d)", len(args))
	}
	q += " ORDER BY id"

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []client.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveClient 新增或更新客戶。
func (r *Repo) SaveClient(ctx context.Context, c client.Client) error {
	const q = `
INSERT INTO clients (id, user_id, company_name, website, country, industry, monthly_budget, currency,
                     automation_status, is_active, meta_app_id, meta_app_secret, google_client_id,
                     google_client_secret, google_developer_token)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id)
DO UPDATE SET user_id = EXCLUDED.user_id,
              company_name = EXCLUDED.company_name,
              website = EXCLUDED.website,
              country = EXCLUDED.country,
              industry = EXCLUDED.industry,
              monthly_budget = EXCLUDED.monthly_budget,
              currency = EXCLUDED.currency,
              automation_status = EXCLUDED.automation_status,
              is_active = EXCLUDED.is_active,
              meta_app_id = EXCLUDED.meta_app_id,
              meta_app_secret = EXCLUDED.meta_app_secret,
              google_client_id = EXCLUDED.google_client_id,
              google_client_secret = EXCLUDED.google_client_secret,
              google_developer_token = EXCLUDED.google_developer_token,
              updated_at = NOW();
`
	status := c.AutomationStatus
	if status == "" {
		status = client.StatusInactive
	}
	_, err := r.q.ExecContext(ctx, q,
		newID(c.ID), c.UserID, c.CompanyName, c.Website, c.Country, c.Industry, c.MonthlyBudget, c.Currency,
		string(status), c.IsActive,
		c.Credentials.MetaAppID, c.Credentials.MetaAppSecret,
		c.Credentials.GoogleClientID, c.Credentials.GoogleClientSecret, c.Credentials.GoogleDeveloperToken,
	)
	return err
}

// UpdateClientStatus 更新自動化狀態。
func (r *Repo) UpdateClientStatus(ctx context.Context, id string, status client.AutomationStatus) error {
	const q = `UPDATE clients SET automation_status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.q.ExecContext(ctx, q, id, string(status))
	if err != nil {
		return err
	}
	return expectAffected(res)
}

const accountColumns = `id, client_id, platform, account_id, account_name, access_token, refresh_token,
       token_expires_at, status, created_at, updated_at`

func scanAccount(row rowScanner) (account.AdAccount, error) {
	var a account.AdAccount
	var platform, status string
	var expires sql.NullTime
	err := row.Scan(&a.ID, &a.ClientID, &platform, &a.AccountID, &a.AccountName, &a.AccessToken, &a.RefreshToken,
		&expires, &status, &a.CreatedAt, &a.UpdatedAt)
	a.Platform = account.Platform(platform)
	a.Status = account.Status(status)
	if expires.Valid {
		t := expires.Time
		a.TokenExpiresAt = &t
	}
	return a, err
}

// ListAdAccounts 列出客戶的廣告帳戶，status 為空時不過濾。
func (r *Repo) ListAdAccounts(ctx context.Context, clientID string, status account.Status) ([]account.AdAccount, error) {
	conds := []string{"client_id = $1"}
	args := []interface{}{clientID}
	if status != "" {
		args = append(args, string(status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + accountColumns + ` FROM ad_accounts WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY id`

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.AdAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAdAccount 依 id 取得廣告帳戶。
func (r *Repo) GetAdAccount(ctx context.Context, id string) (account.AdAccount, error) {
	q := `SELECT ` + accountColumns + ` FROM ad_accounts WHERE id = $1`
	a, err := scanAccount(r.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return account.AdAccount{}, notFound(err)
	}
	return a, nil
}

// UpsertAdAccount 以 (client_id, platform, account_id) 為唯一鍵寫入，空白名稱保留既有值。
func (r *Repo) UpsertAdAccount(ctx context.Context, a account.AdAccount) (account.AdAccount, error) {
	const q = `
INSERT INTO ad_accounts (id, client_id, platform, account_id, account_name, access_token, refresh_token, token_expires_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (client_id, platform, account_id)
DO UPDATE SET account_name = COALESCE(NULLIF(EXCLUDED.account_name, ''), ad_accounts.account_name),
              access_token = EXCLUDED.access_token,
              refresh_token = EXCLUDED.refresh_token,
              token_expires_at = EXCLUDED.token_expires_at,
              status = EXCLUDED.status,
              updated_at = NOW()
RETURNING id, account_name, created_at, updated_at;
`
	err := r.q.QueryRowContext(ctx, q,
		newID(a.ID), a.ClientID, string(a.Platform), a.AccountID, a.AccountName,
		a.AccessToken, a.RefreshToken, nullTime(a.TokenExpiresAt), string(a.Status),
	).Scan(&a.ID, &a.AccountName, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return account.AdAccount{}, err
	}
	return a, nil
}

// GetBudgetSettings 取得客戶的預算設定。
func (r *Repo) GetBudgetSettings(ctx context.Context, clientID string) (client.BudgetSettings, error) {
	const q = `
SELECT id, client_id, monthly_cap, current_month_spend, prospecting_pct, retargeting_pct, testing_pct,
       daily_spend_alert_pct, monthly_spend_alert_pct, created_at, updated_at
FROM budget_settings
WHERE client_id = $1;
`
	var b client.BudgetSettings
	err := r.q.QueryRowContext(ctx, q, clientID).Scan(
		&b.ID, &b.ClientID, &b.MonthlyCap, &b.CurrentMonthSpend,
		&b.ProspectingPct, &b.RetargetingPct, &b.TestingPct,
		&b.DailySpendAlertPct, &b.MonthlySpendAlertPct, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return client.BudgetSettings{}, notFound(err)
	}
	return b, nil
}

// SaveBudgetSettings 以 client_id 為唯一鍵寫入預算設定。
func (r *Repo) SaveBudgetSettings(ctx context.Context, b client.BudgetSettings) error {
	const q = `
INSERT INTO budget_settings (id, client_id, monthly_cap, current_month_spend, prospecting_pct, retargeting_pct,
                             testing_pct, daily_spend_alert_pct, monthly_spend_alert_pct)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (client_id)
DO UPDATE SET monthly_cap = EXCLUDED.monthly_cap,
              current_month_spend = EXCLUDED.current_month_spend,
              prospecting_pct = EXCLUDED.prospecting_pct,
              retargeting_pct = EXCLUDED.retargeting_pct,
              testing_pct = EXCLUDED.testing_pct,
              daily_spend_alert_pct = EXCLUDED.daily_spend_alert_pct,
              monthly_spend_alert_pct = EXCLUDED.monthly_spend_alert_pct,
              updated_at = NOW();
`
	_, err := r.q.ExecContext(ctx, q,
		newID(b.ID), b.ClientID, b.MonthlyCap, b.CurrentMonthSpend,
		b.ProspectingPct, b.RetargetingPct, b.TestingPct,
		b.DailySpendAlertPct, b.MonthlySpendAlertPct,
	)
	return err
}

// UpdateMonthSpend 更新本月花費快取。
func (r *Repo) UpdateMonthSpend(ctx context.Context, clientID string, spend float64) error {
	const q = `UPDATE budget_settings SET current_month_spend = $2, updated_at = NOW() WHERE client_id = $1`
	res, err := r.q.ExecContext(ctx, q, clientID, spend)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
