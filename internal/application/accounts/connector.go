package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/domain/account"
)

// ErrNoAccounts 表示授權成功但沒有可存取的廣告帳戶。
var ErrNoAccounts = errors.New("no accessible ad accounts")

// Connector 處理 OAuth 授權碼交換與廣告帳戶連線。
type Connector struct {
	store    repository.Store
	adapters *platform.Registry
	now      func() time.Time
	log      zerolog.Logger
}

// NewConnector 建立帳戶連線服務。
func NewConnector(store repository.Store, adapters *platform.Registry) *Connector {
	return &Connector{
		store:    store,
		adapters: adapters,
		now:      time.Now,
		log:      log.With().Str("component", "accounts").Logger(),
	}
}

// Connect 以授權碼換取 token，列出可存取的帳戶並依 (客戶, 平台, 帳戶 ID) upsert 為 connected。
func (c *Connector) Connect(ctx context.Context, clientID string, p account.Platform, code, redirectURI string) ([]account.AdAccount, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %s", platform.ErrUnsupportedPlatform, p)
	}
	cl, err := c.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("get client %s: %w", clientID, err)
	}
	adapter, err := c.adapters.Get(p)
	if err != nil {
		return nil, err
	}

	creds := platform.CredentialsFor(account.AdAccount{Platform: p}, cl)
	token, err := adapter.ExchangeOAuthCode(ctx, code, redirectURI, creds)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}
	creds.AccessToken = token.AccessToken
	creds.RefreshToken = token.RefreshToken
	infos, err := adapter.ListAccounts(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if len(infos) == 0 {
		return nil, ErrNoAccounts
	}

	existing, err := c.store.ListAdAccounts(ctx, cl.ID, "")
	if err != nil {
		return nil, fmt.Errorf("list ad accounts: %w", err)
	}
	refreshTokens := make(map[string]string, len(existing))
	for _, a := range existing {
		if a.Platform == p {
			refreshTokens[a.AccountID] = a.RefreshToken
		}
	}

	var saved []account.AdAccount
	err = c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		saved = saved[:0]
		for _, info := range infos {
			refresh := token.RefreshToken
			if refresh == "" {
				refresh = refreshTokens[info.ID]
			}
			a, err := tx.UpsertAdAccount(ctx, account.AdAccount{
				ID:             uuid.NewString(),
				ClientID:       cl.ID,
				Platform:       p,
				AccountID:      info.ID,
				AccountName:    accountName(p, info),
				AccessToken:    token.AccessToken,
				RefreshToken:   refresh,
				TokenExpiresAt: token.ExpiresAt,
				Status:         account.StatusConnected,
			})
			if err != nil {
				return fmt.Errorf("upsert account %s: %w", info.ID, err)
			}
			saved = append(saved, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("client_id", cl.ID).
		Str("platform", string(p)).
		Int("accounts", len(saved)).
		Msg("ad accounts connected")
	return saved, nil
}

func accountName(p account.Platform, info platform.AccountInfo) string {
	if info.Name != "" {
		return info.Name
	}
	if p == account.PlatformGoogle {
		return "Google Ads " + info.ID
	}
	return "Meta Ad Account"
}

// List 回傳客戶所有帳戶（含未連線）。
func (c *Connector) List(ctx context.Context, clientID string) ([]account.AdAccount, error) {
	accounts, err := c.store.ListAdAccounts(ctx, clientID, "")
	if err != nil {
		return nil, fmt.Errorf("list ad accounts: %w", err)
	}
	return accounts, nil
}

// Disconnect 將帳戶標記為 disconnected 並清除 token，之後的同步與投放都會略過此帳戶。
func (c *Connector) Disconnect(ctx context.Context, accountID string) (account.AdAccount, error) {
	a, err := c.store.GetAdAccount(ctx, accountID)
	if err != nil {
		return account.AdAccount{}, fmt.Errorf("get ad account %s: %w", accountID, err)
	}
	a.Status = account.StatusDisconnected
	a.AccessToken = ""
	a.RefreshToken = ""
	a.TokenExpiresAt = nil
	saved, err := c.store.UpsertAdAccount(ctx, a)
	if err != nil {
		return account.AdAccount{}, fmt.Errorf("disconnect ad account %s: %w", accountID, err)
	}
	c.log.Info().Str("client_id", a.ClientID).Str("account_id", a.AccountID).Msg("ad account disconnected")
	return saved, nil
}
