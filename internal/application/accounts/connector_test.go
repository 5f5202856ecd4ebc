package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/application/platform/platformtest"
	"ad-autopilot/internal/domain/account"
	"ad-autopilot/internal/domain/client"
	"ad-autopilot/internal/infra/memory"
)

func setup(t *testing.T) (*memory.Store, *platformtest.Adapter, *platformtest.Adapter, *Connector) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.SaveClient(context.Background(), client.Client{ID: "c1", IsActive: true}))
	meta := platformtest.New(account.PlatformMeta)
	google := platformtest.New(account.PlatformGoogle)
	return store, meta, google, NewConnector(store, platform.NewRegistry(meta, google))
}

func TestConnectUpsertsAccounts(t *testing.T) {
	ctx := context.Background()
	store, _, google, c := setup(t)
	google.Token = platform.OAuthToken{AccessToken: "at-1", RefreshToken: "rt-1"}
	google.Accounts = []platform.AccountInfo{{ID: "111"}, {ID: "222", Name: "Brand"}}

	saved, err := c.Connect(ctx, "c1", account.PlatformGoogle, "code-1", "http://localhost/cb")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "Google Ads 111", saved[0].AccountName)
	assert.Equal(t, "Brand", saved[1].AccountName)
	for _, a := range saved {
		assert.Equal(t, account.StatusConnected, a.Status)
		assert.Equal(t, "rt-1", a.RefreshToken)
	}

	// 重新授權沿用同一筆帳戶；沒有新的 refresh token 時保留舊值。
	first := saved[0]
	_, err = c.Disconnect(ctx, first.ID)
	require.NoError(t, err)
	google.Token = platform.OAuthToken{AccessToken: "at-2"}
	saved, err = c.Connect(ctx, "c1", account.PlatformGoogle, "code-2", "")
	require.NoError(t, err)

	all, err := c.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	again, err := store.GetAdAccount(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusConnected, again.Status)
	assert.Equal(t, "at-2", again.AccessToken)
	assert.Equal(t, "rt-1", saved[1].RefreshToken)
}

func TestConnectErrors(t *testing.T) {
	ctx := context.Background()
	_, meta, _, c := setup(t)

	_, err := c.Connect(ctx, "c1", account.Platform("tiktok"), "code", "")
	assert.ErrorIs(t, err, platform.ErrUnsupportedPlatform)

	meta.ExchangeErr = errors.New("invalid code")
	_, err = c.Connect(ctx, "c1", account.PlatformMeta, "code", "")
	assert.ErrorContains(t, err, "invalid code")

	meta.ExchangeErr = nil
	_, err = c.Connect(ctx, "c1", account.PlatformMeta, "code", "")
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	store, meta, _, c := setup(t)
	meta.Token = platform.OAuthToken{AccessToken: "tok"}
	meta.Accounts = []platform.AccountInfo{{ID: "act_1"}}

	saved, err := c.Connect(ctx, "c1", account.PlatformMeta, "code", "")
	require.NoError(t, err)
	assert.Equal(t, "Meta Ad Account", saved[0].AccountName)

	off, err := c.Disconnect(ctx, saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusDisconnected, off.Status)
	assert.Empty(t, off.AccessToken)

	connected, err := store.ListAdAccounts(ctx, "c1", account.StatusConnected)
	require.NoError(t, err)
	assert.Empty(t, connected)
}
