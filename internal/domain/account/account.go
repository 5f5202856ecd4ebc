package account

import "time"

// Platform 表示外部廣告平台。
type Platform string

const (
	PlatformMeta   Platform = "meta"
	PlatformGoogle Platform = "google"
)

// Valid 檢查平台是否受支援。
func (p Platform) Valid() bool {
	return p == PlatformMeta || p == PlatformGoogle
}

// Status 為廣告帳戶的連線狀態。
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// AdAccount 是客戶在某個平台上的授權連線，唯一鍵為 (ClientID, Platform, AccountID)。
type AdAccount struct {
	ID             string
	ClientID       string
	Platform       Platform
	AccountID      string
	AccountName    string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Connected 回傳帳戶是否可用於同步與投放。
func (a AdAccount) Connected() bool {
	return a.Status == StatusConnected
}
