package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"ad-autopilot/internal/infrastructure/config"
	"ad-autopilot/internal/infrastructure/external/guard"
)

// Meta 以這些錯誤碼表示節流，應視為暫時性錯誤。
var throttleCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}

// APIError 為 Graph API 回傳的錯誤。
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meta api error (status %d, code %d): %s", e.Status, e.Code, e.Message)
}

// Client 是 Meta Graph API 的 HTTP client。
type Client struct {
	appID       string
	appSecret   string
	redirectURI string
	baseURL     string
	version     string
	httpClient  *http.Client
	guard       *guard.Guard
}

// NewClient 建立 Graph API client；g 為 nil 時不限流也不斷路。
func NewClient(cfg config.MetaConfig, g *guard.Guard) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.facebook.com"
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v18.0"
	}
	return &Client{
		appID:       cfg.AppID,
		appSecret:   cfg.AppSecret,
		redirectURI: cfg.RedirectURI,
		baseURL:     baseURL,
		version:     version,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		guard:       g,
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, strings.TrimLeft(path, "/"))
}

func (c *Client) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if c.guard == nil {
		return fn(ctx)
	}
	return c.guard.Do(ctx, op, fn)
}

// get 對完整 URL 發出 GET，供分頁 next 連結使用。
func (c *Client) get(ctx context.Context, fullURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) call(ctx context.Context, method, path, token string, params url.Values, body, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if token != "" {
		params.Set("access_token", token)
	}
	fullURL := c.endpoint(path)
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return classify(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode meta response: %w", err)
	}
	return nil
}

func classify(status int, body []byte) error {
	var envelope struct {
		Error APIError `json:"error"`
	}
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		apiErr = &envelope.Error
		apiErr.Status = status
	}
	if status == http.StatusTooManyRequests || status >= 500 || throttleCodes[apiErr.Code] {
		return apiErr
	}
	return guard.Permanent(apiErr)
}

func (c *Client) appCredentials(appID, appSecret string) (string, string) {
	if appID == "" {
		appID = c.appID
	}
	if appSecret == "" {
		appSecret = c.appSecret
	}
	return appID, appSecret
}

func (c *Client) oauthConfig(appID, appSecret, redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = c.redirectURI
	}
	return &oauth2.Config{
		ClientID:     appID,
		ClientSecret: appSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"ads_management", "ads_read", "business_management"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   facebook.Endpoint.AuthURL,
			TokenURL:  c.endpoint("oauth/access_token"),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL 回傳授權頁面網址。
func (c *Client) AuthCodeURL(state, redirectURI string) string {
	return c.oauthConfig(c.appID, c.appSecret, redirectURI).AuthCodeURL(state)
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeCode 以授權碼換取短效 token，再換成長效 token。
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI, appID, appSecret string) (TokenResponse, error) {
	appID, appSecret = c.appCredentials(appID, appSecret)
	var out TokenResponse
	err := c.run(ctx, "exchange_oauth_code", func(ctx context.Context) error {
		octx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
		short, err := c.oauthConfig(appID, appSecret, redirectURI).Exchange(octx, code)
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
				return guard.Permanent(fmt.Errorf("exchange code: %w", err))
			}
			return fmt.Errorf("exchange code: %w", err)
		}
		params := url.Values{}
		params.Set("grant_type", "fb_exchange_token")
		params.Set("client_id", appID)
		params.Set("client_secret", appSecret)
		params.Set("fb_exchange_token", short.AccessToken)
		return c.call(ctx, http.MethodGet, "oauth/access_token", "", params, nil, &out)
	})
	return out, err
}

type AdAccount struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Status    int    `json:"account_status"`
	Currency  string `json:"currency"`
}

type paging struct {
	Next string `json:"next"`
}

// AdAccounts 列出 token 可存取的廣告帳戶。
func (c *Client) AdAccounts(ctx context.Context, token string) ([]AdAccount, error) {
	params := url.Values{}
	params.Set("fields", "id,account_id,name,account_status,currency,timezone_name")
	var out []AdAccount
	err := c.run(ctx, "list_accounts", func(ctx context.Context) error {
		out = out[:0]
		var page struct {
			Data   []AdAccount `json:"data"`
			Paging paging      `json:"paging"`
		}
		if err := c.call(ctx, http.MethodGet, "me/adaccounts", token, params, nil, &page); err != nil {
			return err
		}
		out = append(out, page.Data...)
		for page.Paging.Next != "" {
			next := page.Paging.Next
			page.Data, page.Paging = nil, paging{}
			if err := c.get(ctx, next, &page); err != nil {
				return err
			}
			out = append(out, page.Data...)
		}
		return nil
	})
	return out, err
}

type ActionValue struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type InsightRow struct {
	CampaignID   string        `json:"campaign_id"`
	CampaignName string        `json:"campaign_name"`
	DateStart    string        `json:"date_start"`
	Spend        string        `json:"spend"`
	Impressions  string        `json:"impressions"`
	Clicks       string        `json:"clicks"`
	Reach        string        `json:"reach"`
	Frequency    string        `json:"frequency"`
	Actions      []ActionValue `json:"actions"`
	ActionValues []ActionValue `json:"action_values"`
}

// Insights 取得活動層級、逐日的成效，並跟隨分頁。
func (c *Client) Insights(ctx context.Context, accountID, token string, since, until time.Time) ([]InsightRow, error) {
	params := url.Values{}
	params.Set("level", "campaign")
	params.Set("fields", "campaign_id,campaign_name,spend,impressions,clicks,actions,action_values,frequency,reach")
	params.Set("time_range", fmt.Sprintf(`{"since":"%s","until":"%s"}`, since.Format("2006-01-02"), until.Format("2006-01-02")))
	params.Set("time_increment", "1")
	params.Set("limit", "500")

	var out []InsightRow
	err := c.run(ctx, "fetch_performance", func(ctx context.Context) error {
		out = out[:0]
		var page struct {
			Data   []InsightRow `json:"data"`
			Paging paging       `json:"paging"`
		}
		if err := c.call(ctx, http.MethodGet, actPath(accountID)+"/insights", token, params, nil, &page); err != nil {
			return err
		}
		out = append(out, page.Data...)
		for page.Paging.Next != "" {
			next := page.Paging.Next
			page.Data, page.Paging = nil, paging{}
			if err := c.get(ctx, next, &page); err != nil {
				return err
			}
			out = append(out, page.Data...)
		}
		return nil
	})
	return out, err
}

type idResponse struct {
	ID string `json:"id"`
}

// Create 在帳戶下建立物件（campaigns、adsets），回傳新 id。
func (c *Client) Create(ctx context.Context, op, accountID, edge, token string, payload map[string]interface{}) (string, error) {
	var out idResponse
	err := c.run(ctx, op, func(ctx context.Context) error {
		return c.call(ctx, http.MethodPost, actPath(accountID)+"/"+edge, token, nil, payload, &out)
	})
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("meta %s: empty id in response", edge)
	}
	return out.ID, nil
}

// Update 更新單一物件欄位。
func (c *Client) Update(ctx context.Context, op, objectID, token string, payload map[string]interface{}) error {
	return c.run(ctx, op, func(ctx context.Context) error {
		var out struct {
			Success bool `json:"success"`
		}
		if err := c.call(ctx, http.MethodPost, objectID, token, nil, payload, &out); err != nil {
			return err
		}
		if !out.Success {
			return fmt.Errorf("meta update %s: not acknowledged", objectID)
		}
		return nil
	})
}

func actPath(accountID string) string {
	return "act_" + strings.TrimPrefix(accountID, "act_")
}
