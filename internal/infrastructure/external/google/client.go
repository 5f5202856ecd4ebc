package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"ad-autopilot/internal/infrastructure/config"
	"ad-autopilot/internal/infrastructure/external/guard"
)

const adwordsScope = "https://www.googleapis.com/auth/adwords"

// APIError 為 Google Ads REST 回傳的錯誤。
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	State   string `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google ads api error (status %d, %s): %s", e.Status, e.State, e.Message)
}

// Client 是 Google Ads REST API 的 HTTP client。
type Client struct {
	clientID        string
	clientSecret    string
	developerToken  string
	loginCustomerID string
	redirectURI     string
	baseURL         string
	version         string
	tokenURL        string
	httpClient      *http.Client
	guard           *guard.Guard

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewClient 建立 Google Ads client；g 為 nil 時不限流也不斷路。
func NewClient(cfg config.GoogleConfig, g *guard.Guard) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://googleads.googleapis.com"
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v15"
	}
	return &Client{
		clientID:        cfg.ClientID,
		clientSecret:    cfg.ClientSecret,
		developerToken:  cfg.DeveloperToken,
		loginCustomerID: customerID(cfg.LoginCustomerID),
		redirectURI:     cfg.RedirectURI,
		baseURL:         baseURL,
		version:         version,
		tokenURL:        googleoauth.Endpoint.TokenURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		guard:           g,
		sources:         make(map[string]oauth2.TokenSource),
	}
}

// Credentials 為單次呼叫的授權；空白欄位使用系統設定。
type Credentials struct {
	AccessToken    string
	RefreshToken   string
	ClientID       string
	ClientSecret   string
	DeveloperToken string
}

func (c *Client) oauthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	if clientID == "" {
		clientID = c.clientID
	}
	if clientSecret == "" {
		clientSecret = c.clientSecret
	}
	if redirectURI == "" {
		redirectURI = c.redirectURI
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{adwordsScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   googleoauth.Endpoint.AuthURL,
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL 回傳授權頁面網址，要求 offline access 以取得 refresh token。
func (c *Client) AuthCodeURL(state, redirectURI string) string {
	return c.oauthConfig("", "", redirectURI).AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// ExchangeCode 以授權碼換取 access token 與 refresh token。
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string, creds Credentials) (*oauth2.Token, error) {
	var tok *oauth2.Token
	err := c.run(ctx, "exchange_oauth_code", func(ctx context.Context) error {
		t, err := c.oauthConfig(creds.ClientID, creds.ClientSecret, redirectURI).Exchange(c.oauthContext(ctx), code)
		if err != nil {
			return classifyOAuth(fmt.Errorf("exchange code: %w", err))
		}
		tok = t
		return nil
	})
	return tok, err
}

func classifyOAuth(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
		return guard.Permanent(err)
	}
	return err
}

// accessToken 以 refresh token 取得有效的 access token；token source 依 refresh token 重用。
func (c *Client) accessToken(ctx context.Context, creds Credentials) (string, error) {
	if creds.RefreshToken == "" {
		if creds.AccessToken == "" {
			return "", guard.Permanent(errors.New("google ads: no access or refresh token"))
		}
		return creds.AccessToken, nil
	}

	key := creds.ClientID + "|" + creds.RefreshToken
	c.mu.Lock()
	src, ok := c.sources[key]
	if !ok {
		cfg := c.oauthConfig(creds.ClientID, creds.ClientSecret, "")
		src = cfg.TokenSource(c.oauthContext(context.Background()), &oauth2.Token{RefreshToken: creds.RefreshToken})
		c.sources[key] = src
	}
	c.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", classifyOAuth(fmt.Errorf("refresh access token: %w", err))
	}
	return tok.AccessToken, nil
}

func (c *Client) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if c.guard == nil {
		return fn(ctx)
	}
	return c.guard.Do(ctx, op, fn)
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, strings.TrimLeft(path, "/"))
}

// call 取得 access token 後送出請求。
func (c *Client) call(ctx context.Context, op, method, path string, creds Credentials, body, out interface{}) error {
	return c.run(ctx, op, func(ctx context.Context) error {
		token, err := c.accessToken(ctx, creds)
		if err != nil {
			return err
		}
		var reader io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		devToken := creds.DeveloperToken
		if devToken == "" {
			devToken = c.developerToken
		}
		req.Header.Set("developer-token", devToken)
		if c.loginCustomerID != "" {
			req.Header.Set("login-customer-id", c.loginCustomerID)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.do(req, out)
	})
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
		return fmt.Errorf("decode google ads response: %w", err)
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
	if status == http.StatusTooManyRequests || status >= 500 {
		return apiErr
	}
	return guard.Permanent(apiErr)
}

// SearchRow 為 searchStream 回傳的一列；數值欄位可能是字串或數字。
type SearchRow struct {
	Campaign struct {
		ResourceName   string `json:"resourceName"`
		ID             string `json:"id"`
		Name           string `json:"name"`
		CampaignBudget string `json:"campaignBudget"`
	} `json:"campaign"`
	Metrics struct {
		CostMicros       json.Number `json:"costMicros"`
		Impressions      json.Number `json:"impressions"`
		Clicks           json.Number `json:"clicks"`
		Conversions      json.Number `json:"conversions"`
		ConversionsValue json.Number `json:"conversionsValue"`
	} `json:"metrics"`
	Segments struct {
		Date string `json:"date"`
	} `json:"segments"`
}

// SearchStream 執行 GAQL 查詢並攤平所有批次。
func (c *Client) SearchStream(ctx context.Context, op, customer, query string, creds Credentials) ([]SearchRow, error) {
	var batches []struct {
		Results []SearchRow `json:"results"`
	}
	path := fmt.Sprintf("customers/%s/googleAds:searchStream", customerID(customer))
	if err := c.call(ctx, op, http.MethodPost, path, creds, map[string]string{"query": query}, &batches); err != nil {
		return nil, err
	}
	var out []SearchRow
	for _, b := range batches {
		out = append(out, b.Results...)
	}
	return out, nil
}

type mutateResponse struct {
	Results []struct {
		ResourceName string `json:"resourceName"`
	} `json:"results"`
}

// Mutate 對資源送出單一 operation，回傳第一個結果的 resourceName。
func (c *Client) Mutate(ctx context.Context, op, customer, resource string, operation map[string]interface{}, creds Credentials) (string, error) {
	path := fmt.Sprintf("customers/%s/%s:mutate", customerID(customer), resource)
	var out mutateResponse
	body := map[string]interface{}{"operations": []map[string]interface{}{operation}}
	if err := c.call(ctx, op, http.MethodPost, path, creds, body, &out); err != nil {
		return "", err
	}
	if len(out.Results) == 0 || out.Results[0].ResourceName == "" {
		return "", fmt.Errorf("google ads %s: empty mutate result", resource)
	}
	return out.Results[0].ResourceName, nil
}

// AccessibleCustomers 列出 token 可存取的 customer id。
func (c *Client) AccessibleCustomers(ctx context.Context, creds Credentials) ([]string, error) {
	var out struct {
		ResourceNames []string `json:"resourceNames"`
	}
	if err := c.call(ctx, "list_accounts", http.MethodGet, "customers:listAccessibleCustomers", creds, nil, &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.ResourceNames))
	for _, rn := range out.ResourceNames {
		ids = append(ids, lastSegment(rn))
	}
	return ids, nil
}

func customerID(id string) string {
	return strings.ReplaceAll(id, "-", "")
}

func lastSegment(resourceName string) string {
	if i := strings.LastIndex(resourceName, "/"); i >= 0 {
		return resourceName[i+1:]
	}
	return resourceName
}
