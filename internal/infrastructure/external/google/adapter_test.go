package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/domain/campaign"
	"ad-autopilot/internal/infrastructure/config"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestAdapter(t *testing.T, mux *http.ServeMux) *Adapter {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(config.GoogleConfig{
		ClientID:        "sys-client",
		ClientSecret:    "sys-secret",
		DeveloperToken:  "dev-token",
		LoginCustomerID: "111-222-3333",
		BaseURL:         srv.URL,
	}, nil)
	c.tokenURL = srv.URL + "/token"
	return NewAdapter(c)
}

func decode(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func firstOp(body map[string]interface{}) map[string]interface{} {
	return body["operations"].([]interface{})[0].(map[string]interface{})
}

func TestAdapter_FetchPerformance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v15/customers/1234567890/googleAds:searchStream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "dev-token", r.Header.Get("developer-token"))
		assert.Equal(t, "1112223333", r.Header.Get("login-customer-id"))
		query := decode(t, r)["query"].(string)
		assert.Contains(t, query, "segments.date BETWEEN '2024-05-01' AND '2024-05-02'")
		writeJSON(w, []map[string]interface{}{
			{"results": []map[string]interface{}{{
				"campaign": map[string]string{"id": "42", "name": "Brand"},
				"metrics": map[string]interface{}{
					"costMicros":       "12500000",
					"impressions":      "1000",
					"clicks":           "25",
					"conversions":      2.7,
					"conversionsValue": 150.5,
				},
				"segments": map[string]string{"date": "2024-05-01"},
			}}},
			{"results": []map[string]interface{}{{
				"campaign": map[string]string{"id": "42", "name": "Brand"},
				"metrics":  map[string]interface{}{"impressions": "10"},
				"segments": map[string]string{"date": "2024-05-02"},
			}}},
		})
	})
	a := newTestAdapter(t, mux)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows, err := a.FetchPerformance(context.Background(), "123-456-7890", platform.Credentials{AccessToken: "access-1"}, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "42", rows[0].CampaignID)
	assert.Equal(t, 12.5, rows[0].Spend)
	assert.Equal(t, int64(25), rows[0].Clicks)
	assert.Equal(t, int64(2), rows[0].Conversions)
	assert.Equal(t, 150.5, rows[0].Revenue)
	assert.Equal(t, 0.0, rows[1].Spend)
	assert.Equal(t, int64(10), rows[1].Impressions)
}

func TestAdapter_RefreshTokenIsExchangedOnce(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "rt-1", r.FormValue("refresh_token"))
		assert.Equal(t, "client-own", r.FormValue("client_id"))
		atomic.AddInt32(&refreshes, 1)
		writeJSON(w, map[string]interface{}{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/v15/customers:listAccessibleCustomers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		assert.Equal(t, "client-dev", r.Header.Get("developer-token"))
		writeJSON(w, map[string]interface{}{"resourceNames": []string{"customers/1234567890", "customers/555"}})
	})
	a := newTestAdapter(t, mux)
	creds := platform.Credentials{
		AccessToken:    "stale",
		RefreshToken:   "rt-1",
		AppID:          "client-own",
		AppSecret:      "client-own-secret",
		DeveloperToken: "client-dev",
	}

	for i := 0; i < 2; i++ {
		accts, err := a.ListAccounts(context.Background(), creds)
		require.NoError(t, err)
		assert.Equal(t, []platform.AccountInfo{{ID: "1234567890"}, {ID: "555"}}, accts)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
}

func TestAdapter_CreateCampaign(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v15/customers/123/campaignBudgets:mutate", func(w http.ResponseWriter, r *http.Request) {
		create := firstOp(decode(t, r))["create"].(map[string]interface{})
		assert.Equal(t, "45000000", create["amountMicros"])
		assert.Equal(t, false, create["explicitlyShared"])
		assert.True(t, strings.HasPrefix(create["name"].(string), "AUTO_Retargeting_123 Budget"))
		writeJSON(w, map[string]interface{}{"results": []map[string]string{{"resourceName": "customers/123/campaignBudgets/77"}}})
	})
	mux.HandleFunc("/v15/customers/123/campaigns:mutate", func(w http.ResponseWriter, r *http.Request) {
		create := firstOp(decode(t, r))["create"].(map[string]interface{})
		assert.Equal(t, "PAUSED", create["status"])
		assert.Equal(t, "SEARCH", create["advertisingChannelType"])
		assert.Equal(t, "customers/123/campaignBudgets/77", create["campaignBudget"])
		assert.Contains(t, create, "maximizeConversionValue")
		writeJSON(w, map[string]interface{}{"results": []map[string]string{{"resourceName": "customers/123/campaigns/9001"}}})
	})
	mux.HandleFunc("/v15/customers/123/adGroups:mutate", func(w http.ResponseWriter, r *http.Request) {
		create := firstOp(decode(t, r))["create"].(map[string]interface{})
		assert.Equal(t, "customers/123/campaigns/9001", create["campaign"])
		assert.Equal(t, "PAUSED", create["status"])
		writeJSON(w, map[string]interface{}{"results": []map[string]string{{"resourceName": "customers/123/adGroups/5"}}})
	})
	a := newTestAdapter(t, mux)
	creds := platform.Credentials{AccessToken: "tok"}

	id, err := a.CreateCampaign(context.Background(), "123", creds, platform.CampaignSpec{
		Name: "AUTO_Retargeting_123", Type: campaign.TypeRetargeting, DailyBudget: 45,
	})
	require.NoError(t, err)
	assert.Equal(t, "9001", id)

	groupID, err := a.CreateAdSet(context.Background(), "123", creds, platform.AdSetSpec{
		CampaignID: id, Name: "AUTO_Retargeting_123_website_visitors", TargetingType: campaign.TargetingWebsiteVisitors,
	})
	require.NoError(t, err)
	assert.Equal(t, "5", groupID)
}

func TestAdapter_UpdateBudgetLooksUpBudget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v15/customers/123/googleAds:searchStream", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, decode(t, r)["query"], "campaign.id = 9001")
		writeJSON(w, []map[string]interface{}{{"results": []map[string]interface{}{{
			"campaign": map[string]string{"id": "9001", "campaignBudget": "customers/123/campaignBudgets/77"},
		}}}})
	})
	mux.HandleFunc("/v15/customers/123/campaignBudgets:mutate", func(w http.ResponseWriter, r *http.Request) {
		op := firstOp(decode(t, r))
		assert.Equal(t, "amount_micros", op["updateMask"])
		update := op["update"].(map[string]interface{})
		assert.Equal(t, "customers/123/campaignBudgets/77", update["resourceName"])
		assert.Equal(t, "120000000", update["amountMicros"])
		writeJSON(w, map[string]interface{}{"results": []map[string]string{{"resourceName": "customers/123/campaignBudgets/77"}}})
	})
	a := newTestAdapter(t, mux)

	err := a.UpdateBudget(context.Background(), platform.CampaignRef{AccountID: "123", CampaignID: "9001"}, platform.Credentials{AccessToken: "tok"}, 120)
	require.NoError(t, err)
}

func TestAdapter_UpdateStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v15/customers/123/campaigns:mutate", func(w http.ResponseWriter, r *http.Request) {
		op := firstOp(decode(t, r))
		assert.Equal(t, "status", op["updateMask"])
		update := op["update"].(map[string]interface{})
		assert.Equal(t, "customers/123/campaigns/9001", update["resourceName"])
		assert.Equal(t, "PAUSED", update["status"])
		writeJSON(w, map[string]interface{}{"results": []map[string]string{{"resourceName": "customers/123/campaigns/9001"}}})
	})
	a := newTestAdapter(t, mux)

	ref := platform.CampaignRef{AccountID: "123", CampaignID: "9001"}
	require.NoError(t, a.UpdateStatus(context.Background(), ref, platform.Credentials{AccessToken: "tok"}, campaign.StatusPaused))
	require.Error(t, a.UpdateStatus(context.Background(), ref, platform.Credentials{AccessToken: "tok"}, campaign.StatusDraft))
}

func TestAdapter_ExchangeOAuthCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "code-1", r.FormValue("code"))
		assert.Equal(t, "sys-client", r.FormValue("client_id"))
		writeJSON(w, map[string]interface{}{
			"access_token": "at", "refresh_token": "rt", "token_type": "Bearer", "expires_in": 3600,
		})
	})
	a := newTestAdapter(t, mux)

	tok, err := a.ExchangeOAuthCode(context.Background(), "code-1", "https://app.test/cb", platform.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)
	require.NotNil(t, tok.ExpiresAt)
	assert.True(t, tok.ExpiresAt.After(time.Now()))
}

func TestAdapter_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v15/customers:listAccessibleCustomers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Request had invalid authentication credentials.","status":"UNAUTHENTICATED"}}`))
	})
	a := newTestAdapter(t, mux)

	_, err := a.ListAccounts(context.Background(), platform.Credentials{AccessToken: "bad"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "UNAUTHENTICATED", apiErr.State)

	_, err = a.ListAccounts(context.Background(), platform.Credentials{})
	assert.Error(t, err)
}
