package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ad-autopilot/internal/domain/alert"
)

const footer = "Ad Autopilot"

var levelEmoji = map[alert.Level]string{
	alert.LevelInfo:     "ℹ️",
	alert.LevelWarning:  "⚠️",
	alert.LevelCritical: "🚨",
}

// SlackClient 透過 incoming webhook 推送 attachment 訊息。
type SlackClient struct {
	webhookURL string
	httpClient *http.Client
}

func NewSlackClient(webhookURL string) *SlackClient {
	return &SlackClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SlackClient) Name() string { return "slack" }

// Send 將通知送到 webhook，顏色依嚴重程度決定。
func (c *SlackClient) Send(ctx context.Context, a alert.Alert) error {
	if c == nil {
		return fmt.Errorf("slack client is nil")
	}
	if c.webhookURL == "" {
		return fmt.Errorf("slack webhook url missing")
	}

	emoji, ok := levelEmoji[a.Level]
	if !ok {
		emoji = "📢"
	}
	payload := map[string]interface{}{
		"attachments": []map[string]string{{
			"color":  a.Level.Color(),
			"title":  fmt.Sprintf("%s %s", emoji, a.Title),
			"text":   a.Message,
			"footer": footer,
		}},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack send failed status=%d body=%s", resp.StatusCode, string(raw))
	}
	return nil
}
