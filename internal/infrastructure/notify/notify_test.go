package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"

	"ad-autopilot/internal/domain/alert"
)

func TestSlackClient_Send(t *testing.T) {
	t.Run("nil_client", func(t *testing.T) {
		var c *SlackClient
		err := c.Send(context.Background(), alert.Alert{Title: "t"})
		if err == nil || err.Error() != "slack client is nil" {
			t.Errorf("expected nil client error, got %v", err)
		}
	})

	t.Run("missing_config", func(t *testing.T) {
		c := NewSlackClient("")
		err := c.Send(context.Background(), alert.Alert{Title: "t"})
		if err == nil || err.Error() != "slack webhook url missing" {
			t.Error("expected missing config error")
		}
	})

	t.Run("success", func(t *testing.T) {
		var got struct {
			Attachments []map[string]string `json:"attachments"`
		}
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}))
		defer ts.Close()

		c := NewSlackClient(ts.URL)
		err := c.Send(context.Background(), alert.Alert{Title: "Budget Critical", Message: "95% used", Level: alert.LevelCritical})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Attachments) != 1 {
			t.Fatalf("expected one attachment, got %d", len(got.Attachments))
		}
		att := got.Attachments[0]
		if att["color"] != "#ff0000" || att["footer"] != "Ad Autopilot" || att["text"] != "95% used" {
			t.Errorf("unexpected attachment: %+v", att)
		}
		if !strings.HasSuffix(att["title"], "Budget Critical") {
			t.Errorf("unexpected title %q", att["title"])
		}
	})

	t.Run("server_error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("no_service"))
		}))
		defer ts.Close()

		c := NewSlackClient(ts.URL)
		if err := c.Send(context.Background(), alert.Alert{Title: "t"}); err == nil {
			t.Error("expected error for 404 status")
		}
	})
}

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestEmailSender_Send(t *testing.T) {
	api := &fakeSES{}
	s := newEmailSender(api, "alerts@example.com", []string{"ops@example.com", "growth@example.com"})

	err := s.Send(context.Background(), alert.Alert{Title: "Pacing <high>", Message: "line1\nline2", Level: alert.LevelWarning})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.inputs) != 1 {
		t.Fatalf("expected one send, got %d", len(api.inputs))
	}
	in := api.inputs[0]
	if got := aws.ToString(in.Content.Simple.Subject.Data); got != "[Ad Autopilot WARNING] Pacing <high>" {
		t.Errorf("unexpected subject %q", got)
	}
	if len(in.Destination.ToAddresses) != 2 || aws.ToString(in.FromEmailAddress) != "alerts@example.com" {
		t.Errorf("unexpected addressing: %+v", in.Destination)
	}
	body := aws.ToString(in.Content.Simple.Body.Html.Data)
	if !strings.Contains(body, "Pacing &lt;high&gt;") || !strings.Contains(body, "line1<br>line2") {
		t.Errorf("unexpected body %s", body)
	}
	if !strings.Contains(body, "WARNING Alert") {
		t.Errorf("missing footer in body %s", body)
	}

	api.err = errors.New("throttled")
	if err := s.Send(context.Background(), alert.Alert{Title: "t"}); err == nil {
		t.Error("expected ses error")
	}
}

func TestEmailSender_CriticalTitleColor(t *testing.T) {
	body := htmlBody(alert.Alert{Title: "x", Level: alert.LevelCritical})
	if !strings.Contains(body, "color: #ff0000;") {
		t.Errorf("critical alerts should use red title: %s", body)
	}
}

type fakeChannel struct {
	name string
	err  error
	got  []alert.Alert
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, a alert.Alert) error {
	f.got = append(f.got, a)
	return f.err
}

type fakeObserver struct {
	results map[string]error
}

func (f *fakeObserver) ObserveAlert(channel, level string, err error) {
	f.results[channel+"/"+level] = err
}

func TestDispatcher_NotifyFansOutAndSwallowsErrors(t *testing.T) {
	slack := &fakeChannel{name: "slack", err: errors.New("webhook down")}
	email := &fakeChannel{name: "email"}
	obs := &fakeObserver{results: map[string]error{}}
	d := NewDispatcher(zerolog.Nop(), obs, slack, email)

	d.Notify(context.Background(), "Budget Alert", "80% used", alert.LevelWarning)

	if len(slack.got) != 1 || len(email.got) != 1 {
		t.Fatalf("expected every channel to be tried, got slack=%d email=%d", len(slack.got), len(email.got))
	}
	if email.got[0].Title != "Budget Alert" || email.got[0].Level != alert.LevelWarning {
		t.Errorf("unexpected alert %+v", email.got[0])
	}
	if obs.results["slack/warning"] == nil {
		t.Error("slack failure should be observed")
	}
	if err, ok := obs.results["email/warning"]; !ok || err != nil {
		t.Errorf("email success should be observed, got %v", err)
	}
}

func TestDispatcher_NoChannels(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), nil)
	d.Notify(context.Background(), "t", "m", alert.LevelInfo)
}

func TestDispatcher_TypedNilObserver(t *testing.T) {
	var obs *fakeObserver
	ch := &fakeChannel{name: "slack"}
	d := NewDispatcher(zerolog.Nop(), obs, ch)

	d.Notify(context.Background(), "t", "m", alert.LevelCritical)

	if len(ch.got) != 1 {
		t.Fatalf("expected delivery, got %d", len(ch.got))
	}
}
