package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"ad-autopilot/internal/domain/alert"
	"ad-autopilot/internal/infrastructure/config"
)

// sesAPI 為 EmailSender 使用的 SES 子集合。
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailSender 以 SES v2 寄送 HTML 告警信。
type EmailSender struct {
	api  sesAPI
	from string
	to   []string
}

// NewEmailSender 依設定建立 SES client；未設定金鑰時沿用預設憑證鏈。
func NewEmailSender(ctx context.Context, cfg config.EmailConfig) (*EmailSender, error) {
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("email sender requires from and to addresses")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newEmailSender(sesv2.NewFromConfig(awsCfg), cfg.From, cfg.To), nil
}

func newEmailSender(api sesAPI, from string, to []string) *EmailSender {
	return &EmailSender{api: api, from: from, to: to}
}

func (s *EmailSender) Name() string { return "email" }

func subject(a alert.Alert) string {
	return fmt.Sprintf("[%s %s] %s", footer, a.Level.Upper(), a.Title)
}

func htmlBody(a alert.Alert) string {
	titleColor := "#333"
	if a.Level == alert.LevelCritical {
		titleColor = a.Level.Color()
	}
	var b strings.Builder
	b.WriteString(`<html><body style="font-family: Arial, sans-serif; padding: 20px;">`)
	fmt.Fprintf(&b, `<h2 style="color: %s;">%s</h2>`, titleColor, html.EscapeString(a.Title))
	fmt.Fprintf(&b, `<p>%s</p>`, strings.ReplaceAll(html.EscapeString(a.Message), "\n", "<br>"))
	fmt.Fprintf(&b, `<hr><p style="color: #888; font-size: 12px;">%s | %s Alert</p>`, footer, a.Level.Upper())
	b.WriteString(`</body></html>`)
	return b.String()
}

// Send 寄出一封信給所有收件人。
func (s *EmailSender) Send(ctx context.Context, a alert.Alert) error {
	if s == nil || s.api == nil {
		return fmt.Errorf("email sender is nil")
	}
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: s.to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject(a)), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody(a)), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if _, err := s.api.SendEmail(ctx, in); err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
