package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ad-autopilot/internal/domain/policy"
)

// Config 儲存排程服務、運維 API 及外部相依的執行設定。
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	DB         DBConfig         `yaml:"db"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
	Meta       MetaConfig       `yaml:"meta"`
	Google     GoogleConfig     `yaml:"google"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Automation AutomationConfig `yaml:"automation"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DBConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	MaxIdleTime  time.Duration `yaml:"max_idle_time"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	PlanTTL  time.Duration `yaml:"plan_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type MetaConfig struct {
	AppID       string `yaml:"app_id"`
	AppSecret   string `yaml:"app_secret"`
	RedirectURI string `yaml:"redirect_uri"`
	APIVersion  string `yaml:"api_version"`
	BaseURL     string `yaml:"base_url"`
}

type GoogleConfig struct {
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	DeveloperToken  string `yaml:"developer_token"`
	LoginCustomerID string `yaml:"login_customer_id"`
	RedirectURI     string `yaml:"redirect_uri"`
	APIVersion      string `yaml:"api_version"`
	BaseURL         string `yaml:"base_url"`
}

// BreakerConfig 為平台呼叫的斷路器與限流設定。
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
	Interval    time.Duration `yaml:"interval"`
	RatePerSec  float64       `yaml:"rate_per_sec"`
	Burst       int           `yaml:"burst"`
}

type NotifierConfig struct {
	Slack SlackConfig `yaml:"slack"`
	Email EmailConfig `yaml:"email"`
}

type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

type EmailConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Region          string   `yaml:"region"`
	AccessKeyID     string   `yaml:"access_key_id"`
	SecretAccessKey string   `yaml:"secret_access_key"`
	From            string   `yaml:"from"`
	To              []string `yaml:"to"`
}

type ThresholdsConfig struct {
	ROAS              float64 `yaml:"roas"`
	CPA               float64 `yaml:"cpa"`
	CTR               float64 `yaml:"ctr"`
	Frequency         float64 `yaml:"frequency"`
	BudgetIncreasePct float64 `yaml:"budget_increase_pct"`
	BudgetDecreasePct float64 `yaml:"budget_decrease_pct"`
	MinDailyBudget    float64 `yaml:"min_daily_budget"`
	PauseSpendGate    float64 `yaml:"pause_spend_gate"`
	AnomalyMultiplier float64 `yaml:"anomaly_multiplier"`
}

type AutomationConfig struct {
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Workers    int              `yaml:"workers"`
	Timezone   string           `yaml:"timezone"`
}

type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	SyncHour        int           `yaml:"sync_hour"`
	OptimizeHour    int           `yaml:"optimize_hour"`
	StrategyWeekday string        `yaml:"strategy_weekday"`
	StrategyHour    int           `yaml:"strategy_hour"`
	BudgetInterval  time.Duration `yaml:"budget_interval"`
}

// LoadFromFile 從 YAML 組態檔載入設定，檔案不存在時只使用預設值與環境變數。
func LoadFromFile(path string) (Config, error) {
	// 嘗試載入 .env 檔案（如果存在）
	_ = godotenv.Load()

	cfg := Config{Scheduler: SchedulerConfig{Enabled: true, SyncHour: -1, OptimizeHour: -1, StrategyHour: -1}}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg = applyDefaults(cfg)
	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg Config) Config {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 5
	}
	if cfg.DB.MaxIdleConns == 0 {
		cfg.DB.MaxIdleConns = 2
	}
	if cfg.DB.MaxIdleTime == 0 {
		cfg.DB.MaxIdleTime = 15 * time.Minute
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "adautopilot"
	}
	if cfg.Redis.PlanTTL == 0 {
		cfg.Redis.PlanTTL = 7 * 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Meta.APIVersion == "" {
		cfg.Meta.APIVersion = "v18.0"
	}
	if cfg.Meta.BaseURL == "" {
		cfg.Meta.BaseURL = "https://graph.facebook.com"
	}
	if cfg.Google.APIVersion == "" {
		cfg.Google.APIVersion = "v15"
	}
	if cfg.Google.BaseURL == "" {
		cfg.Google.BaseURL = "https://googleads.googleapis.com"
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Breaker.OpenTimeout == 0 {
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}
	if cfg.Breaker.Interval == 0 {
		cfg.Breaker.Interval = 60 * time.Second
	}
	if cfg.Breaker.RatePerSec == 0 {
		cfg.Breaker.RatePerSec = 5
	}
	if cfg.Breaker.Burst == 0 {
		cfg.Breaker.Burst = 10
	}
	if cfg.Notifier.Email.Region == "" {
		cfg.Notifier.Email.Region = "us-east-1"
	}
	if cfg.Automation.Workers <= 0 {
		cfg.Automation.Workers = 4
	}
	if cfg.Automation.Timezone == "" {
		cfg.Automation.Timezone = "UTC"
	}
	if cfg.Scheduler.SyncHour < 0 {
		cfg.Scheduler.SyncHour = 2
	}
	if cfg.Scheduler.OptimizeHour < 0 {
		cfg.Scheduler.OptimizeHour = 6
	}
	if cfg.Scheduler.StrategyWeekday == "" {
		cfg.Scheduler.StrategyWeekday = "monday"
	}
	if cfg.Scheduler.StrategyHour < 0 {
		cfg.Scheduler.StrategyHour = 3
	}
	if cfg.Scheduler.BudgetInterval == 0 {
		cfg.Scheduler.BudgetInterval = 4 * time.Hour
	}
	return cfg
}

func applyEnv(cfg Config) Config {
	if val := os.Getenv("HTTP_ADDR"); val != "" {
		cfg.HTTP.Addr = val
	}
	if val := os.Getenv("PORT"); val != "" {
		cfg.HTTP.Addr = ":" + val
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.DB.DSN = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("META_APP_ID"); val != "" {
		cfg.Meta.AppID = val
	}
	if val := os.Getenv("META_APP_SECRET"); val != "" {
		cfg.Meta.AppSecret = val
	}
	if val := os.Getenv("META_REDIRECT_URI"); val != "" {
		cfg.Meta.RedirectURI = val
	}
	if val := os.Getenv("GOOGLE_CLIENT_ID"); val != "" {
		cfg.Google.ClientID = val
	}
	if val := os.Getenv("GOOGLE_CLIENT_SECRET"); val != "" {
		cfg.Google.ClientSecret = val
	}
	if val := os.Getenv("GOOGLE_DEVELOPER_TOKEN"); val != "" {
		cfg.Google.DeveloperToken = val
	}
	if val := os.Getenv("GOOGLE_REDIRECT_URI"); val != "" {
		cfg.Google.RedirectURI = val
	}
	if val := os.Getenv("SLACK_WEBHOOK_URL"); val != "" {
		cfg.Notifier.Slack.WebhookURL = val
		cfg.Notifier.Slack.Enabled = true
	}
	if val := os.Getenv("AWS_REGION"); val != "" {
		cfg.Notifier.Email.Region = val
	}
	if val := os.Getenv("AWS_ACCESS_KEY_ID"); val != "" {
		cfg.Notifier.Email.AccessKeyID = val
	}
	if val := os.Getenv("AWS_SECRET_ACCESS_KEY"); val != "" {
		cfg.Notifier.Email.SecretAccessKey = val
	}
	if val := os.Getenv("ALERT_EMAIL_FROM"); val != "" {
		cfg.Notifier.Email.From = val
	}
	if val := os.Getenv("ALERT_EMAIL_TO"); val != "" {
		cfg.Notifier.Email.To = splitList(val)
		cfg.Notifier.Email.Enabled = true
	}
	if val := os.Getenv("SCHEDULER_ENABLED"); val != "" {
		cfg.Scheduler.Enabled = (val == "true")
	}
	if val := os.Getenv("ROAS_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Automation.Thresholds.ROAS = f
		}
	}
	if val := os.Getenv("CPA_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Automation.Thresholds.CPA = f
		}
	}
	return cfg
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate 檢查無法以預設值補齊的設定。
func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.StrategyWeekday(); err != nil {
		return err
	}
	for name, h := range map[string]int{
		"sync_hour":     c.Scheduler.SyncHour,
		"optimize_hour": c.Scheduler.OptimizeHour,
		"strategy_hour": c.Scheduler.StrategyHour,
	} {
		if h < 0 || h > 23 {
			return fmt.Errorf("scheduler.%s must be within [0, 23], got %d", name, h)
		}
	}
	return c.Thresholds().Validate()
}

// Thresholds 將組態轉為決策門檻，未設定的欄位使用預設值。
func (c Config) Thresholds() policy.Thresholds {
	t := c.Automation.Thresholds
	return policy.Thresholds{
		ROAS:              t.ROAS,
		CPA:               t.CPA,
		CTR:               t.CTR,
		Frequency:         t.Frequency,
		BudgetIncreasePct: t.BudgetIncreasePct,
		BudgetDecreasePct: t.BudgetDecreasePct,
		MinDailyBudget:    t.MinDailyBudget,
		PauseSpendGate:    t.PauseSpendGate,
		AnomalyMultiplier: t.AnomalyMultiplier,
	}.WithDefaults()
}

// Location 回傳排程使用的時區。
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Automation.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Automation.Timezone, err)
	}
	return loc, nil
}

// StrategyWeekday 解析策略重算的星期。
func (c Config) StrategyWeekday() (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(c.Scheduler.StrategyWeekday))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid scheduler.strategy_weekday %q", c.Scheduler.StrategyWeekday)
}
