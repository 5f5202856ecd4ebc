package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ad-autopilot/internal/application/accounts"
	"ad-autopilot/internal/application/automation"
	"ad-autopilot/internal/application/budget"
	"ad-autopilot/internal/application/collector"
	"ad-autopilot/internal/application/creator"
	"ad-autopilot/internal/application/optimizer"
	"ad-autopilot/internal/application/platform"
	"ad-autopilot/internal/application/repository"
	"ad-autopilot/internal/application/scheduler"
	"ad-autopilot/internal/application/strategy"
	"ad-autopilot/internal/infra/memory"
	"ad-autopilot/internal/infrastructure/cache"
	"ad-autopilot/internal/infrastructure/config"
	"ad-autopilot/internal/infrastructure/db"
	"ad-autopilot/internal/infrastructure/external/google"
	"ad-autopilot/internal/infrastructure/external/guard"
	"ad-autopilot/internal/infrastructure/external/meta"
	"ad-autopilot/internal/infrastructure/logging"
	"ad-autopilot/internal/infrastructure/metrics"
	"ad-autopilot/internal/infrastructure/notify"
	"ad-autopilot/internal/infrastructure/persistence/postgres"
	httpapi "ad-autopilot/internal/interface/http"
)

// app 持有一次程序執行所需的所有元件。
type app struct {
	cfg        config.Config
	log        zerolog.Logger
	store      repository.Store
	storeKind  string
	metrics    *metrics.Registry
	adapters   *platform.Registry
	engine     *strategy.Engine
	automation *automation.Service
	connector  *accounts.Connector
	scheduler  *scheduler.Scheduler

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// storage 連線 PostgreSQL 與 Redis；未設定或連線失敗時退回記憶體實作。
func (a *app) storage(ctx context.Context) strategy.PlanCache {
	sqlDB, err := db.Connect(ctx, a.cfg.DB)
	switch {
	case err != nil:
		a.log.Warn().Err(err).Msg("database connection failed, falling back to in-memory store")
	case sqlDB == nil:
		a.log.Info().Msg("no DB_DSN provided, running with in-memory store")
	default:
		a.closers = append(a.closers, func() { sqlDB.Close() })
		a.store = postgres.NewStore(sqlDB)
		a.storeKind = "postgres"
	}
	if a.store == nil {
		a.store = memory.NewStore()
		a.storeKind = "memory"
	}

	rdb, err := db.ConnectRedis(ctx, a.cfg.Redis)
	switch {
	case err != nil:
		a.log.Warn().Err(err).Msg("redis connection failed, caching plans in memory")
	case rdb != nil:
		a.closers = append(a.closers, func() { rdb.Close() })
		return cache.NewPlanCache(rdb, a.cfg.Redis.Prefix, a.cfg.Redis.PlanTTL)
	}
	return memory.NewPlanCache()
}

func (a *app) notifier(ctx context.Context) *notify.Dispatcher {
	var channels []notify.Channel
	if a.cfg.Notifier.Slack.Enabled && a.cfg.Notifier.Slack.WebhookURL != "" {
		channels = append(channels, notify.NewSlackClient(a.cfg.Notifier.Slack.WebhookURL))
	}
	if a.cfg.Notifier.Email.Enabled {
		sender, err := notify.NewEmailSender(ctx, a.cfg.Notifier.Email)
		if err != nil {
			a.log.Warn().Err(err).Msg("email alerts disabled")
		} else {
			channels = append(channels, sender)
		}
	}
	return notify.NewDispatcher(a.log, a.metrics, channels...)
}

// newApp 載入設定並組裝所有元件。
func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	a := &app{cfg: cfg, log: log.Logger, metrics: metrics.NewRegistry()}
	planCache := a.storage(ctx)

	a.adapters = platform.NewRegistry(
		meta.NewAdapter(meta.NewClient(cfg.Meta, guard.New("meta", cfg.Breaker, a.metrics))),
		google.NewAdapter(google.NewClient(cfg.Google, guard.New("google", cfg.Breaker, a.metrics))),
	)

	th := cfg.Thresholds()
	workers := cfg.Automation.Workers
	a.engine = strategy.NewEngine(a.store, th, workers).WithCache(planCache)
	a.automation = automation.NewService(a.store, a.engine, creator.NewCreator(a.store, a.adapters))
	a.connector = accounts.NewConnector(a.store, a.adapters)

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}
	weekday, err := cfg.StrategyWeekday()
	if err != nil {
		a.Close()
		return nil, err
	}
	sch := scheduler.Schedule{
		Location:        loc,
		SyncHour:        cfg.Scheduler.SyncHour,
		OptimizeHour:    cfg.Scheduler.OptimizeHour,
		StrategyWeekday: weekday,
		StrategyHour:    cfg.Scheduler.StrategyHour,
		BudgetInterval:  cfg.Scheduler.BudgetInterval,
	}
	a.scheduler = scheduler.New(a.metrics, scheduler.StandardJobs(sch, scheduler.Components{
		Collector: collector.NewCollector(a.store, a.adapters, workers),
		Optimizer: optimizer.NewOptimizer(a.store, a.adapters, th, workers),
		Strategy:  a.engine,
		Budget:    budget.NewManager(a.store, a.adapters, a.notifier(ctx), th, workers),
	})...)
	return a, nil
}

func (a *app) httpServer() *httpapi.Server {
	return httpapi.NewServer(httpapi.Deps{
		Store:      a.store,
		StoreKind:  a.storeKind,
		Jobs:       a.scheduler,
		Automation: a.automation,
		Plans:      a.engine,
		Metrics:    a.metrics.Handler(),
		Log:        a.log,
	})
}
