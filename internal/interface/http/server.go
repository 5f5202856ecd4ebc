package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ad-autopilot/internal/application/automation"
	"ad-autopilot/internal/application/scheduler"
	"ad-autopilot/internal/domain/optimization"
	"ad-autopilot/internal/domain/strategy"
)

// Pinger 檢查資料層連線。
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobRunner 為排程器對外提供的操作。
type JobRunner interface {
	Jobs() []scheduler.JobInfo
	History(limit int) []scheduler.Run
	RunNow(ctx context.Context, name, triggeredBy string) (scheduler.Run, error)
}

// AutomationReader 查詢客戶自動化狀態與稽核紀錄。
type AutomationReader interface {
	Status(ctx context.Context, clientID string) (automation.StatusView, error)
	Logs(ctx context.Context, clientID string, limit, offset int) ([]optimization.Log, error)
}

// PlanReader 讀取最近一次產生的策略計畫。
type PlanReader interface {
	CachedPlan(ctx context.Context, clientID string) (strategy.Plan, bool, error)
}

// Deps 為運維 API 的相依元件；Metrics 為 nil 時不掛 /metrics。
type Deps struct {
	Store      Pinger
	StoreKind  string
	Jobs       JobRunner
	Automation AutomationReader
	Plans      PlanReader
	Metrics    http.Handler
	Log        zerolog.Logger
}

// Server 封裝運維 HTTP 路由與依賴。
type Server struct {
	deps    Deps
	log     zerolog.Logger
	handler http.Handler
	now     func() time.Time
}

// NewServer 建立運維 API 伺服器。
func NewServer(deps Deps) *Server {
	s := &Server{
		deps: deps,
		log:  deps.Log.With().Str("component", "http").Logger(),
		now:  time.Now,
	}
	s.handler = s.routes()
	return s
}

// Handler 回傳完整的 http.Handler，供測試或外部伺服器使用。
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe 啟動伺服器，ctx 結束時優雅關閉。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("ops api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info().Msg("ops api shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
