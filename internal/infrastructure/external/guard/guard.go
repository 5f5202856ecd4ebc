package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"ad-autopilot/internal"
	"ad-autopilot/internal/infrastructure/config"
)

// ErrOpen 表示斷路器開啟中，呼叫未送出。
var ErrOpen = errors.New("circuit breaker open")

// Observer 接收呼叫結果與斷路器狀態。
type Observer interface {
	ObserveCall(platform, operation string, err error)
	SetBreakerState(platform string, state float64)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 標記不應計入斷路器失敗的錯誤，例如 4xx 回應。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Guard 以斷路器與 token bucket 保護單一平台的所有遠端呼叫。
type Guard struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	obs     Observer
	log     zerolog.Logger
}

// New 建立 Guard；obs 可為 nil。
func New(name string, cfg config.BreakerConfig, obs Observer) *Guard {
	g := &Guard{
		name: name,
		obs:  obs,
		log:  log.With().Str("component", "guard").Str("platform", name).Logger(),
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	st := gobreaker.Settings{
		Name:     name,
		Interval: cfg.Interval,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			var p *permanentError
			return err == nil || errors.As(err, &p) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			g.setState(to)
		},
	}
	g.cb = gobreaker.NewCircuitBreaker(st)

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	g.limiter = rate.NewLimiter(limit, burst)
	g.setState(gobreaker.StateClosed)
	return g
}

func (g *Guard) setState(s gobreaker.State) {
	if internal.IsNil(g.obs) {
		return
	}
	var v float64
	switch s {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	g.obs.SetBreakerState(g.name, v)
}

// Do 等待限流額度後在斷路器內執行 fn。
func (g *Guard) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	err := g.do(ctx, fn)
	if !internal.IsNil(g.obs) {
		g.obs.ObserveCall(g.name, operation, err)
	}
	return err
}

func (g *Guard) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", g.name, err)
	}
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", g.name, ErrOpen)
	}
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

// State 回傳目前斷路器狀態。
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}
