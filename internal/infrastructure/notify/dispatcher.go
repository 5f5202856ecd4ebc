package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ad-autopilot/internal"
	"ad-autopilot/internal/application/budget"
	"ad-autopilot/internal/domain/alert"
)

// Channel 是單一通知通道。
type Channel interface {
	Name() string
	Send(ctx context.Context, a alert.Alert) error
}

// Observer 記錄每個通道的送出結果。
type Observer interface {
	ObserveAlert(channel, level string, err error)
}

// Dispatcher 將通知依序送往所有通道；任何通道失敗只記錄不回傳。
type Dispatcher struct {
	channels []Channel
	obs      Observer
	log      zerolog.Logger
	now      func() time.Time
	timeout  time.Duration
}

var _ budget.Notifier = (*Dispatcher)(nil)

// NewDispatcher 建立 Dispatcher；沒有通道時只寫日誌。
func NewDispatcher(log zerolog.Logger, obs Observer, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		obs:      obs,
		log:      log.With().Str("component", "notifier").Logger(),
		now:      time.Now,
		timeout:  15 * time.Second,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, title, message string, level alert.Level) {
	a := alert.Alert{Title: title, Message: message, Level: level, SentAt: d.now()}
	d.log.Info().Str("level", string(level)).Str("title", title).Msg("alert")

	for _, ch := range d.channels {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := ch.Send(sendCtx, a)
		cancel()
		if err != nil {
			d.log.Error().Err(err).Str("channel", ch.Name()).Str("title", title).Msg("alert delivery failed")
		}
		if !internal.IsNil(d.obs) {
			d.obs.ObserveAlert(ch.Name(), string(level), err)
		}
	}
}
