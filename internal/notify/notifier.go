package notify

import (
	"context"
	"time"

	"divergence_bot/internal/metrics"
	"divergence_bot/pkg/logger"
)

// Notifier доставляет уже отформатированный текст. Повторов нет.
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// Deliver: fire-and-forget с ограничением по времени: ошибка только логируется.
func Deliver(ctx context.Context, n Notifier, msg string, timeout time.Duration) {
	if n == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := n.Send(sendCtx, msg); err != nil {
		metrics.NotifyFailuresTotal.Inc()
		logger.Error("notify: delivery failed: %v", err)
	}
}

// Log: нотифайер без транспорта, всё пишет в лог.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (l *Log) Send(_ context.Context, msg string) error {
	logger.Info("ALERT\n%s", msg)
	return nil
}
