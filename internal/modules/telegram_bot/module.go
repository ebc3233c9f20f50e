package telegram

import (
	"context"

	command "divergence_bot/internal/modules/command/service"
	"divergence_bot/internal/modules/config"
	"divergence_bot/internal/modules/telegram_bot/service"
	"divergence_bot/internal/notify"
	"divergence_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module: нотифайер. Без токена или chat id алерты уходят в лог.
func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			func(d *command.Dispatcher) service.Handler { return d },
			newNotifier,
		),
	)
}

func newNotifier(lc fx.Lifecycle, cfg *config.Config, h service.Handler) (notify.Notifier, error) {
	if !cfg.TelegramEnabled() {
		logger.Warn("telegram: token or chat id missing, alerts go to the log and commands are disabled")
		return notify.NewLog(), nil
	}

	t, err := service.NewTelegram(cfg, h)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			t.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			t.Stop()
			return nil
		},
	})
	return t, nil
}
