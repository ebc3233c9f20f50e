package bootstrap

import (
	"context"

	bootstrap "divergence_bot/internal/modules/bootstrap/service"
	"divergence_bot/internal/modules/config"
	divergence "divergence_bot/internal/modules/divergence/service"
	price "divergence_bot/internal/modules/price/service"
	"divergence_bot/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(cfg *config.Config, p price.Client, n notify.Notifier, params divergence.ParamsSource) *bootstrap.Announcer {
				return bootstrap.NewAnnouncer(p, n, params, cfg.Price.Timeout, cfg.Telegram.SendTimeout)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, a *bootstrap.Announcer) {
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					// не блокируем старт приложения сетью
					go a.Announce(runCtx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
