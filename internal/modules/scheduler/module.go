package scheduler

import (
	"context"

	"divergence_bot/internal/modules/command/service"
	"divergence_bot/internal/modules/config"
	scheduler "divergence_bot/internal/modules/scheduler/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("scheduler",
		fx.Provide(
			func(cfg *config.Config) scheduler.Config {
				return scheduler.Config{
					FetchTimeout: cfg.Price.Timeout,
					SendTimeout:  cfg.Telegram.SendTimeout,
				}
			},
			func(d *service.Dispatcher) scheduler.StatusSource { return d },
			scheduler.NewScheduler,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, s *scheduler.Scheduler) {
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						s.Start()
						return nil
					},
					OnStop: func(ctx context.Context) error {
						return s.Stop(ctx)
					},
				})
			},
		),
	)
}
