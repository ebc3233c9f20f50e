package price

import (
	"context"

	"divergence_bot/internal/modules/config"
	health "divergence_bot/internal/modules/health/service"
	"divergence_bot/internal/modules/price/service"
	"divergence_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module выбирает источник цен по price.source.
func Module() fx.Option {
	return fx.Module("price",
		fx.Provide(
			newClient,
		),
	)
}

func newClient(lc fx.Lifecycle, cfg *config.Config, state *health.State) service.Client {
	if cfg.Price.Source != config.PriceSourceOKX {
		logger.Info("[PRICE] source=variational url=%s%s", cfg.Price.BaseURL, cfg.Price.Endpoint)
		return service.NewVariational(cfg.Price)
	}

	stream := service.NewOKXStream(cfg.Price)
	state.SetStreamProbe(stream.Connected)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("[PRICE] source=okx ws=%s", cfg.Price.WSURL)
			go func() {
				defer close(done)
				stream.Run(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
	return stream
}
