package divergence

import (
	"divergence_bot/internal/modules/config"
	"divergence_bot/internal/modules/divergence/service"

	"go.uber.org/fx"
)

// Module: ядро: живые Params, окна цен, калькулятор разрыва и автомат сигналов.
func Module() fx.Option {
	return fx.Module("divergence",
		fx.Provide(
			func(cfg *config.Config) (*service.ParamStore, error) {
				return service.NewParamStore(cfg.Engine)
			},
			// читатели видят только снимки
			func(s *service.ParamStore) service.ParamsSource {
				return s
			},
			service.NewWindow,
			service.NewGapCalculator,
			service.NewMachine,
		),
	)
}
