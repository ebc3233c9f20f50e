package command

import (
	"divergence_bot/internal/modules/command/service"

	"go.uber.org/fx"
)

// Module: разбор и исполнение команд оператора. Journal приходит из модуля journal.
func Module() fx.Option {
	return fx.Module("command",
		fx.Provide(
			service.NewDispatcher,
		),
	)
}
