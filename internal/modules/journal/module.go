package journal

import (
	"context"
	"time"

	command "divergence_bot/internal/modules/command/service"
	"divergence_bot/internal/modules/journal/service"
	"divergence_bot/pkg/db"
	"divergence_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module: журнал изменений конфига. Без Postgres пишет в никуда.
func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			newJournal,
			func(j service.Journal) command.Journal { return j },
		),
	)
}

func newJournal(lc fx.Lifecycle, m *db.PgTxManager) service.Journal {
	if m == nil {
		logger.Info("journal: postgres not configured, config changes are not persisted")
		return service.Noop{}
	}

	j := service.NewPG(m)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return j.Migrate(ctx)
		},
	})
	return j
}
