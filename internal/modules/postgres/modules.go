package postgres

import (
	"context"
	"fmt"
	"time"

	"divergence_bot/internal/modules/config"
	"divergence_bot/pkg/db"
	"divergence_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module: пул Postgres. Пустой DSN => nil-менеджер, журнал переходит в noop.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN:      cfg.DB,
					MaxConns: 4,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				m := db.NewPgTxManager(poolMaster)
				if err = m.Ping(ctx); err != nil {
					m.Close()
					return nil, err
				}

				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						logger.Info("postgres: closing pool")
						m.Close()
						return nil
					},
				})
				return m, nil
			},
		),
	)
}
