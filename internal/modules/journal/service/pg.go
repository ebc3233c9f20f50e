package service

import (
	"context"
	"fmt"

	"divergence_bot/internal/models"
	"divergence_bot/pkg/db"
)

const createConfigChanges = `
CREATE TABLE IF NOT EXISTS config_changes (
	id         BIGSERIAL PRIMARY KEY,
	changed_at TIMESTAMPTZ      NOT NULL,
	field      TEXT             NOT NULL,
	old_value  DOUBLE PRECISION NOT NULL,
	new_value  DOUBLE PRECISION NOT NULL,
	source     TEXT             NOT NULL
)`

const insertConfigChange = `
INSERT INTO config_changes (changed_at, field, old_value, new_value, source)
VALUES ($1, $2, $3, $4, $5)`

const selectRecentChanges = `
SELECT changed_at, field, old_value, new_value, source
FROM config_changes
ORDER BY changed_at DESC, id DESC
LIMIT $1`

type store interface {
	db.TxManager
	Conn() db.Transaction
}

// PG: журнал в Postgres. Сигналы не пишутся, только изменения конфига.
type PG struct {
	db store
}

func NewPG(m store) *PG {
	return &PG{db: m}
}

func (j *PG) Migrate(ctx context.Context) error {
	if _, err := j.db.Conn().Exec(ctx, createConfigChanges); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

func (j *PG) Record(ctx context.Context, c models.ConfigChange) error {
	return j.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertConfigChange, c.ChangedAt, c.Field, c.OldValue, c.NewValue, c.Source)
		return err
	})
}

func (j *PG) Recent(ctx context.Context, limit int) ([]models.ConfigChange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Conn().Query(ctx, selectRecentChanges, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []models.ConfigChange
	for rows.Next() {
		var c models.ConfigChange
		if err := rows.Scan(&c.ChangedAt, &c.Field, &c.OldValue, &c.NewValue, &c.Source); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
