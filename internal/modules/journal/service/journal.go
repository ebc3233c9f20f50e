package service

import (
	"context"

	"divergence_bot/internal/models"
)

// Journal: история принятых изменений параметров.
type Journal interface {
	Record(ctx context.Context, c models.ConfigChange) error
	Recent(ctx context.Context, limit int) ([]models.ConfigChange, error)
}

// Noop: журнал без хранилища (DSN не задан).
type Noop struct{}

func (Noop) Record(context.Context, models.ConfigChange) error { return nil }

func (Noop) Recent(context.Context, int) ([]models.ConfigChange, error) { return nil, nil }
