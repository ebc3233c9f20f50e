package config

import "go.uber.org/fx"

// Module отдаёт уже загруженный конфиг: он нужен раньше контейнера (уровень логов, трейсер).
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
	)
}
