package main

import (
	"context"
	"log"
	"os"
	"time"

	"divergence_bot/internal/modules/bootstrap"
	"divergence_bot/internal/modules/command"
	"divergence_bot/internal/modules/config"
	"divergence_bot/internal/modules/divergence"
	"divergence_bot/internal/modules/health"
	"divergence_bot/internal/modules/journal"
	"divergence_bot/internal/modules/postgres"
	"divergence_bot/internal/modules/price"
	"divergence_bot/internal/modules/scheduler"
	telegram "divergence_bot/internal/modules/telegram_bot"
	"divergence_bot/pkg/logger"
	"divergence_bot/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger.SetServiceName(cfg.Service.Name)
	zl, err := logger.Init(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	tracing.SetServiceName(cfg.Service.Name)
	_, closeTracer, err := tracing.InitTracer(tracing.Config{Host: cfg.Jaeger.Host, Port: cfg.Jaeger.Port})
	if err != nil {
		logger.Fatal("init tracer: %v", err)
	}
	defer closeTracer()

	app := fx.New(options(cfg, zl)...)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		logger.Error("start: %v", err)
		os.Exit(1)
	}
	logger.Info("divergence bot started")

	sig := <-app.Done()
	logger.Info("shutting down on %s", sig)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Error("stop: %v", err)
	}
}

func options(cfg *config.Config, zl *zap.Logger) []fx.Option {
	return []fx.Option{
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zl.WithOptions(zap.AddCallerSkip(-1), zap.IncreaseLevel(zap.WarnLevel))}
		}),
		fx.StopTimeout(30 * time.Second),
		config.Module(cfg),
		postgres.Module(),
		journal.Module(),
		divergence.Module(),
		command.Module(),
		health.Module(),
		price.Module(),
		telegram.Module(),
		scheduler.Module(),
		bootstrap.Module(),
	}
}
