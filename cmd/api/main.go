package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/app"
	"github.com/riskibarqy/football-scoreboard/internal/config"
	"github.com/riskibarqy/football-scoreboard/internal/observability"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Sample: cfg.AppEnv == config.EnvProd,
		Fields: []any{"service", cfg.ServiceName, "env", cfg.AppEnv, "version", cfg.ServiceVersion},
	})
	logging.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("scoreboard stopped with error", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg config.Config, logger *logging.Logger) error {
	telemetry, err := observability.Setup(cfg, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	application, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}
