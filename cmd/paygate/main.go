package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/c50bossio/6fb-booking-sub001/internal/app"
	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(app.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting payment gateway service",
		slog.String("environment", config.DetectEnvironment(cfg.Environment).String()),
		slog.Int("http_port", cfg.HTTPPort),
		slog.Bool("fake_gateways", cfg.UseFakeGateways),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run application: %w", err)
	}

	log.Info("payment gateway service stopped")
	return nil
}
