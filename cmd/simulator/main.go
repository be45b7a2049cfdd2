package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/simulator"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "simulator"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "simulator"

	logg = logger.New(logger.Options{
		ServiceName: "simulator",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	telemetryPublisher := pubsubClient.TelemetryPublisher()
	if telemetryPublisher == nil {
		requireResource(ctx, logg, "telemetry publisher", errors.New("telemetry topic not configured"))
	}

	spool, err := simulator.NewSpool(cfg.Simulator.SpoolPath)
	requireResource(ctx, logg, "spool", err)

	service, err := simulator.NewService(simulator.ServiceParams{
		Config:    cfg.Simulator,
		Logger:    logg,
		Publisher: telemetryPublisher,
		Spool:     spool,
	})
	requireResource(ctx, logg, "simulator service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"device_id":   cfg.Simulator.DeviceID,
	})
	logg.Info(runCtx, "simulator ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "simulator failed", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "simulator shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
