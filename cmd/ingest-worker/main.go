package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/consumers/telemetry"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/ingest"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/roles"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/guard"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/metrics"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/migrate"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/pubsub"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "ingest-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "ingest-worker"

	logg = logger.New(logger.Options{
		ServiceName: "ingest-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	subscription := pubsubClient.TelemetrySubscription()
	if subscription == nil {
		requireResource(ctx, logg, "telemetry subscription", errors.New("subscription not configured"))
	}

	deliveryGuard, err := guard.NewManager(redisClient, cfg.Guard.ProcessedTTL)
	requireResource(ctx, logg, "delivery guard", err)

	journalMetrics := metrics.NewJournalMetrics(prometheus.DefaultRegisterer)

	journalRepo := journal.NewRepository(dbClient.DB())
	journalService, err := journal.NewService(journalRepo, journalMetrics)
	requireResource(ctx, logg, "journal service", err)

	gate, err := roles.NewGate(roles.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "authorization gate", err)

	ingestService, err := ingest.NewService(gate, journalService, journalMetrics)
	requireResource(ctx, logg, "ingestion service", err)

	service, err := telemetry.NewService(subscription, ingestService, deliveryGuard, logg)
	requireResource(ctx, logg, "telemetry consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "ingest worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "ingest worker failed", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "ingest worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
