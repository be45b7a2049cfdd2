package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/monitor"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/query"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/roles"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/bigquery"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/metrics"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/migrate"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "monitor"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "monitor"

	logg = logger.New(logger.Options{
		ServiceName: "monitor",
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

	journalMetrics := metrics.NewJournalMetrics(prometheus.DefaultRegisterer)

	journalRepo := journal.NewRepository(dbClient.DB())
	journalService, err := journal.NewService(journalRepo, journalMetrics)
	requireResource(ctx, logg, "journal service", err)

	gate, err := roles.NewGate(roles.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "authorization gate", err)

	queryService, err := query.NewService(gate, journalService, journalMetrics)
	requireResource(ctx, logg, "query service", err)

	logSink, err := monitor.NewFileLogSink(cfg.Monitor.LogPath, cfg.Monitor.SourceTag)
	requireResource(ctx, logg, "change log sink", err)
	defer func() {
		if err := logSink.Close(); err != nil {
			logg.Error(ctx, "error closing change log sink", err)
		}
	}()

	sinks := []monitor.Sink{logSink}

	if cfg.BigQuery.Export {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		requireResource(ctx, logg, "bigquery client", err)
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "error closing bigquery client", err)
			}
		}()

		bqSink, err := monitor.NewBigQuerySink(bqClient, cfg.BigQuery.JournalTable)
		requireResource(ctx, logg, "bigquery sink", err)
		sinks = append(sinks, bqSink)
	}

	service, err := monitor.NewService(monitor.ServiceParams{
		Config:  cfg.Monitor,
		Logger:  logg,
		Query:   queryService,
		Cursors: redisClient,
		Sinks:   sinks,
		Metrics: journalMetrics,
	})
	requireResource(ctx, logg, "monitor service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"source_tag":  cfg.Monitor.SourceTag,
	})
	logg.Info(runCtx, "monitor ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "monitor failed", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "monitor shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
