package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/routes"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/ingest"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/query"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/roles"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/metrics"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/migrate"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	journalMetrics := metrics.NewJournalMetrics(registry)

	journalRepo := journal.NewRepository(dbClient.DB())
	journalService, err := journal.NewService(journalRepo, journalMetrics)
	requireResource(ctx, logg, "journal service", err)

	rolesRepo := roles.NewRepository(dbClient.DB())
	rolesService, err := roles.NewService(rolesRepo)
	requireResource(ctx, logg, "roles service", err)

	gate, err := roles.NewGate(rolesRepo)
	requireResource(ctx, logg, "authorization gate", err)

	ingestService, err := ingest.NewService(gate, journalService, journalMetrics)
	requireResource(ctx, logg, "ingestion service", err)

	queryService, err := query.NewService(gate, journalService, journalMetrics)
	requireResource(ctx, logg, "query service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gate,
			ingestService,
			queryService,
			rolesService,
			registry,
		),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(runCtx, "api server shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
