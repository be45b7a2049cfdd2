package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/controllers"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/middleware"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/ingest"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/query"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/roles"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	gate middleware.OperationChecker,
	ingestService ingest.Service,
	queryService query.Service,
	rolesService roles.Service,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Dev-only token mint. Tokens only name a user; permissions stay with the
	// role registry, so this never escalates anything in shared environments.
	if !cfg.App.IsProd() {
		r.Post("/api/dev/v1/tokens", controllers.MintDevToken(cfg.JWT, logg))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", controllers.PublishEvent(ingestService, logg))
			r.Get("/", controllers.ListEvents(queryService, logg))
			r.Get("/{eventType}/{messageID}", controllers.GetEvent(queryService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireOperation(gate, enums.OperationAdminister, logg))

		r.Route("/roles", func(r chi.Router) {
			r.Get("/", controllers.ListRoles(rolesService, logg))
			r.Put("/{username}", controllers.AssignRole(rolesService, logg))
			r.Get("/{username}", controllers.GetRole(rolesService, logg))
			r.Delete("/{username}", controllers.RemoveRole(rolesService, logg))
		})
	})

	return r
}
