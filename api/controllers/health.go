package controllers

import (
	"context"
	"net/http"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/responses"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
)

const envHeader = "X-EventMonitor-Env"

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness by probing each wired dependency. Any failing
// probe flips the response to 503 so schedulers stop routing traffic here.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, redis pinger) http.HandlerFunc {
	probes := []struct {
		name   string
		pinger pinger
	}{
		{name: "database", pinger: db},
		{name: "redis", pinger: redis},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		status := map[string]string{}
		ready := true
		for _, probe := range probes {
			if probe.pinger == nil {
				continue
			}
			if err := probe.pinger.Ping(r.Context()); err != nil {
				ready = false
				status[probe.name] = "unavailable"
				if logg != nil {
					logg.Error(logg.WithField(r.Context(), "dependency", probe.name), "readiness probe failed", err)
				}
				continue
			}
			status[probe.name] = "ok"
		}

		if !ready {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, status)
			return
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
