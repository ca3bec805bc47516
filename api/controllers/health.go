package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/repricer-backend/api/responses"
	"github.com/angelmondragon/repricer-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
)

const (
	envHeader          = "X-Repricer-Env"
	readinessTimeout   = 2 * time.Second
	readinessStatusOK  = "ok"
	readinessStatusBad = "unavailable"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each named dependency. Any failure turns the response into a 503 that
// still lists every check.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		failed := false
		for name, pinger := range checks {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				failed = true
				results[name] = readinessStatusBad
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				continue
			}
			results[name] = readinessStatusOK
		}

		if failed {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "not ready").
				WithDetails(map[string]any{"checks": results}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": results})
	}
}
