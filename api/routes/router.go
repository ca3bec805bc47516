package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/repricer-backend/api/controllers"
	"github.com/angelmondragon/repricer-backend/api/middleware"
	"github.com/angelmondragon/repricer-backend/internal/buybox"
	"github.com/angelmondragon/repricer-backend/internal/repricing"
	"github.com/angelmondragon/repricer-backend/internal/rules"
	"github.com/angelmondragon/repricer-backend/pkg/config"
	"github.com/angelmondragon/repricer-backend/pkg/db"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
)

type redisClient interface {
	Ping(ctx context.Context) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(parts ...string) string
}

type batchRunner interface {
	RunForOrganization(ctx context.Context, organizationID uuid.UUID) (repricing.BatchResult, error)
}

// Dependencies is everything the HTTP surface needs. Metrics defaults to the global
// Prometheus handler.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     redisClient
	BuyBox    buybox.Service
	Rules     rules.Service
	Repricing repricing.Service
	Batch     batchRunner
	Metrics   http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["database"] = deps.DB
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks))
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	runPolicy := middleware.NewRateLimitPolicy("repricing_run", cfg.RateLimit.RunWindow, cfg.RateLimit.RunLimit)
	var limiter middleware.RateLimitStore
	if deps.Redis != nil {
		limiter = deps.Redis
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Organization(logg))

		r.Route("/repricing", func(r chi.Router) {
			r.With(middleware.OrganizationRateLimit(runPolicy, limiter, logg)).Post("/run", controllers.RepricingRun(deps.Batch, logg))
			r.Route("/products/{productId}/marketplaces/{marketplaceId}", func(r chi.Router) {
				r.Post("/apply", controllers.RepricingApply(deps.Repricing, logg))
				r.Get("/adjustments", controllers.RepricingAdjustments(deps.Repricing, logg))
			})
		})

		r.Route("/buybox/products/{productId}/marketplaces/{marketplaceId}", func(r chi.Router) {
			r.Put("/", controllers.BuyBoxUpdate(deps.BuyBox, logg))
			r.Get("/", controllers.BuyBoxGet(deps.BuyBox, logg))
			r.Get("/history", controllers.BuyBoxHistory(deps.BuyBox, logg))
		})

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", controllers.RuleCreate(deps.Rules, logg))
			r.Get("/", controllers.RuleList(deps.Rules, logg))
			r.Get("/{ruleId}", controllers.RuleGet(deps.Rules, logg))
			r.Patch("/{ruleId}", controllers.RuleUpdate(deps.Rules, logg))
			r.Delete("/{ruleId}", controllers.RuleDelete(deps.Rules, logg))
		})
	})

	return r
}
