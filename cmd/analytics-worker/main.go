package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/repricer-backend/internal/analytics/router"
	"github.com/angelmondragon/repricer-backend/internal/analytics/worker"
	"github.com/angelmondragon/repricer-backend/internal/analytics/writer"
	"github.com/angelmondragon/repricer-backend/internal/bootstrap"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
	"github.com/angelmondragon/repricer-backend/pkg/outbox/idempotency"
)

func main() {
	rt := bootstrap.Start("analytics-worker")
	defer rt.Close()
	ctx := context.Background()
	cfg := rt.Config

	redisClient := rt.Redis(ctx)
	pubsubClient := rt.PubSub(ctx)
	rt.Require(ctx, "analytics subscription", pubsubClient.EnsureSubscription(ctx, cfg.PubSub.AnalyticsSubscription))
	bqClient := rt.BigQuery(ctx)

	manager, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	rt.Require(ctx, "idempotency manager", err)

	pricingWriter, err := writer.New(bqClient, writer.Config{
		PricingTable: cfg.BigQuery.PricingEventsTable,
		BatchSize:    cfg.BigQuery.BatchSize,
	})
	rt.Require(ctx, "analytics bigquery writer", err)
	// Registered after the clients so buffered rows flush before bigquery closes.
	rt.OnClose("analytics writer", func() error {
		return pricingWriter.Flush(context.Background())
	})

	routingHandler, err := router.NewRouter(pricingWriter, rt.Logger, nil)
	rt.Require(ctx, "analytics router", err)

	service, err := worker.NewService(worker.ServiceParams{
		Subscription: pubsubClient.AnalyticsSubscription(),
		Handler:      routingHandler,
		Idempotency:  manager,
		Logger:       rt.Logger,
		Metrics:      metrics.NewAnalyticsMetrics(prometheus.DefaultRegisterer),
	})
	rt.Require(ctx, "analytics worker service", err)

	runCtx, stop := rt.SignalContext(map[string]any{"subscription": cfg.PubSub.AnalyticsSubscription})
	defer stop()
	rt.ServeMetrics(runCtx)
	rt.Logger.Info(runCtx, "analytics worker ready")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fail(runCtx, "analytics worker failed", err)
	}
	rt.Logger.Info(runCtx, "analytics worker stopped")
}
