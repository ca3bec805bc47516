package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/repricer-backend/internal/bootstrap"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
	"github.com/angelmondragon/repricer-backend/pkg/outbox"
	"github.com/angelmondragon/repricer-backend/pkg/outbox/registry"
)

func main() {
	rt := bootstrap.Start("outbox-publisher")
	defer rt.Close()
	ctx := context.Background()

	dbClient := rt.Database(ctx)
	pubsubClient := rt.PubSub(ctx)

	eventRegistry, err := registry.NewEventRegistry(rt.Config.PubSub)
	rt.Require(ctx, "event registry", err)

	service, err := NewService(ServiceParams{
		Config:        rt.Config.Outbox,
		Logger:        rt.Logger,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Registry:      eventRegistry,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	rt.Require(ctx, "outbox publisher", err)

	runCtx, stop := rt.SignalContext(map[string]any{"topics": eventRegistry.Topics()})
	defer stop()
	rt.ServeMetrics(runCtx)
	rt.Logger.Info(runCtx, "starting outbox publisher")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fail(runCtx, "outbox publisher stopped unexpectedly", err)
	}
	rt.Logger.Info(runCtx, "outbox publisher shutting down gracefully")
}
