package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/repricer-backend/api"
	"github.com/angelmondragon/repricer-backend/api/routes"
	"github.com/angelmondragon/repricer-backend/internal/bootstrap"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
)

func main() {
	rt := bootstrap.Start("api")
	defer rt.Close()
	ctx := context.Background()

	dbClient := rt.Database(ctx)
	redisClient := rt.Redis(ctx)

	services, err := bootstrap.NewServices(rt.Config.Repricing, rt.Logger, dbClient, prometheus.DefaultRegisterer)
	rt.Require(ctx, "domain services", err)
	prometheus.MustRegister(metrics.NewDLQCollector(services.DLQ))

	// PORT wins so the binary runs unchanged on Cloud Run.
	port := os.Getenv("PORT")
	if port == "" {
		port = rt.Config.App.Port
	}
	addr := ":" + port

	server, err := api.NewServer(addr, routes.NewRouter(routes.Dependencies{
		Config:    rt.Config,
		Logger:    rt.Logger,
		DB:        dbClient,
		Redis:     redisClient,
		BuyBox:    services.BuyBox,
		Rules:     services.Rules,
		Repricing: services.Repricing,
		Batch:     services.Batch,
	}), rt.Logger)
	rt.Require(ctx, "api server", err)

	runCtx, stop := rt.SignalContext(map[string]any{"addr": addr})
	defer stop()
	rt.Logger.Info(runCtx, "starting api server")
	if err := server.Run(runCtx); err != nil {
		rt.Fail(runCtx, "api server stopped unexpectedly", err)
	}
	rt.Logger.Info(runCtx, "api server stopped")
}
