package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/repricer-backend/internal/bootstrap"
	"github.com/angelmondragon/repricer-backend/internal/cron"
	"github.com/angelmondragon/repricer-backend/pkg/config"
	"github.com/angelmondragon/repricer-backend/pkg/db"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
)

func main() {
	rt := bootstrap.Start("cron-worker")
	defer rt.Close()
	ctx := context.Background()
	cfg := rt.Config

	dbClient := rt.Database(ctx)
	redisClient := rt.Redis(ctx)

	services, err := bootstrap.NewServices(cfg.Repricing, rt.Logger, dbClient, prometheus.DefaultRegisterer)
	rt.Require(ctx, "domain services", err)

	registry, err := buildRegistry(cfg, rt.Logger, dbClient, services)
	rt.Require(ctx, "cron jobs", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+lockEnv(cfg.App.Env)), cfg.Repricing.LockTTL)
	rt.Require(ctx, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   rt.Logger,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Repricing.SchedulerInterval,
	})
	rt.Require(ctx, "cron service", err)

	runCtx, stop := rt.SignalContext(map[string]any{"jobs": registry.Names()})
	defer stop()
	rt.ServeMetrics(runCtx)
	rt.Logger.Info(runCtx, "starting cron worker")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fail(runCtx, "cron worker stopped unexpectedly", err)
	}
	rt.Logger.Info(runCtx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *bootstrap.Services) (*cron.Registry, error) {
	sweep, err := cron.NewRepricingSweepJob(cron.RepricingSweepJobParams{
		Logger:        logg,
		Organizations: services.Statuses,
		Runner:        services.Batch,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    services.Outbox,
		RetentionDays: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{sweep, retention} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
