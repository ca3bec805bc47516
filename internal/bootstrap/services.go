// Package bootstrap holds the startup runtime of every binary and the domain service graph
// shared by the api and cron-worker.
package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/repricer-backend/internal/buybox"
	"github.com/angelmondragon/repricer-backend/internal/repricing"
	"github.com/angelmondragon/repricer-backend/internal/rules"
	"github.com/angelmondragon/repricer-backend/pkg/config"
	"github.com/angelmondragon/repricer-backend/pkg/db"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
	"github.com/angelmondragon/repricer-backend/pkg/outbox"
)

type Services struct {
	BuyBox    buybox.Service
	Rules     rules.Service
	Repricing repricing.Service
	Batch     *repricing.BatchRunner
	Statuses  *buybox.StatusRepository
	Outbox    *outbox.Repository
	DLQ       *outbox.DLQRepository
}

// NewServices builds every repository and service on top of client. A nil registerer leaves
// the repricing metrics as no-ops.
func NewServices(cfg config.RepricingConfig, logg *logger.Logger, client *db.Client, reg prometheus.Registerer) (*Services, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	conn := client.DB()

	statuses := buybox.NewStatusRepository(conn)
	history := buybox.NewHistoryRepository(conn)
	ruleRepo := rules.NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)
	events := outbox.NewService(outboxRepo, logg)
	repricingMetrics := metrics.NewRepricingMetrics(reg)

	buyboxService, err := buybox.NewService(buybox.ServiceParams{
		Logger:                    logg,
		TxRunner:                  client,
		Statuses:                  statuses,
		History:                   history,
		Outbox:                    events,
		DefaultMonitoringInterval: cfg.DefaultMonitoringInterval,
		HistoryWindow:             cfg.HistoryRetention(),
	})
	if err != nil {
		return nil, fmt.Errorf("buybox service: %w", err)
	}

	rulesService, err := rules.NewService(ruleRepo, logg)
	if err != nil {
		return nil, fmt.Errorf("rules service: %w", err)
	}

	repricingService, err := repricing.NewService(repricing.ServiceParams{
		Logger:      logg,
		TxRunner:    client,
		Statuses:    statuses,
		History:     history,
		Rules:       ruleRepo,
		Adjustments: repricing.NewAdjustmentRepository(conn),
		Outbox:      events,
		Metrics:     repricingMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("repricing service: %w", err)
	}

	batch, err := repricing.NewBatchRunner(repricing.BatchRunnerParams{
		Logger:      logg,
		Repricer:    repricingService,
		Statuses:    statuses,
		History:     history,
		Retention:   cfg.HistoryRetention(),
		Concurrency: cfg.BatchConcurrency,
		Metrics:     repricingMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("batch runner: %w", err)
	}

	return &Services{
		BuyBox:    buyboxService,
		Rules:     rulesService,
		Repricing: repricingService,
		Batch:     batch,
		Statuses:  statuses,
		Outbox:    outboxRepo,
		DLQ:       outbox.NewDLQRepository(conn),
	}, nil
}
