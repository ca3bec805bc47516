package repricing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/metrics"
)

const (
	defaultBatchConcurrency = 4
	defaultHistoryRetention = 30 * 24 * time.Hour
)

type rulesApplier interface {
	ApplyRules(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) ([]models.PriceAdjustment, error)
}

type monitoredLister interface {
	ListMonitored(ctx context.Context, organizationID uuid.UUID) ([]models.BuyBoxStatus, error)
}

type historyPruner interface {
	DeleteOlderThan(ctx context.Context, organizationID uuid.UUID, cutoff time.Time) (int64, error)
}

// BatchResult summarizes one organization sweep.
type BatchResult struct {
	OrganizationID uuid.UUID
	ProcessedCount int
	FailedCount    int
	NotDueCount    int
	HistoryDeleted int64
	Skipped        bool
	// Failures combines the per-product errors of the sweep; it never aborts the sweep.
	Failures error
}

// BatchRunnerParams wires the batch runner.
type BatchRunnerParams struct {
	Logger      *logger.Logger
	Repricer    rulesApplier
	Statuses    monitoredLister
	History     historyPruner
	Retention   time.Duration
	Concurrency int
	Metrics     *metrics.RepricingMetrics
	Now         func() time.Time
}

// BatchRunner reprices every due product of an organization. Only one sweep runs at a time per
// runner; a trigger that arrives during a sweep is a no-op.
type BatchRunner struct {
	logg        *logger.Logger
	repricer    rulesApplier
	statuses    monitoredLister
	history     historyPruner
	retention   time.Duration
	concurrency int
	metrics     *metrics.RepricingMetrics
	now         func() time.Time
	running     atomic.Bool
}

func NewBatchRunner(params BatchRunnerParams) (*BatchRunner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repricer == nil {
		return nil, fmt.Errorf("repricing service required")
	}
	if params.Statuses == nil {
		return nil, fmt.Errorf("status repository required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultHistoryRetention
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &BatchRunner{
		logg:        params.Logger,
		repricer:    params.Repricer,
		statuses:    params.Statuses,
		history:     params.History,
		retention:   retention,
		concurrency: concurrency,
		metrics:     params.Metrics,
		now:         now,
	}, nil
}

// RunForOrganization reprices the organization's monitored products whose interval has elapsed,
// then prunes history past the retention window. Per-product failures are counted and logged;
// only listing and pruning errors are returned.
func (r *BatchRunner) RunForOrganization(ctx context.Context, organizationID uuid.UUID) (BatchResult, error) {
	result := BatchResult{OrganizationID: organizationID}
	ctx = r.logg.WithOrganizationID(ctx, organizationID.String())

	if !r.running.CompareAndSwap(false, true) {
		result.Skipped = true
		r.logg.Info(ctx, "repricing batch already running; skipping")
		return result, nil
	}
	defer r.running.Store(false)

	statuses, err := r.statuses.ListMonitored(ctx, organizationID)
	if err != nil {
		return result, fmt.Errorf("list monitored statuses: %w", err)
	}

	now := r.now().UTC()
	due := make([]models.BuyBoxStatus, 0, len(statuses))
	for _, status := range statuses {
		if status.IsDue(now) {
			due = append(due, status)
		}
	}
	result.NotDueCount = len(statuses) - len(due)

	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	group.SetLimit(r.concurrency)
	for _, status := range due {
		group.Go(func() error {
			_, err := r.repricer.ApplyRules(ctx, organizationID, status.ProductID, status.MarketplaceID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailedCount++
				result.Failures = multierr.Append(result.Failures, fmt.Errorf("%s/%s: %w", status.ProductID, status.MarketplaceID, err))
				productCtx := r.logg.WithProduct(ctx, status.ProductID, status.MarketplaceID)
				r.logg.Error(productCtx, "repricing product failed", err)
				return nil
			}
			result.ProcessedCount++
			return nil
		})
	}
	_ = group.Wait()

	r.metrics.AddBatch("processed", result.ProcessedCount)
	r.metrics.AddBatch("failed", result.FailedCount)
	r.metrics.AddBatch("not_due", result.NotDueCount)

	cutoff := now.Add(-r.retention)
	deleted, err := r.history.DeleteOlderThan(ctx, organizationID, cutoff)
	if err != nil {
		return result, fmt.Errorf("history retention: %w", err)
	}
	result.HistoryDeleted = deleted

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"processed":       result.ProcessedCount,
		"failed":          result.FailedCount,
		"not_due":         result.NotDueCount,
		"history_deleted": deleted,
		"history_cutoff":  cutoff,
	})
	if result.Failures != nil {
		r.logg.Warn(r.logg.WithField(logCtx, "failures", len(multierr.Errors(result.Failures))), "repricing batch completed with failures")
		return result, nil
	}
	r.logg.Info(logCtx, "repricing batch complete")
	return result, nil
}
