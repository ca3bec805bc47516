package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/repricer-backend/internal/repricing"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
)

type organizationLister interface {
	ListOrganizationsWithMonitored(ctx context.Context) ([]uuid.UUID, error)
}

type organizationRunner interface {
	RunForOrganization(ctx context.Context, organizationID uuid.UUID) (repricing.BatchResult, error)
}

type RepricingSweepJobParams struct {
	Logger        *logger.Logger
	Organizations organizationLister
	Runner        organizationRunner
}

// NewRepricingSweepJob builds the job that reprices every organization with monitored products.
func NewRepricingSweepJob(params RepricingSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Organizations == nil {
		return nil, fmt.Errorf("organization lister required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("batch runner required")
	}
	return &repricingSweepJob{
		logg:          params.Logger,
		organizations: params.Organizations,
		runner:        params.Runner,
	}, nil
}

type repricingSweepJob struct {
	logg          *logger.Logger
	organizations organizationLister
	runner        organizationRunner
}

func (j *repricingSweepJob) Name() string { return "repricing-sweep" }

// Run sweeps organizations one after another. An organization that fails does not stop the
// others; the combined error is returned so the cycle is recorded as failed.
func (j *repricingSweepJob) Run(ctx context.Context) error {
	orgs, err := j.organizations.ListOrganizationsWithMonitored(ctx)
	if err != nil {
		return fmt.Errorf("list organizations: %w", err)
	}

	var (
		errs      error
		processed int
		failed    int
	)
	for _, org := range orgs {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		result, err := j.runner.RunForOrganization(ctx, org)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("organization %s: %w", org, err))
			continue
		}
		processed += result.ProcessedCount
		failed += result.FailedCount
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"organizations":      len(orgs),
		"products_processed": processed,
		"products_failed":    failed,
	})
	j.logg.Info(logCtx, "repricing sweep complete")
	return errs
}
