package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/repricer-backend/api/responses"
	"github.com/angelmondragon/repricer-backend/api/validators"
	"github.com/angelmondragon/repricer-backend/internal/repricing"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/pagination"
)

type batchRunner interface {
	RunForOrganization(ctx context.Context, organizationID uuid.UUID) (repricing.BatchResult, error)
}

// RepricingApply runs every applicable rule for one product on one marketplace.
func RepricingApply(svc repricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "repricing service unavailable"))
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, marketplaceID, err := productPair(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adjustments, err := svc.ApplyRules(r.Context(), orgID, productID, marketplaceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, repricing.NewRunDTO(adjustments))
	}
}

// RepricingRun sweeps every due product of the organization.
func RepricingRun(runner batchRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "batch runner unavailable"))
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := runner.RunForOrganization(r.Context(), orgID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "repricing batch failed"))
			return
		}
		status := http.StatusOK
		if result.Skipped {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, repricing.NewBatchResultDTO(result))
	}
}

// RepricingAdjustments pages through the stored adjustments of a product, newest first.
func RepricingAdjustments(svc repricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "repricing service unavailable"))
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, marketplaceID, err := productPair(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}
		rows, next, err := svc.ListAdjustments(r.Context(), orgID, productID, marketplaceID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, repricing.AdjustmentPageDTO{
			Adjustments: repricing.NewAdjustmentDTOs(rows),
			NextCursor:  next,
		})
	}
}
