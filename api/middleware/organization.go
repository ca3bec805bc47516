package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/repricer-backend/api/responses"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
)

const OrganizationHeader = "X-Organization-Id"

// Organization scopes the request to the tenant named in the X-Organization-Id header.
// Requests without a valid header are rejected before reaching a handler.
func Organization(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(OrganizationHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "organization header required").
					WithDetails(map[string]any{"header": OrganizationHeader}))
				return
			}
			organizationID, err := uuid.Parse(raw)
			if err != nil || organizationID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid organization id").
					WithDetails(map[string]any{"header": OrganizationHeader}))
				return
			}

			ctx := WithOrganizationID(r.Context(), organizationID)
			if logg != nil {
				ctx = logg.WithOrganizationID(ctx, organizationID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
