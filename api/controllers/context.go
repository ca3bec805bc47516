package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/repricer-backend/api/middleware"
	"github.com/angelmondragon/repricer-backend/api/validators"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
)

func organizationID(r *http.Request) (uuid.UUID, error) {
	id := middleware.OrganizationIDFromContext(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "organization context missing")
	}
	return id, nil
}

// productPair reads the productId and marketplaceId route parameters.
func productPair(r *http.Request) (string, string, error) {
	productID, err := validators.PathIdentifier(r, "productId")
	if err != nil {
		return "", "", err
	}
	marketplaceID, err := validators.PathIdentifier(r, "marketplaceId")
	if err != nil {
		return "", "", err
	}
	return productID, marketplaceID, nil
}
