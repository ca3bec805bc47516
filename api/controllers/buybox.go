package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/api/responses"
	"github.com/angelmondragon/repricer-backend/api/validators"
	"github.com/angelmondragon/repricer-backend/internal/buybox"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/types"
)

type updateBuyBoxRequest struct {
	Listing            listingRequest      `json:"listing"`
	Competitors        []competitorRequest `json:"competitors" validate:"omitempty,max=200,dive"`
	Currency           string              `json:"currency,omitempty" validate:"omitempty,len=3"`
	CostPrice          decimal.NullDecimal `json:"costPrice"`
	MonitoringInterval *int                `json:"monitoringInterval,omitempty" validate:"omitempty,gte=1,lte=10080"`
	IsMonitored        *bool               `json:"isMonitored,omitempty"`
}

type listingRequest struct {
	Price      decimal.Decimal `json:"price"`
	Shipping   decimal.Decimal `json:"shipping"`
	IsInBuyBox bool            `json:"isInBuyBox"`
	URL        *string         `json:"url,omitempty" validate:"omitempty,url"`
}

type competitorRequest struct {
	CompetitorID   string          `json:"competitorId" validate:"required,max=128"`
	CompetitorName string          `json:"competitorName" validate:"max=256"`
	Price          decimal.Decimal `json:"price"`
	Shipping       decimal.Decimal `json:"shipping"`
	Currency       string          `json:"currency,omitempty"`
	LastUpdated    *time.Time      `json:"lastUpdated,omitempty"`
	SourceType     string          `json:"sourceType,omitempty"`
	IsBuyBoxWinner bool            `json:"isBuyBoxWinner"`
}

func (req updateBuyBoxRequest) toInput(productID, marketplaceID string, now time.Time) buybox.UpdateStatusInput {
	competitors := make([]types.CompetitorPrice, 0, len(req.Competitors))
	for _, c := range req.Competitors {
		price := types.NewCompetitorPrice(c.CompetitorID, validators.SanitizeString(c.CompetitorName, 256), c.Price, c.Shipping)
		price.Currency = string(enums.NormalizeCurrency(c.Currency))
		price.SourceType = enums.CompetitorSourceType(strings.TrimSpace(c.SourceType))
		price.IsBuyBoxWinner = c.IsBuyBoxWinner
		price.LastUpdated = now
		if c.LastUpdated != nil {
			price.LastUpdated = c.LastUpdated.UTC()
		}
		competitors = append(competitors, price)
	}
	return buybox.UpdateStatusInput{
		ProductID:     productID,
		MarketplaceID: marketplaceID,
		Listing: types.Listing{
			Price:      req.Listing.Price,
			Shipping:   req.Listing.Shipping,
			IsInBuyBox: req.Listing.IsInBuyBox,
			URL:        req.Listing.URL,
		},
		Competitors:        competitors,
		Currency:           enums.NormalizeCurrency(req.Currency),
		CostPrice:          req.CostPrice,
		MonitoringInterval: req.MonitoringInterval,
		IsMonitored:        req.IsMonitored,
	}
}

// BuyBoxUpdate ingests one observation of the listing and its competitors.
func BuyBoxUpdate(svc buybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "buybox service unavailable"))
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

		var payload updateBuyBoxRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.UpdateBuyBoxStatus(r.Context(), orgID, payload.toInput(productID, marketplaceID, time.Now().UTC()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, buybox.NewStatusDTO(*status))
	}
}

func BuyBoxGet(svc buybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "buybox service unavailable"))
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

		status, err := svc.GetStatus(r.Context(), orgID, productID, marketplaceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, buybox.NewStatusDTO(*status))
	}
}

// BuyBoxHistory lists snapshots recorded since the optional ?since= timestamp.
func BuyBoxHistory(svc buybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "buybox service unavailable"))
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
		since, err := validators.ParseQueryTime(r, "since")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListHistory(r.Context(), orgID, productID, marketplaceID, since)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, buybox.NewHistoryDTOs(rows))
	}
}
