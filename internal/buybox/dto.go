package buybox

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/types"
)

// UpdateStatusInput is one observation of the own listing and the competitor set.
type UpdateStatusInput struct {
	ProductID          string
	MarketplaceID      string
	Listing            types.Listing
	Competitors        []types.CompetitorPrice
	Currency           enums.Currency
	CostPrice          decimal.NullDecimal
	MonitoringInterval *int
	IsMonitored        *bool
}

// StatusDTO is the API view of a BuyBox status.
type StatusDTO struct {
	ID                 string                  `json:"id"`
	ProductID          string                  `json:"productId"`
	MarketplaceID      string                  `json:"marketplaceId"`
	CurrentPrice       decimal.Decimal         `json:"currentPrice"`
	CurrentShipping    decimal.Decimal         `json:"currentShipping"`
	Currency           enums.Currency          `json:"currency"`
	CostPrice          decimal.NullDecimal     `json:"costPrice"`
	IsInBuyBox         bool                    `json:"isInBuyBox"`
	IsMonitored        bool                    `json:"isMonitored"`
	MonitoringInterval int                     `json:"monitoringInterval"`
	Status             enums.BuyBoxState       `json:"status"`
	MarketPosition     types.MarketPosition    `json:"marketPosition"`
	Competitors        []types.CompetitorPrice `json:"competitors"`
	BuyBoxWinner       *types.CompetitorPrice  `json:"buyBoxWinner,omitempty"`
	LastUpdated        time.Time               `json:"lastUpdated"`
	LastChecked        *time.Time              `json:"lastChecked,omitempty"`
}

// HistoryDTO is the API view of a status snapshot.
type HistoryDTO struct {
	ID              string               `json:"id"`
	Price           decimal.Decimal      `json:"price"`
	Shipping        decimal.Decimal      `json:"shipping"`
	Status          enums.BuyBoxState    `json:"status"`
	IsInBuyBox      bool                 `json:"isInBuyBox"`
	MarketPosition  types.MarketPosition `json:"marketPosition"`
	CompetitorCount int                  `json:"competitorCount"`
	RecordedAt      time.Time            `json:"recordedAt"`
}

func NewStatusDTO(status models.BuyBoxStatus) StatusDTO {
	competitors := []types.CompetitorPrice(status.Competitors)
	if competitors == nil {
		competitors = []types.CompetitorPrice{}
	}
	return StatusDTO{
		ID:                 status.ID.String(),
		ProductID:          status.ProductID,
		MarketplaceID:      status.MarketplaceID,
		CurrentPrice:       status.CurrentPrice,
		CurrentShipping:    status.CurrentShipping,
		Currency:           status.Currency,
		CostPrice:          status.CostPrice,
		IsInBuyBox:         status.IsInBuyBox,
		IsMonitored:        status.IsMonitored,
		MonitoringInterval: status.MonitoringInterval,
		Status:             status.Status,
		MarketPosition:     status.MarketPosition,
		Competitors:        competitors,
		BuyBoxWinner:       status.BuyBoxWinner,
		LastUpdated:        status.LastUpdated,
		LastChecked:        status.LastChecked,
	}
}

func NewHistoryDTOs(rows []models.BuyBoxHistory) []HistoryDTO {
	out := make([]HistoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryDTO{
			ID:              row.ID.String(),
			Price:           row.Price,
			Shipping:        row.Shipping,
			Status:          row.Status,
			IsInBuyBox:      row.IsInBuyBox,
			MarketPosition:  row.MarketPosition,
			CompetitorCount: len(row.Competitors),
			RecordedAt:      row.RecordedAt,
		})
	}
	return out
}
