package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/types"
)

// BuyBoxHistory is an append-only snapshot of a BuyBoxStatus.
type BuyBoxHistory struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID              `gorm:"column:organization_id;type:uuid;not null"`
	BuyBoxStatusID uuid.UUID              `gorm:"column:buybox_status_id;type:uuid;not null"`
	ProductID      string                 `gorm:"column:product_id;not null"`
	MarketplaceID  string                 `gorm:"column:marketplace_id;not null"`
	Price          decimal.Decimal        `gorm:"column:price;type:numeric(12,2);not null"`
	Shipping       decimal.Decimal        `gorm:"column:shipping;type:numeric(12,2);not null"`
	Currency       enums.Currency         `gorm:"column:currency;not null"`
	Status         enums.BuyBoxState      `gorm:"column:status;not null"`
	IsInBuyBox     bool                   `gorm:"column:is_in_buybox;not null"`
	MarketPosition types.MarketPosition   `gorm:"column:market_position;type:jsonb;not null"`
	Competitors    types.CompetitorPrices `gorm:"column:competitors;type:jsonb;not null"`
	BuyBoxWinner   *types.CompetitorPrice `gorm:"column:buybox_winner;type:jsonb"`
	RecordedAt     time.Time              `gorm:"column:recorded_at;not null"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (BuyBoxHistory) TableName() string { return "buybox_history" }

// HistoryFromStatus snapshots status at recordedAt.
func HistoryFromStatus(status BuyBoxStatus, recordedAt time.Time) BuyBoxHistory {
	return BuyBoxHistory{
		ID:             uuid.New(),
		OrganizationID: status.OrganizationID,
		BuyBoxStatusID: status.ID,
		ProductID:      status.ProductID,
		MarketplaceID:  status.MarketplaceID,
		Price:          status.CurrentPrice,
		Shipping:       status.CurrentShipping,
		Currency:       status.Currency,
		Status:         status.Status,
		IsInBuyBox:     status.IsInBuyBox,
		MarketPosition: status.MarketPosition,
		Competitors:    status.Competitors,
		BuyBoxWinner:   status.BuyBoxWinner,
		RecordedAt:     recordedAt,
	}
}
