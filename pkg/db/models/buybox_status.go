package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/types"
)

// BuyBoxStatus is the durable pricing and position state for one product on one marketplace.
type BuyBoxStatus struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID     uuid.UUID              `gorm:"column:organization_id;type:uuid;not null"`
	ProductID          string                 `gorm:"column:product_id;not null"`
	MarketplaceID      string                 `gorm:"column:marketplace_id;not null"`
	CurrentPrice       decimal.Decimal        `gorm:"column:current_price;type:numeric(12,2);not null"`
	CurrentShipping    decimal.Decimal        `gorm:"column:current_shipping;type:numeric(12,2);not null;default:0"`
	Currency           enums.Currency         `gorm:"column:currency;not null"`
	CostPrice          decimal.NullDecimal    `gorm:"column:cost_price;type:numeric(12,2)"`
	IsInBuyBox         bool                   `gorm:"column:is_in_buybox;not null;default:false"`
	ListingURL         *string                `gorm:"column:listing_url"`
	IsMonitored        bool                   `gorm:"column:is_monitored;not null"`
	MonitoringInterval int                    `gorm:"column:monitoring_interval;not null"`
	Status             enums.BuyBoxState      `gorm:"column:status;not null"`
	MarketPosition     types.MarketPosition   `gorm:"column:market_position;type:jsonb;not null"`
	Competitors        types.CompetitorPrices `gorm:"column:competitors;type:jsonb;not null"`
	BuyBoxWinner       *types.CompetitorPrice `gorm:"column:buybox_winner;type:jsonb"`
	LastUpdated        time.Time              `gorm:"column:last_updated;not null"`
	LastChecked        *time.Time             `gorm:"column:last_checked"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt          gorm.DeletedAt         `gorm:"column:deleted_at;index"`
}

func (BuyBoxStatus) TableName() string { return "buybox_statuses" }

// Listing returns the organization's own offer as stored on the status.
func (s BuyBoxStatus) Listing() types.Listing {
	return types.Listing{
		Price:      s.CurrentPrice,
		Shipping:   s.CurrentShipping,
		IsInBuyBox: s.IsInBuyBox,
		URL:        s.ListingURL,
	}
}

// IsDue reports whether the monitoring interval has elapsed since the last check.
func (s BuyBoxStatus) IsDue(now time.Time) bool {
	if s.LastChecked == nil {
		return true
	}
	return now.Sub(*s.LastChecked) >= time.Duration(s.MonitoringInterval)*time.Minute
}
