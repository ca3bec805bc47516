package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

// PriceAdjustment is the immutable outcome of evaluating one rule during one repricing run.
// Applied marks the single adjustment of a run that was written onto the status.
type PriceAdjustment struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	RunID          uuid.UUID                `gorm:"column:run_id;type:uuid;not null"`
	OrganizationID uuid.UUID                `gorm:"column:organization_id;type:uuid;not null"`
	BuyBoxStatusID uuid.UUID                `gorm:"column:buybox_status_id;type:uuid;not null"`
	ProductID      string                   `gorm:"column:product_id;not null"`
	MarketplaceID  string                   `gorm:"column:marketplace_id;not null"`
	RuleID         uuid.UUID                `gorm:"column:rule_id;type:uuid;not null"`
	RuleName       string                   `gorm:"column:rule_name;not null"`
	Operation      enums.RepricingOperation `gorm:"column:operation;not null"`
	OldPrice       decimal.Decimal          `gorm:"column:old_price;type:numeric(12,2);not null"`
	NewPrice       decimal.Decimal          `gorm:"column:new_price;type:numeric(12,2);not null"`
	OldShipping    decimal.NullDecimal      `gorm:"column:old_shipping;type:numeric(12,2)"`
	NewShipping    decimal.NullDecimal      `gorm:"column:new_shipping;type:numeric(12,2)"`
	Status         enums.AdjustmentStatus   `gorm:"column:status;not null"`
	Reason         string                   `gorm:"column:reason;not null"`
	Error          *string                  `gorm:"column:error"`
	Applied        bool                     `gorm:"column:applied;not null;default:false"`
	AppliedAt      time.Time                `gorm:"column:applied_at;not null"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (PriceAdjustment) TableName() string { return "price_adjustments" }

// PriceChanged reports whether the adjustment moved price or shipping.
func (a PriceAdjustment) PriceChanged() bool {
	if !a.NewPrice.Equal(a.OldPrice) {
		return true
	}
	if a.NewShipping.Valid && (!a.OldShipping.Valid || !a.NewShipping.Decimal.Equal(a.OldShipping.Decimal)) {
		return true
	}
	return false
}
