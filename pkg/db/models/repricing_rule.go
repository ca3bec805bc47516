package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

// RepricingRule is an organization-owned pricing policy. Lower Priority values evaluate first.
type RepricingRule struct {
	ID                     uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID         uuid.UUID                `gorm:"column:organization_id;type:uuid;not null"`
	Name                   string                   `gorm:"column:name;not null"`
	Description            *string                  `gorm:"column:description"`
	ApplyToAllProducts     bool                     `gorm:"column:apply_to_all_products;not null;default:false"`
	ProductIDs             pq.StringArray           `gorm:"column:product_ids;type:text[]"`
	ApplyToAllMarketplaces bool                     `gorm:"column:apply_to_all_marketplaces;not null;default:false"`
	MarketplaceIDs         pq.StringArray           `gorm:"column:marketplace_ids;type:text[]"`
	Operation              enums.RepricingOperation `gorm:"column:operation;not null"`
	TargetCompetitor       enums.TargetCompetitor   `gorm:"column:target_competitor;not null"`
	SpecificCompetitorID   *string                  `gorm:"column:specific_competitor_id"`
	Value                  decimal.Decimal          `gorm:"column:value;type:numeric(12,4);not null;default:0"`
	MinPrice               decimal.NullDecimal      `gorm:"column:min_price;type:numeric(12,2)"`
	MaxPrice               decimal.NullDecimal      `gorm:"column:max_price;type:numeric(12,2)"`
	MinMargin              decimal.NullDecimal      `gorm:"column:min_margin;type:numeric(6,2)"`
	Priority               int                      `gorm:"column:priority;not null"`
	IsActive               bool                     `gorm:"column:is_active;not null"`
	ExecutionCount         int64                    `gorm:"column:execution_count;not null;default:0"`
	SuccessCount           int64                    `gorm:"column:success_count;not null;default:0"`
	FailureCount           int64                    `gorm:"column:failure_count;not null;default:0"`
	LastExecutedAt         *time.Time               `gorm:"column:last_executed_at"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt              gorm.DeletedAt           `gorm:"column:deleted_at;index"`
}

func (RepricingRule) TableName() string { return "repricing_rules" }
