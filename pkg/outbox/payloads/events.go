package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

// PriceAdjustedEvent announces the winning adjustment of a repricing run.
type PriceAdjustedEvent struct {
	OrganizationID uuid.UUID                `json:"organization_id"`
	BuyBoxStatusID uuid.UUID                `json:"buybox_status_id"`
	ProductID      string                   `json:"product_id"`
	MarketplaceID  string                   `json:"marketplace_id"`
	RunID          uuid.UUID                `json:"run_id"`
	AdjustmentID   uuid.UUID                `json:"adjustment_id"`
	RuleID         uuid.UUID                `json:"rule_id"`
	RuleName       string                   `json:"rule_name"`
	Operation      enums.RepricingOperation `json:"operation"`
	OldPrice       decimal.Decimal          `json:"old_price"`
	NewPrice       decimal.Decimal          `json:"new_price"`
	OldShipping    decimal.Decimal          `json:"old_shipping"`
	NewShipping    decimal.Decimal          `json:"new_shipping"`
	Currency       enums.Currency           `json:"currency"`
	Reason         string                   `json:"reason"`
	AppliedAt      time.Time                `json:"applied_at"`
}

// BuyBoxStateChangedEvent is emitted when ingestion moves a status to a different BuyBox state.
type BuyBoxStateChangedEvent struct {
	OrganizationID uuid.UUID         `json:"organization_id"`
	BuyBoxStatusID uuid.UUID         `json:"buybox_status_id"`
	ProductID      string            `json:"product_id"`
	MarketplaceID  string            `json:"marketplace_id"`
	PreviousState  enums.BuyBoxState `json:"previous_state"`
	State          enums.BuyBoxState `json:"state"`
	CurrentPrice   decimal.Decimal   `json:"current_price"`
	WinnerID       *string           `json:"winner_id,omitempty"`
	ObservedAt     time.Time         `json:"observed_at"`
}
