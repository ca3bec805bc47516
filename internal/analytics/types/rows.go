package types

import (
	"math/big"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// PricingEventRow mirrors the pricing_events BigQuery schema. Prices are NUMERIC columns.
type PricingEventRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	OrganizationID string             `bigquery:"organization_id"`
	BuyBoxStatusID string             `bigquery:"buybox_status_id"`
	ProductID      string             `bigquery:"product_id"`
	MarketplaceID  string             `bigquery:"marketplace_id"`
	RunID          *string            `bigquery:"run_id"`
	RuleID         *string            `bigquery:"rule_id"`
	RuleName       *string            `bigquery:"rule_name"`
	Operation      *string            `bigquery:"operation"`
	OldPrice       *big.Rat           `bigquery:"old_price"`
	NewPrice       *big.Rat           `bigquery:"new_price"`
	Currency       *string            `bigquery:"currency"`
	PreviousState  *string            `bigquery:"previous_state"`
	State          *string            `bigquery:"state"`
	WinnerID       *string            `bigquery:"winner_id"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
