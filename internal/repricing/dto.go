package repricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

// AdjustmentDTO is the API view of one price adjustment.
type AdjustmentDTO struct {
	ID            string                   `json:"id"`
	RunID         string                   `json:"runId"`
	ProductID     string                   `json:"productId"`
	MarketplaceID string                   `json:"marketplaceId"`
	RuleID        string                   `json:"ruleId"`
	RuleName      string                   `json:"ruleName"`
	Operation     enums.RepricingOperation `json:"operation"`
	OldPrice      decimal.Decimal          `json:"oldPrice"`
	NewPrice      decimal.Decimal          `json:"newPrice"`
	OldShipping   decimal.NullDecimal      `json:"oldShipping"`
	NewShipping   decimal.NullDecimal      `json:"newShipping"`
	Status        enums.AdjustmentStatus   `json:"status"`
	Reason        string                   `json:"reason"`
	Error         *string                  `json:"error,omitempty"`
	Applied       bool                     `json:"applied"`
	AppliedAt     time.Time                `json:"appliedAt"`
}

// RunDTO is the response of a manual repricing run.
type RunDTO struct {
	RunID       string          `json:"runId,omitempty"`
	Adjustments []AdjustmentDTO `json:"adjustments"`
	Winner      *AdjustmentDTO  `json:"winner,omitempty"`
}

// AdjustmentPageDTO is one cursor page of stored adjustments.
type AdjustmentPageDTO struct {
	Adjustments []AdjustmentDTO `json:"adjustments"`
	NextCursor  string          `json:"nextCursor,omitempty"`
}

// BatchResultDTO is the API view of a batch run.
type BatchResultDTO struct {
	OrganizationID string `json:"organizationId"`
	ProcessedCount int    `json:"processedCount"`
	FailedCount    int    `json:"failedCount"`
	NotDueCount    int    `json:"notDueCount"`
	HistoryDeleted int64  `json:"historyDeleted"`
	Skipped        bool   `json:"skipped"`
}

func NewAdjustmentDTO(adj models.PriceAdjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:            adj.ID.String(),
		RunID:         adj.RunID.String(),
		ProductID:     adj.ProductID,
		MarketplaceID: adj.MarketplaceID,
		RuleID:        adj.RuleID.String(),
		RuleName:      adj.RuleName,
		Operation:     adj.Operation,
		OldPrice:      adj.OldPrice,
		NewPrice:      adj.NewPrice,
		OldShipping:   adj.OldShipping,
		NewShipping:   adj.NewShipping,
		Status:        adj.Status,
		Reason:        adj.Reason,
		Error:         adj.Error,
		Applied:       adj.Applied,
		AppliedAt:     adj.AppliedAt,
	}
}

func NewAdjustmentDTOs(rows []models.PriceAdjustment) []AdjustmentDTO {
	out := make([]AdjustmentDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewAdjustmentDTO(row))
	}
	return out
}

// NewRunDTO marks the winning adjustment of the run.
func NewRunDTO(adjustments []models.PriceAdjustment) RunDTO {
	dto := RunDTO{Adjustments: NewAdjustmentDTOs(adjustments)}
	if len(adjustments) > 0 {
		dto.RunID = adjustments[0].RunID.String()
	}
	for _, adj := range adjustments {
		if adj.Applied {
			view := NewAdjustmentDTO(adj)
			dto.Winner = &view
			break
		}
	}
	return dto
}

func NewBatchResultDTO(result BatchResult) BatchResultDTO {
	return BatchResultDTO{
		OrganizationID: result.OrganizationID.String(),
		ProcessedCount: result.ProcessedCount,
		FailedCount:    result.FailedCount,
		NotDueCount:    result.NotDueCount,
		HistoryDeleted: result.HistoryDeleted,
		Skipped:        result.Skipped,
	}
}
