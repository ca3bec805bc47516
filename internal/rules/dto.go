package rules

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

// CreateRuleInput holds a new rule definition.
type CreateRuleInput struct {
	Name                   string
	Description            *string
	ApplyToAllProducts     bool
	ProductIDs             []string
	ApplyToAllMarketplaces bool
	MarketplaceIDs         []string
	Operation              enums.RepricingOperation
	TargetCompetitor       enums.TargetCompetitor
	SpecificCompetitorID   *string
	Value                  decimal.Decimal
	MinPrice               decimal.NullDecimal
	MaxPrice               decimal.NullDecimal
	MinMargin              decimal.NullDecimal
	Priority               *int
	IsActive               *bool
}

// UpdateRuleInput is a partial update; nil fields keep their stored value.
type UpdateRuleInput struct {
	Name                   *string
	Description            *string
	ApplyToAllProducts     *bool
	ProductIDs             *[]string
	ApplyToAllMarketplaces *bool
	MarketplaceIDs         *[]string
	Operation              *enums.RepricingOperation
	TargetCompetitor       *enums.TargetCompetitor
	SpecificCompetitorID   *string
	Value                  *decimal.Decimal
	MinPrice               *decimal.NullDecimal
	MaxPrice               *decimal.NullDecimal
	MinMargin              *decimal.NullDecimal
	Priority               *int
	IsActive               *bool
}

// RuleDTO is the API view of a rule including its execution counters.
type RuleDTO struct {
	ID                     string                   `json:"id"`
	Name                   string                   `json:"name"`
	Description            *string                  `json:"description,omitempty"`
	ApplyToAllProducts     bool                     `json:"applyToAllProducts"`
	ProductIDs             []string                 `json:"productIds"`
	ApplyToAllMarketplaces bool                     `json:"applyToAllMarketplaces"`
	MarketplaceIDs         []string                 `json:"marketplaceIds"`
	Operation              enums.RepricingOperation `json:"operation"`
	TargetCompetitor       enums.TargetCompetitor   `json:"targetCompetitor"`
	SpecificCompetitorID   *string                  `json:"specificCompetitorId,omitempty"`
	Value                  decimal.Decimal          `json:"value"`
	MinPrice               decimal.NullDecimal      `json:"minPrice"`
	MaxPrice               decimal.NullDecimal      `json:"maxPrice"`
	MinMargin              decimal.NullDecimal      `json:"minMargin"`
	Priority               int                      `json:"priority"`
	IsActive               bool                     `json:"isActive"`
	ExecutionCount         int64                    `json:"executionCount"`
	SuccessCount           int64                    `json:"successCount"`
	FailureCount           int64                    `json:"failureCount"`
	LastExecutedAt         *time.Time               `json:"lastExecutedAt,omitempty"`
	CreatedAt              time.Time                `json:"createdAt"`
	UpdatedAt              time.Time                `json:"updatedAt"`
}

func NewRuleDTO(rule models.RepricingRule) RuleDTO {
	return RuleDTO{
		ID:                     rule.ID.String(),
		Name:                   rule.Name,
		Description:            rule.Description,
		ApplyToAllProducts:     rule.ApplyToAllProducts,
		ProductIDs:             nonNil(rule.ProductIDs),
		ApplyToAllMarketplaces: rule.ApplyToAllMarketplaces,
		MarketplaceIDs:         nonNil(rule.MarketplaceIDs),
		Operation:              rule.Operation,
		TargetCompetitor:       rule.TargetCompetitor,
		SpecificCompetitorID:   rule.SpecificCompetitorID,
		Value:                  rule.Value,
		MinPrice:               rule.MinPrice,
		MaxPrice:               rule.MaxPrice,
		MinMargin:              rule.MinMargin,
		Priority:               rule.Priority,
		IsActive:               rule.IsActive,
		ExecutionCount:         rule.ExecutionCount,
		SuccessCount:           rule.SuccessCount,
		FailureCount:           rule.FailureCount,
		LastExecutedAt:         rule.LastExecutedAt,
		CreatedAt:              rule.CreatedAt,
		UpdatedAt:              rule.UpdatedAt,
	}
}

func NewRuleDTOs(rules []models.RepricingRule) []RuleDTO {
	out := make([]RuleDTO, 0, len(rules))
	for _, rule := range rules {
		out = append(out, NewRuleDTO(rule))
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
