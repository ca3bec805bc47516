package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	"github.com/angelmondragon/repricer-backend/pkg/types"
)

const pricePlaces = 2

// Reasons recorded on adjustments. Tests and the audit trail match on them.
const (
	ReasonNoCompetitors    = "no competitors available"
	ReasonTargetNotFound   = "target competitor not found"
	ReasonNoCostBasis      = "no cost basis"
	ReasonWithinBounds     = "price already within bounds"
	ReasonNoBounds         = "no floor or ceiling configured"
	ReasonUnchanged        = "price unchanged"
	ReasonEvaluationFailed = "evaluation failed"
)

var errMarginTooHigh = errors.New("margin percentage must be below 100")

// proposal is the operation-specific outcome before clamps and rounding.
type proposal struct {
	price    decimal.Decimal
	shipping *decimal.Decimal
	reason   string
	skip     string
}

// Evaluate computes the adjustment one rule proposes against status. It never mutates its inputs
// and always returns exactly one adjustment; unexpected failures, including panics, come back as
// a failed adjustment that keeps the old price.
func Evaluate(status models.BuyBoxStatus, rule models.RepricingRule, appliedAt time.Time) (adj models.PriceAdjustment) {
	adj = models.PriceAdjustment{
		OrganizationID: status.OrganizationID,
		BuyBoxStatusID: status.ID,
		ProductID:      status.ProductID,
		MarketplaceID:  status.MarketplaceID,
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		Operation:      rule.Operation,
		OldPrice:       status.CurrentPrice,
		NewPrice:       status.CurrentPrice,
		OldShipping:    decimal.NewNullDecimal(status.CurrentShipping),
		AppliedAt:      appliedAt,
	}

	defer func() {
		if r := recover(); r != nil {
			markFailed(&adj, fmt.Errorf("panic: %v", r))
		}
	}()

	p, err := propose(status, rule)
	if err != nil {
		markFailed(&adj, err)
		return adj
	}
	if p.skip != "" {
		adj.Status = enums.AdjustmentSkipped
		adj.Reason = p.skip
		return adj
	}

	price, err := constrain(p.price, status, rule)
	if err != nil {
		markFailed(&adj, err)
		return adj
	}
	price = price.Round(pricePlaces)
	if !price.IsPositive() {
		markFailed(&adj, fmt.Errorf("computed price %s is not positive", price.StringFixed(pricePlaces)))
		return adj
	}

	adj.NewPrice = price
	if p.shipping != nil {
		adj.NewShipping = decimal.NewNullDecimal(p.shipping.Round(pricePlaces))
	}

	if !adj.PriceChanged() {
		adj.Status = enums.AdjustmentSkipped
		adj.Reason = ReasonUnchanged
		return adj
	}
	adj.Status = enums.AdjustmentExecuted
	adj.Reason = p.reason
	return adj
}

func markFailed(adj *models.PriceAdjustment, err error) {
	msg := err.Error()
	adj.Status = enums.AdjustmentFailed
	adj.Reason = ReasonEvaluationFailed
	adj.Error = &msg
	adj.NewPrice = adj.OldPrice
	adj.NewShipping = decimal.NullDecimal{}
}

func propose(status models.BuyBoxStatus, rule models.RepricingRule) (proposal, error) {
	current := status.CurrentPrice

	var target types.CompetitorPrice
	if rule.Operation.RequiresCompetitor() {
		if len(status.Competitors) == 0 {
			return proposal{skip: ReasonNoCompetitors}, nil
		}
		var ok bool
		target, ok = SelectTarget(status, rule)
		if !ok {
			return proposal{skip: fmt.Sprintf("%s (%s)", ReasonTargetNotFound, rule.TargetCompetitor)}, nil
		}
	}

	switch rule.Operation {
	case enums.OperationMatch:
		return proposal{
			price:  target.TotalPrice,
			reason: fmt.Sprintf("matched %s at %s", describe(target), target.TotalPrice.StringFixed(pricePlaces)),
		}, nil
	case enums.OperationBeatBy:
		return proposal{
			price:  target.TotalPrice.Sub(rule.Value),
			reason: fmt.Sprintf("beat %s by %s", describe(target), rule.Value.String()),
		}, nil
	case enums.OperationMatchShipping:
		shipping := target.Shipping
		return proposal{
			price:    current,
			shipping: &shipping,
			reason:   fmt.Sprintf("matched shipping of %s at %s", describe(target), shipping.StringFixed(pricePlaces)),
		}, nil
	case enums.OperationFixedPrice:
		return proposal{
			price:  rule.Value,
			reason: fmt.Sprintf("fixed price %s", rule.Value.String()),
		}, nil
	case enums.OperationPercentageMargin:
		if !status.CostPrice.Valid {
			return proposal{skip: ReasonNoCostBasis}, nil
		}
		price, err := priceForMargin(status.CostPrice.Decimal, rule.Value)
		if err != nil {
			return proposal{}, err
		}
		return proposal{
			price:  price,
			reason: fmt.Sprintf("%s%% margin over cost %s", rule.Value.String(), status.CostPrice.Decimal.StringFixed(pricePlaces)),
		}, nil
	case enums.OperationPercentageDiscount:
		factor := decimal.NewFromInt(1).Sub(rule.Value.Div(hundred))
		return proposal{
			price:  current.Mul(factor),
			reason: fmt.Sprintf("%s%% discount", rule.Value.String()),
		}, nil
	case enums.OperationFloorCeiling:
		if !rule.MinPrice.Valid && !rule.MaxPrice.Valid {
			return proposal{skip: ReasonNoBounds}, nil
		}
		if withinBounds(current, rule) {
			return proposal{skip: ReasonWithinBounds}, nil
		}
		return proposal{
			price:  current,
			reason: "clamped into floor/ceiling",
		}, nil
	default:
		return proposal{}, fmt.Errorf("unsupported operation %q", rule.Operation)
	}
}

// constrain applies the minimum margin floor and then the rule's price bounds, which always win.
func constrain(price decimal.Decimal, status models.BuyBoxStatus, rule models.RepricingRule) (decimal.Decimal, error) {
	if rule.MinPrice.Valid && rule.MaxPrice.Valid && rule.MinPrice.Decimal.GreaterThan(rule.MaxPrice.Decimal) {
		return price, fmt.Errorf("min price %s exceeds max price %s", rule.MinPrice.Decimal, rule.MaxPrice.Decimal)
	}
	if rule.MinMargin.Valid && status.CostPrice.Valid {
		floor, err := priceForMargin(status.CostPrice.Decimal, rule.MinMargin.Decimal)
		if err != nil {
			return price, err
		}
		price = decimal.Max(price, floor)
	}
	if rule.MinPrice.Valid {
		price = decimal.Max(price, rule.MinPrice.Decimal)
	}
	if rule.MaxPrice.Valid {
		price = decimal.Min(price, rule.MaxPrice.Decimal)
	}
	return price, nil
}

func withinBounds(price decimal.Decimal, rule models.RepricingRule) bool {
	if rule.MinPrice.Valid && price.LessThan(rule.MinPrice.Decimal) {
		return false
	}
	if rule.MaxPrice.Valid && price.GreaterThan(rule.MaxPrice.Decimal) {
		return false
	}
	return true
}

// priceForMargin returns cost / (1 - margin/100).
func priceForMargin(cost, margin decimal.Decimal) (decimal.Decimal, error) {
	if margin.GreaterThanOrEqual(hundred) {
		return decimal.Zero, errMarginTooHigh
	}
	return cost.Div(decimal.NewFromInt(1).Sub(margin.Div(hundred))), nil
}

func describe(target types.CompetitorPrice) string {
	if target.CompetitorName != "" {
		return target.CompetitorName
	}
	return target.CompetitorID
}
