package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
)

const defaultPriority = 100

var hundred = decimal.NewFromInt(100)

type rulesRepository interface {
	Create(ctx context.Context, rule *models.RepricingRule) error
	FindByID(ctx context.Context, organizationID, id uuid.UUID) (*models.RepricingRule, error)
	List(ctx context.Context, organizationID uuid.UUID, activeOnly bool) ([]models.RepricingRule, error)
	Update(ctx context.Context, rule *models.RepricingRule) error
	Delete(ctx context.Context, organizationID, id uuid.UUID) error
}

// Service manages repricing rule definitions.
type Service interface {
	CreateRule(ctx context.Context, organizationID uuid.UUID, input CreateRuleInput) (*models.RepricingRule, error)
	GetRule(ctx context.Context, organizationID, ruleID uuid.UUID) (*models.RepricingRule, error)
	ListRules(ctx context.Context, organizationID uuid.UUID, activeOnly bool) ([]models.RepricingRule, error)
	UpdateRule(ctx context.Context, organizationID, ruleID uuid.UUID, input UpdateRuleInput) (*models.RepricingRule, error)
	DeleteRule(ctx context.Context, organizationID, ruleID uuid.UUID) error
}

type service struct {
	repo rulesRepository
	logg *logger.Logger
}

func NewService(repo rulesRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rules repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) CreateRule(ctx context.Context, organizationID uuid.UUID, input CreateRuleInput) (*models.RepricingRule, error) {
	if organizationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization id is required")
	}
	rule := &models.RepricingRule{
		OrganizationID:         organizationID,
		Name:                   strings.TrimSpace(input.Name),
		Description:            input.Description,
		ApplyToAllProducts:     input.ApplyToAllProducts,
		ProductIDs:             cleanIDs(input.ProductIDs),
		ApplyToAllMarketplaces: input.ApplyToAllMarketplaces,
		MarketplaceIDs:         cleanIDs(input.MarketplaceIDs),
		Operation:              input.Operation,
		TargetCompetitor:       input.TargetCompetitor,
		SpecificCompetitorID:   input.SpecificCompetitorID,
		Value:                  input.Value,
		MinPrice:               input.MinPrice,
		MaxPrice:               input.MaxPrice,
		MinMargin:              input.MinMargin,
		Priority:               defaultPriority,
		IsActive:               true,
	}
	if rule.TargetCompetitor == "" {
		rule.TargetCompetitor = enums.TargetLowest
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rule")
	}
	s.logg.Info(s.ruleContext(ctx, rule), "repricing rule created")
	return rule, nil
}

func (s *service) GetRule(ctx context.Context, organizationID, ruleID uuid.UUID) (*models.RepricingRule, error) {
	rule, err := s.repo.FindByID(ctx, organizationID, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rule not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup rule")
	}
	return rule, nil
}

func (s *service) ListRules(ctx context.Context, organizationID uuid.UUID, activeOnly bool) ([]models.RepricingRule, error) {
	rows, err := s.repo.List(ctx, organizationID, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rules")
	}
	return rows, nil
}

func (s *service) UpdateRule(ctx context.Context, organizationID, ruleID uuid.UUID, input UpdateRuleInput) (*models.RepricingRule, error) {
	rule, err := s.GetRule(ctx, organizationID, ruleID)
	if err != nil {
		return nil, err
	}

	applyUpdate(rule, input)
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, rule); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rule not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update rule")
	}
	s.logg.Info(s.ruleContext(ctx, rule), "repricing rule updated")
	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, organizationID, ruleID uuid.UUID) error {
	if err := s.repo.Delete(ctx, organizationID, ruleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "rule not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete rule")
	}
	ctx = s.logg.WithOrganizationID(ctx, organizationID.String())
	s.logg.Info(s.logg.WithField(ctx, "rule_id", ruleID.String()), "repricing rule deleted")
	return nil
}

func (s *service) ruleContext(ctx context.Context, rule *models.RepricingRule) context.Context {
	ctx = s.logg.WithOrganizationID(ctx, rule.OrganizationID.String())
	return s.logg.WithFields(ctx, map[string]any{
		"rule_id":   rule.ID.String(),
		"operation": rule.Operation,
		"priority":  rule.Priority,
	})
}

func applyUpdate(rule *models.RepricingRule, input UpdateRuleInput) {
	if input.Name != nil {
		rule.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		rule.Description = input.Description
	}
	if input.ApplyToAllProducts != nil {
		rule.ApplyToAllProducts = *input.ApplyToAllProducts
	}
	if input.ProductIDs != nil {
		rule.ProductIDs = cleanIDs(*input.ProductIDs)
	}
	if input.ApplyToAllMarketplaces != nil {
		rule.ApplyToAllMarketplaces = *input.ApplyToAllMarketplaces
	}
	if input.MarketplaceIDs != nil {
		rule.MarketplaceIDs = cleanIDs(*input.MarketplaceIDs)
	}
	if input.Operation != nil {
		rule.Operation = *input.Operation
	}
	if input.TargetCompetitor != nil {
		rule.TargetCompetitor = *input.TargetCompetitor
	}
	if input.SpecificCompetitorID != nil {
		rule.SpecificCompetitorID = input.SpecificCompetitorID
	}
	if input.Value != nil {
		rule.Value = *input.Value
	}
	if input.MinPrice != nil {
		rule.MinPrice = *input.MinPrice
	}
	if input.MaxPrice != nil {
		rule.MaxPrice = *input.MaxPrice
	}
	if input.MinMargin != nil {
		rule.MinMargin = *input.MinMargin
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
}

func validateRule(rule *models.RepricingRule) error {
	if rule.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !rule.Operation.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid operation")
	}
	if !rule.TargetCompetitor.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid target competitor")
	}
	if rule.TargetCompetitor == enums.TargetSpecific && (rule.SpecificCompetitorID == nil || strings.TrimSpace(*rule.SpecificCompetitorID) == "") {
		return pkgerrors.New(pkgerrors.CodeValidation, "specificCompetitorId is required for the specific target")
	}
	if !rule.ApplyToAllProducts && len(rule.ProductIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "productIds are required unless applyToAllProducts is set")
	}
	if !rule.ApplyToAllMarketplaces && len(rule.MarketplaceIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "marketplaceIds are required unless applyToAllMarketplaces is set")
	}
	if rule.Value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "value must not be negative")
	}
	if rule.Operation == enums.OperationFixedPrice && !rule.Value.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "fixed_price requires a positive value")
	}
	if (rule.Operation == enums.OperationPercentageMargin || rule.Operation == enums.OperationPercentageDiscount) && rule.Value.GreaterThanOrEqual(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage value must be below 100")
	}
	if rule.Operation == enums.OperationFloorCeiling && !rule.MinPrice.Valid && !rule.MaxPrice.Valid {
		return pkgerrors.New(pkgerrors.CodeValidation, "floor_ceiling requires minPrice or maxPrice")
	}
	if rule.MinPrice.Valid && rule.MinPrice.Decimal.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "minPrice must not be negative")
	}
	if rule.MaxPrice.Valid && !rule.MaxPrice.Decimal.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "maxPrice must be positive")
	}
	if rule.MinPrice.Valid && rule.MaxPrice.Valid && rule.MinPrice.Decimal.GreaterThan(rule.MaxPrice.Decimal) {
		return pkgerrors.New(pkgerrors.CodeValidation, "minPrice must not exceed maxPrice")
	}
	if rule.MinMargin.Valid && (rule.MinMargin.Decimal.IsNegative() || rule.MinMargin.Decimal.GreaterThanOrEqual(hundred)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "minMargin must be between 0 and 100")
	}
	return nil
}

func cleanIDs(values []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
