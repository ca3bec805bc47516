package rules

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/internal/pricing"
	"github.com/angelmondragon/repricer-backend/internal/repo"
	"github.com/angelmondragon/repricer-backend/pkg/db/models"
)

// mutableColumns are the rule columns management writes may touch. Counters are owned by the
// repricing run and never listed here.
var mutableColumns = []string{
	"name",
	"description",
	"apply_to_all_products",
	"product_ids",
	"apply_to_all_marketplaces",
	"marketplace_ids",
	"operation",
	"target_competitor",
	"specific_competitor_id",
	"value",
	"min_price",
	"max_price",
	"min_margin",
	"priority",
	"is_active",
	"updated_at",
}

// Repository persists repricing rules.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, rule *models.RepricingRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	return r.DB(ctx).Create(rule).Error
}

// FindByID returns gorm.ErrRecordNotFound when the rule does not belong to the organization.
func (r *Repository) FindByID(ctx context.Context, organizationID, id uuid.UUID) (*models.RepricingRule, error) {
	var rule models.RepricingRule
	if err := r.Scoped(ctx, nil, organizationID).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// List returns the organization's rules in evaluation order.
func (r *Repository) List(ctx context.Context, organizationID uuid.UUID, activeOnly bool) ([]models.RepricingRule, error) {
	query := r.Scoped(ctx, nil, organizationID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.RepricingRule
	err := query.Order("priority ASC").Order("created_at ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

// FindRulesForProduct returns the active rules whose scope covers the pair, in priority order.
func (r *Repository) FindRulesForProduct(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) ([]models.RepricingRule, error) {
	active, err := r.List(ctx, organizationID, true)
	if err != nil {
		return nil, err
	}
	applicable := make([]models.RepricingRule, 0, len(active))
	for _, rule := range active {
		if pricing.RuleApplies(rule, productID, marketplaceID) {
			applicable = append(applicable, rule)
		}
	}
	pricing.SortByPriority(applicable)
	return applicable, nil
}

// Update writes the management fields of rule.
func (r *Repository) Update(ctx context.Context, rule *models.RepricingRule) error {
	result := r.Scoped(ctx, nil, rule.OrganizationID).
		Model(&models.RepricingRule{}).
		Where("id = ?", rule.ID).
		Select(mutableColumns).
		Updates(rule)
	return repo.RequireAffected(result)
}

// Delete soft-deletes a rule.
func (r *Repository) Delete(ctx context.Context, organizationID, id uuid.UUID) error {
	result := r.Scoped(ctx, nil, organizationID).Where("id = ?", id).Delete(&models.RepricingRule{})
	return repo.RequireAffected(result)
}

// RecordExecution atomically bumps the execution counters and returns the updated rule.
func (r *Repository) RecordExecution(ctx context.Context, id uuid.UUID, success bool, at time.Time) (*models.RepricingRule, error) {
	updates := map[string]any{
		"execution_count":  gorm.Expr("execution_count + 1"),
		"last_executed_at": at,
	}
	if success {
		updates["success_count"] = gorm.Expr("success_count + 1")
	} else {
		updates["failure_count"] = gorm.Expr("failure_count + 1")
	}

	db := r.DB(ctx)
	result := db.Model(&models.RepricingRule{}).Where("id = ?", id).Updates(updates)
	if err := repo.RequireAffected(result); err != nil {
		return nil, err
	}

	var rule models.RepricingRule
	if err := db.Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}
