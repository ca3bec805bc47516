package rules

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
)

func setupRulesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	rules := `
CREATE TABLE IF NOT EXISTS repricing_rules (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  apply_to_all_products INTEGER NOT NULL DEFAULT 0,
  product_ids TEXT,
  apply_to_all_marketplaces INTEGER NOT NULL DEFAULT 0,
  marketplace_ids TEXT,
  operation TEXT NOT NULL,
  target_competitor TEXT NOT NULL,
  specific_competitor_id TEXT,
  value TEXT NOT NULL DEFAULT '0',
  min_price TEXT,
  max_price TEXT,
  min_margin TEXT,
  priority INTEGER NOT NULL DEFAULT 100,
  is_active INTEGER NOT NULL DEFAULT 1,
  execution_count INTEGER NOT NULL DEFAULT 0,
  success_count INTEGER NOT NULL DEFAULT 0,
  failure_count INTEGER NOT NULL DEFAULT 0,
  last_executed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`
	require.NoError(t, db.Exec(rules).Error)
	return db
}

func seedRule(t *testing.T, repo *Repository, org uuid.UUID, name string, priority int, mutate func(*models.RepricingRule)) *models.RepricingRule {
	t.Helper()
	rule := &models.RepricingRule{
		OrganizationID:         org,
		Name:                   name,
		ApplyToAllProducts:     true,
		ApplyToAllMarketplaces: true,
		Operation:              enums.OperationMatch,
		TargetCompetitor:       enums.TargetLowest,
		Value:                  decimal.Zero,
		Priority:               priority,
		IsActive:               true,
	}
	if mutate != nil {
		mutate(rule)
	}
	require.NoError(t, repo.Create(context.Background(), rule))
	return rule
}

func TestFindRulesForProductFiltersAndOrders(t *testing.T) {
	repo := NewRepository(setupRulesTestDB(t))
	ctx := context.Background()
	org := uuid.New()

	seedRule(t, repo, org, "global-late", 5, nil)
	seedRule(t, repo, org, "scoped", 1, func(r *models.RepricingRule) {
		r.ApplyToAllProducts = false
		r.ProductIDs = pq.StringArray{"sku-1"}
	})
	seedRule(t, repo, org, "other-product", 0, func(r *models.RepricingRule) {
		r.ApplyToAllProducts = false
		r.ProductIDs = pq.StringArray{"sku-2"}
	})
	seedRule(t, repo, org, "inactive", 0, func(r *models.RepricingRule) { r.IsActive = false })
	seedRule(t, repo, org, "other-market", 0, func(r *models.RepricingRule) {
		r.ApplyToAllMarketplaces = false
		r.MarketplaceIDs = pq.StringArray{"ebay"}
	})
	seedRule(t, repo, uuid.New(), "foreign", 0, nil)

	rules, err := repo.FindRulesForProduct(ctx, org, "sku-1", "amazon-us")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "scoped", rules[0].Name)
	assert.Equal(t, "global-late", rules[1].Name)
	assert.Equal(t, pq.StringArray{"sku-1"}, rules[0].ProductIDs)
}

func TestCreateStoresZeroValuedFields(t *testing.T) {
	repo := NewRepository(setupRulesTestDB(t))
	ctx := context.Background()
	org := uuid.New()
	rule := seedRule(t, repo, org, "paused", 0, func(r *models.RepricingRule) { r.IsActive = false })

	stored, err := repo.FindByID(ctx, org, rule.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 0, stored.Priority)

	applicable, err := repo.FindRulesForProduct(ctx, org, "sku-1", "amazon-us")
	require.NoError(t, err)
	assert.Empty(t, applicable)
}

func TestRecordExecutionIncrementsCounters(t *testing.T) {
	repo := NewRepository(setupRulesTestDB(t))
	ctx := context.Background()
	rule := seedRule(t, repo, uuid.New(), "counted", 1, nil)
	at := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	_, err := repo.RecordExecution(ctx, rule.ID, true, at)
	require.NoError(t, err)
	updated, err := repo.RecordExecution(ctx, rule.ID, false, at)
	require.NoError(t, err)

	assert.Equal(t, int64(2), updated.ExecutionCount)
	assert.Equal(t, int64(1), updated.SuccessCount)
	assert.Equal(t, int64(1), updated.FailureCount)
	require.NotNil(t, updated.LastExecutedAt)

	_, err = repo.RecordExecution(ctx, uuid.New(), true, at)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateDoesNotTouchCounters(t *testing.T) {
	repo := NewRepository(setupRulesTestDB(t))
	ctx := context.Background()
	org := uuid.New()
	rule := seedRule(t, repo, org, "before", 1, nil)
	_, err := repo.RecordExecution(ctx, rule.ID, true, time.Now().UTC())
	require.NoError(t, err)

	rule.Name = "after"
	rule.ExecutionCount = 0
	rule.IsActive = false
	require.NoError(t, repo.Update(ctx, rule))

	stored, err := repo.FindByID(ctx, org, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", stored.Name)
	assert.False(t, stored.IsActive)
	assert.Equal(t, int64(1), stored.ExecutionCount)
}

func TestDeleteSoftDeletesWithinOrganization(t *testing.T) {
	repo := NewRepository(setupRulesTestDB(t))
	ctx := context.Background()
	org := uuid.New()
	rule := seedRule(t, repo, org, "doomed", 1, nil)

	assert.ErrorIs(t, repo.Delete(ctx, uuid.New(), rule.ID), gorm.ErrRecordNotFound)
	require.NoError(t, repo.Delete(ctx, org, rule.ID))
	_, err := repo.FindByID(ctx, org, rule.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	rows, err := repo.List(ctx, org, false)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
