package buybox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/internal/repo"
	"github.com/angelmondragon/repricer-backend/pkg/db/models"
)

// PricingUpdate carries the only fields repricing may change on a status.
type PricingUpdate struct {
	Price       decimal.Decimal
	Shipping    decimal.Decimal
	LastUpdated time.Time
}

// StatusRepository persists BuyBox statuses.
type StatusRepository struct {
	repo.Base
}

// NewStatusRepository binds a status repository to db.
func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{Base: repo.NewBase(db)}
}

// FindByProductAndMarketplace returns gorm.ErrRecordNotFound when the pair has no status yet.
func (r *StatusRepository) FindByProductAndMarketplace(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) (*models.BuyBoxStatus, error) {
	return r.FindByProductAndMarketplaceWithTx(ctx, nil, organizationID, productID, marketplaceID)
}

func (r *StatusRepository) FindByProductAndMarketplaceWithTx(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID, productID, marketplaceID string) (*models.BuyBoxStatus, error) {
	var status models.BuyBoxStatus
	err := r.Scoped(ctx, tx, organizationID).
		Where("product_id = ? AND marketplace_id = ?", productID, marketplaceID).
		First(&status).Error
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// ListMonitored returns every monitored status of the organization.
func (r *StatusRepository) ListMonitored(ctx context.Context, organizationID uuid.UUID) ([]models.BuyBoxStatus, error) {
	var rows []models.BuyBoxStatus
	err := r.Scoped(ctx, nil, organizationID).
		Where("is_monitored = ?", true).
		Order("product_id ASC").
		Order("marketplace_id ASC").
		Find(&rows).Error
	return rows, err
}

// ListOrganizationsWithMonitored returns the organizations owning at least one monitored status.
func (r *StatusRepository) ListOrganizationsWithMonitored(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).
		Model(&models.BuyBoxStatus{}).
		Where("is_monitored = ?", true).
		Distinct("organization_id").
		Order("organization_id ASC").
		Pluck("organization_id", &ids).Error
	return ids, err
}

// UpsertWithTx creates the status when its ID is unset and saves it otherwise.
func (r *StatusRepository) UpsertWithTx(ctx context.Context, tx *gorm.DB, status *models.BuyBoxStatus) error {
	db := r.Tx(ctx, tx)
	if status.ID == uuid.Nil {
		status.ID = uuid.New()
		return db.Create(status).Error
	}
	return db.Save(status).Error
}

// UpdatePricingWithTx writes a repriced price and shipping.
func (r *StatusRepository) UpdatePricingWithTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, update PricingUpdate) error {
	return r.Tx(ctx, tx).
		Model(&models.BuyBoxStatus{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_price":    update.Price,
			"current_shipping": update.Shipping,
			"last_updated":     update.LastUpdated,
		}).Error
}

// MarkCheckedWithTx stamps the monitoring bookkeeping of a status.
func (r *StatusRepository) MarkCheckedWithTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.Tx(ctx, tx).
		Model(&models.BuyBoxStatus{}).
		Where("id = ?", id).
		Update("last_checked", at).Error
}

// HistoryRepository persists append-only status snapshots.
type HistoryRepository struct {
	repo.Base
}

// NewHistoryRepository binds a history repository to db.
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{Base: repo.NewBase(db)}
}

// CreateFromStatusWithTx appends a snapshot of status recorded at the given time.
func (r *HistoryRepository) CreateFromStatusWithTx(ctx context.Context, tx *gorm.DB, status models.BuyBoxStatus, recordedAt time.Time) (*models.BuyBoxHistory, error) {
	entry := models.HistoryFromStatus(status, recordedAt)
	if err := r.Tx(ctx, tx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteOlderThan removes the organization's snapshots recorded before cutoff.
func (r *HistoryRepository) DeleteOlderThan(ctx context.Context, organizationID uuid.UUID, cutoff time.Time) (int64, error) {
	result := r.Scoped(ctx, nil, organizationID).
		Where("recorded_at < ?", cutoff).
		Delete(&models.BuyBoxHistory{})
	return result.RowsAffected, result.Error
}

// ListSince returns snapshots for one pair recorded at or after since, newest first.
func (r *HistoryRepository) ListSince(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, since time.Time, limit int) ([]models.BuyBoxHistory, error) {
	query := r.Scoped(ctx, nil, organizationID).
		Where("product_id = ? AND marketplace_id = ? AND recorded_at >= ?", productID, marketplaceID, since).
		Order("recorded_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.BuyBoxHistory
	err := query.Find(&rows).Error
	return rows, err
}
