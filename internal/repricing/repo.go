package repricing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/repricer-backend/internal/repo"
	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/pagination"
)

// AdjustmentRepository persists the audit trail of repricing runs.
type AdjustmentRepository struct {
	repo.Base
}

func NewAdjustmentRepository(db *gorm.DB) *AdjustmentRepository {
	return &AdjustmentRepository{Base: repo.NewBase(db)}
}

// InsertBatchWithTx stores every adjustment of one run. Rows without an ID get one.
func (r *AdjustmentRepository) InsertBatchWithTx(ctx context.Context, tx *gorm.DB, rows []models.PriceAdjustment) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	return r.Tx(ctx, tx).Create(&rows).Error
}

// ListForProduct returns adjustments for one pair, newest first, starting after cursor.
func (r *AdjustmentRepository) ListForProduct(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, limit int, cursor *pagination.Cursor) ([]models.PriceAdjustment, error) {
	query := r.Scoped(ctx, nil, organizationID).
		Where("product_id = ? AND marketplace_id = ?", productID, marketplaceID)
	if cursor != nil {
		query = query.Where("(applied_at < ? OR (applied_at = ? AND id < ?))", cursor.At, cursor.At, cursor.ID)
	}
	var rows []models.PriceAdjustment
	err := query.
		Order("applied_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
