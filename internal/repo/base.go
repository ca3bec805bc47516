package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by the domain repositories for connection and tenant scoping.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the root connection, bound to ctx when ctx is non-nil.
func (b Base) DB(ctx context.Context) *gorm.DB {
	return bind(ctx, b.db)
}

// Tx returns tx bound to ctx, or the root connection when no transaction is active.
func (b Base) Tx(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		tx = b.db
	}
	return bind(ctx, tx)
}

// Scoped restricts a query on tx (or the root connection) to one organization's rows.
func (b Base) Scoped(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID) *gorm.DB {
	return b.Tx(ctx, tx).Where("organization_id = ?", organizationID)
}

// RequireAffected turns a write that matched no rows into gorm.ErrRecordNotFound.
func RequireAffected(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func bind(ctx context.Context, db *gorm.DB) *gorm.DB {
	if ctx == nil {
		return db
	}
	return db.WithContext(ctx)
}
