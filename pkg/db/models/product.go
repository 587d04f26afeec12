package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a tyre listing. Stock is mutated exclusively through the
// inventory ledger's conditional updates; a product row is never deleted
// while an order item references it.
type Product struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name      string           `gorm:"column:name;not null"`
	Brand     string           `gorm:"column:brand;not null"`
	Size      string           `gorm:"column:size;not null"`
	Price     decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	B2BPrice  *decimal.Decimal `gorm:"column:b2b_price;type:numeric(12,2)"`
	Stock     int              `gorm:"column:stock;not null;default:0"`
	IsActive  bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
