package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
)

// ReservationRequest asks for qty units of one product.
type ReservationRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// ReservationResult reports the outcome for a single request line.
type ReservationResult struct {
	ProductID uuid.UUID
	Reserved  bool
	Reason    string
}

// Reserve decrements stock for each request line inside the caller's
// transaction. Each decrement is a single conditional UPDATE guarded by
// stock >= qty, so concurrent checkouts cannot drive stock negative: the
// row lock serializes them and the loser's guard fails.
//
// A line that cannot be satisfied is reported in its result rather than
// returned as an error; the caller decides whether to roll back.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}

	results := make([]ReservationResult, 0, len(requests))
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}

		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND is_active = ? AND stock >= ?", req.ProductID, true, req.Qty).
			UpdateColumn("stock", gorm.Expr("stock - ?", req.Qty))
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
		}

		result := ReservationResult{ProductID: req.ProductID, Reserved: res.RowsAffected == 1}
		if !result.Reserved {
			result.Reason = insufficientReason(ctx, tx, req.ProductID)
		}
		results = append(results, result)
	}
	return results, nil
}

// Release returns qty units to the shelf. Used when a gateway webhook
// fails or cancels an order that had already decremented stock.
func Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release qty must be positive")
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock product")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// Available reports the current stock of an active product. The value is
// advisory only; Reserve re-checks atomically at decrement time.
func Available(ctx context.Context, db *gorm.DB, productID uuid.UUID) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("db required")
	}

	var product models.Product
	err := db.WithContext(ctx).
		Select("id", "stock", "is_active").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	if !product.IsActive {
		return 0, nil
	}
	return product.Stock, nil
}

func insufficientReason(ctx context.Context, tx *gorm.DB, productID uuid.UUID) string {
	var product models.Product
	err := tx.WithContext(ctx).
		Select("id", "stock", "is_active").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return "product unavailable"
	}
	if !product.IsActive {
		return "product is inactive"
	}
	return fmt.Sprintf("only %d in stock", product.Stock)
}
