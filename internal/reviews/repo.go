package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// Repository exposes the read side of product reviews.
type Repository interface {
	AverageForProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]float64, error)
}

// NewRepository builds a reviews repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// AverageForProducts returns the mean rating per product. Products with no
// reviews are absent from the result map.
func (r *repository) AverageForProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]float64, error) {
	averages := make(map[uuid.UUID]float64, len(productIDs))
	if len(productIDs) == 0 {
		return averages, nil
	}

	type row struct {
		ProductID uuid.UUID
		Avg       float64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("product_id, AVG(rating) AS avg").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, rr := range rows {
		averages[rr.ProductID] = rr.Avg
	}
	return averages, nil
}
