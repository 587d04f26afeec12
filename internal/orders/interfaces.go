package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
	"github.com/tyrekart/tyrekart-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their children.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	UpdateStatuses(ctx context.Context, id uuid.UUID, status enums.OrderStatus, paymentStatus enums.PaymentStatus) error
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
}
