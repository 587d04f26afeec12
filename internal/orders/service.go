package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/internal/cart"
	"github.com/tyrekart/tyrekart-backend/internal/inventory"
	"github.com/tyrekart/tyrekart-backend/pkg/config"
	"github.com/tyrekart/tyrekart-backend/pkg/db"
	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
	"github.com/tyrekart/tyrekart-backend/pkg/enums"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
	"github.com/tyrekart/tyrekart-backend/pkg/metrics"
	"github.com/tyrekart/tyrekart-backend/pkg/outbox"
	"github.com/tyrekart/tyrekart-backend/pkg/outbox/payloads"
)

// maxOrderNumberAttempts bounds the retry loop on order-number collisions.
const maxOrderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service converts carts into orders.
type Service interface {
	Checkout(ctx context.Context, userID string, input CheckoutInput) (*models.Order, error)
	GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
}

type service struct {
	repo     Repository
	cartRepo cart.Repository
	tx       txRunner
	outbox   outboxPublisher
	pricing  config.PricingConfig
	metrics  *metrics.CheckoutMetrics
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, cartRepo cart.Repository, tx txRunner, outboxSvc outboxPublisher, pricing config.PricingConfig, checkoutMetrics *metrics.CheckoutMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		cartRepo: cartRepo,
		tx:       tx,
		outbox:   outboxSvc,
		pricing:  pricing,
		metrics:  checkoutMetrics,
	}, nil
}

// Checkout converts the user's cart into an order in a single transaction:
// price snapshot, shipping, stock decrement, cart clear, and the confirmed
// event all commit or roll back together. A duplicate order number retries
// the whole transaction with a fresh number.
func (s *service) Checkout(ctx context.Context, userID string, input CheckoutInput) (*models.Order, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnsupportedMethod, "unsupported payment method")
	}
	if input.ShippingAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}

	var created *models.Order
	var err error
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		created, err = s.checkoutOnce(ctx, userID, input)
		if err != nil && db.IsUniqueViolation(err, "ux_orders_order_number") {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncOrderCreated()
	return created, nil
}

func (s *service) checkoutOnce(ctx context.Context, userID string, input CheckoutInput) (*models.Order, error) {
	orderNumber, err := NewOrderNumber()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	var created *models.Order
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		repo := s.repo.WithTx(tx)

		lines, err := cartRepo.FindByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		requests := make([]inventory.ReservationRequest, 0, len(lines))
		for _, line := range lines {
			requests = append(requests, inventory.ReservationRequest{ProductID: line.ProductID, Qty: line.Quantity})
		}
		results, err := inventory.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}
		var rejected []map[string]any
		for _, res := range results {
			if !res.Reserved {
				rejected = append(rejected, map[string]any{
					"productId": res.ProductID,
					"reason":    res.Reason,
				})
			}
		}
		if len(rejected) > 0 {
			s.metrics.IncStockRejection()
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
				WithDetails(rejected)
		}

		billing := input.ShippingAddress
		if input.BillingAddress != nil && !input.BillingAddress.IsZero() {
			billing = *input.BillingAddress
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		itemCount := 0
		for _, line := range lines {
			if line.Product == nil {
				return pkgerrors.New(pkgerrors.CodeDependency, "cart line missing product")
			}
			unitPrice := unitPriceFor(line.Product, input.B2B)
			lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, models.OrderItem{
				ID:          uuid.New(),
				ProductID:   line.ProductID,
				ProductName: line.Product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   unitPrice,
				TotalPrice:  lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
			itemCount += line.Quantity
		}

		shipping := s.shippingFor(subtotal)
		order := &models.Order{
			ID:              uuid.New(),
			OrderNumber:     orderNumber,
			UserID:          userID,
			SubtotalAmount:  subtotal,
			ShippingAmount:  shipping,
			TotalAmount:     subtotal.Add(shipping),
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
			PaymentMethod:   input.PaymentMethod,
			ShippingAddress: input.ShippingAddress.Normalize(),
			BillingAddress:  billing.Normalize(),
			Notes:           input.Notes,
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		if err := cartRepo.ClearUser(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		order.Items = items
		created = order

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderConfirmedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      userID,
				TotalAmount: order.TotalAmount.StringFixed(2),
				Method:      order.PaymentMethod,
				ItemCount:   itemCount,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// GetOrder loads an order owned by the caller.
func (s *service) GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

// ListOrders returns the caller's orders, newest first.
func (s *service) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) shippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(s.pricing.FreeShippingThresholdAmount()) {
		return decimal.Zero
	}
	return s.pricing.ShippingFlatFeeAmount()
}

func unitPriceFor(product *models.Product, b2b bool) decimal.Decimal {
	if b2b && product.B2BPrice != nil {
		return *product.B2BPrice
	}
	return product.Price
}
