package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/internal/cart"
	"github.com/tyrekart/tyrekart-backend/pkg/config"
	"github.com/tyrekart/tyrekart-backend/pkg/db"
	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
	"github.com/tyrekart/tyrekart-backend/pkg/enums"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
	"github.com/tyrekart/tyrekart-backend/pkg/outbox"
	"github.com/tyrekart/tyrekart-backend/pkg/types"
)

var testPricing = config.PricingConfig{
	FreeShippingThreshold: "5000",
	ShippingFlatFee:       "250",
}

var testAddress = types.Address{
	Name:       "Asha Rao",
	Phone:      "+91 98765 43210",
	Line1:      "14 MG Road",
	City:       "Bengaluru",
	State:      "KA",
	PostalCode: "560001",
}

func TestCheckoutFreeShippingScenario(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	ctx := context.Background()

	tyre := seedProduct(t, conn, "MRF ZVTV", "4500", 10)
	premium := seedProduct(t, conn, "CEAT SecuraDrive", "5200", 3)
	seedCartLine(t, conn, "user-1", tyre, 2)
	seedCartLine(t, conn, "user-1", premium, 1)

	order, err := svc.Checkout(ctx, "user-1", CheckoutInput{
		ShippingAddress: testAddress,
		PaymentMethod:   enums.PaymentMethodUPI,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if !order.SubtotalAmount.Equal(decimal.NewFromInt(14200)) {
		t.Fatalf("subtotal = %s, want 14200", order.SubtotalAmount)
	}
	if !order.ShippingAmount.IsZero() {
		t.Fatalf("shipping = %s, want 0", order.ShippingAmount)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(14200)) {
		t.Fatalf("total = %s, want 14200", order.TotalAmount)
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("unexpected statuses %s/%s", order.Status, order.PaymentStatus)
	}
	if len(order.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(order.Items))
	}

	// stock decremented per line
	if got := loadStock(t, conn, tyre); got != 8 {
		t.Fatalf("tyre stock = %d, want 8", got)
	}
	if got := loadStock(t, conn, premium); got != 2 {
		t.Fatalf("premium stock = %d, want 2", got)
	}

	// cart cleared
	var cartCount int64
	if err := conn.Model(&models.CartItem{}).Where("user_id = ?", "user-1").Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	if cartCount != 0 {
		t.Fatalf("cart lines = %d, want 0", cartCount)
	}

	// confirmed event committed with the order
	var events []models.OutboxEvent
	if err := conn.Where("aggregate_id = ?", order.ID).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 || events[0].EventType != enums.EventOrderConfirmed {
		t.Fatalf("unexpected outbox rows: %+v", events)
	}
}

func TestCheckoutAddsFlatShippingBelowThreshold(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	tyre := seedProduct(t, conn, "Dunlop D305", "3200", 5)
	seedCartLine(t, conn, "user-1", tyre, 1)

	order, err := svc.Checkout(context.Background(), "user-1", CheckoutInput{
		ShippingAddress: testAddress,
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !order.ShippingAmount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("shipping = %s, want 250", order.ShippingAmount)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(3450)) {
		t.Fatalf("total = %s, want 3450", order.TotalAmount)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	t.Parallel()

	_, svc := newTestService(t)
	_, err := svc.Checkout(context.Background(), "user-1", CheckoutInput{
		ShippingAddress: testAddress,
		PaymentMethod:   enums.PaymentMethodCard,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeEmptyCart {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckoutAllOrNothingOnInsufficientStock(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	plenty := seedProduct(t, conn, "MRF ZVTV", "4500", 10)
	scarce := seedProduct(t, conn, "CEAT SecuraDrive", "5200", 1)
	seedCartLine(t, conn, "user-1", plenty, 2)
	seedCartLine(t, conn, "user-1", scarce, 3)

	_, err := svc.Checkout(context.Background(), "user-1", CheckoutInput{
		ShippingAddress: testAddress,
		PaymentMethod:   enums.PaymentMethodUPI,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	// nothing moved: stock, cart, orders, outbox all untouched
	if got := loadStock(t, conn, plenty); got != 10 {
		t.Fatalf("plenty stock = %d, want 10", got)
	}
	if got := loadStock(t, conn, scarce); got != 1 {
		t.Fatalf("scarce stock = %d, want 1", got)
	}
	var cartCount, orderCount, eventCount int64
	conn.Model(&models.CartItem{}).Count(&cartCount)
	conn.Model(&models.Order{}).Count(&orderCount)
	conn.Model(&models.OutboxEvent{}).Count(&eventCount)
	if cartCount != 2 || orderCount != 0 || eventCount != 0 {
		t.Fatalf("leaked writes: cart=%d orders=%d events=%d", cartCount, orderCount, eventCount)
	}
}

func TestCheckoutUsesB2BPriceWhenRequested(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	b2bPrice := decimal.RequireFromString("4100")
	product := models.Product{
		ID:       uuid.New(),
		Name:     "Apollo Amazer",
		Brand:    "Apollo",
		Size:     "185/65 R15",
		Price:    decimal.RequireFromString("4500"),
		B2BPrice: &b2bPrice,
		Stock:    10,
		IsActive: true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	seedCartLine(t, conn, "fleet-buyer", product.ID, 2)

	order, err := svc.Checkout(context.Background(), "fleet-buyer", CheckoutInput{
		ShippingAddress: testAddress,
		PaymentMethod:   enums.PaymentMethodCard,
		B2B:             true,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !order.Items[0].UnitPrice.Equal(b2bPrice) {
		t.Fatalf("unit price = %s, want 4100", order.Items[0].UnitPrice)
	}
	if !order.SubtotalAmount.Equal(decimal.NewFromInt(8200)) {
		t.Fatalf("subtotal = %s, want 8200", order.SubtotalAmount)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	tyre := seedProduct(t, conn, "MRF ZVTV", "4500", 5)
	seedCartLine(t, conn, "user-1", tyre, 1)

	order, err := svc.Checkout(context.Background(), "user-1", CheckoutInput{
		ShippingAddress: testAddress,
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), "someone-else", order.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	loaded, err := svc.GetOrder(context.Background(), "user-1", order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if loaded.OrderNumber != order.OrderNumber {
		t.Fatalf("order number mismatch %q vs %q", loaded.OrderNumber, order.OrderNumber)
	}
}

func newTestService(t *testing.T) (*gorm.DB, Service) {
	t.Helper()
	conn := newTestDB(t)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), nil)
	svc, err := NewService(NewRepository(conn), cart.NewRepository(conn), db.FromGorm(conn), outboxSvc, testPricing, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return conn, svc
}

func seedProduct(t *testing.T, conn *gorm.DB, name, price string, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:       uuid.New(),
		Name:     name,
		Brand:    "MRF",
		Size:     "185/65 R15",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func seedCartLine(t *testing.T, conn *gorm.DB, userID string, productID uuid.UUID, qty int) {
	t.Helper()
	line := models.CartItem{ID: uuid.New(), UserID: userID, ProductID: productID, Quantity: qty}
	if err := conn.Create(&line).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}
}

func loadStock(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.Stock
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
