package payments

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/internal/orders"
	"github.com/tyrekart/tyrekart-backend/pkg/db"
	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
	"github.com/tyrekart/tyrekart-backend/pkg/enums"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
	"github.com/tyrekart/tyrekart-backend/pkg/outbox"
)

func TestProcessCOD(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, "user-1", "3450")

	result, err := svc.Process(ctx, "user-1", ProcessInput{
		OrderID:       order.ID,
		PaymentMethod: enums.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.Payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s, want pending", result.Payment.Status)
	}
	if result.Payment.TransactionID == nil || !strings.HasPrefix(*result.Payment.TransactionID, "COD-") {
		t.Fatalf("unexpected transaction id %v", result.Payment.TransactionID)
	}
	if result.Payment.PaymentDate != nil {
		t.Fatal("cod payment should have no payment date")
	}
	if result.Order.Status != enums.OrderStatusConfirmed || result.Order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("unexpected order state %s/%s", result.Order.Status, result.Order.PaymentStatus)
	}

	var events []models.OutboxEvent
	if err := conn.Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 || events[0].EventType != enums.EventPaymentRecorded {
		t.Fatalf("unexpected outbox rows: %+v", events)
	}
}

func TestProcessUPISettlesOptimistically(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, "user-1", "14200")

	result, err := svc.Process(ctx, "user-1", ProcessInput{
		OrderID:        order.ID,
		PaymentMethod:  enums.PaymentMethodUPI,
		PaymentDetails: map[string]any{"upi_id": "asha@okhdfc"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.Payment.Status != enums.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", result.Payment.Status)
	}
	if result.Payment.TransactionID == nil || !strings.HasPrefix(*result.Payment.TransactionID, "UPI-") {
		t.Fatalf("unexpected transaction id %v", result.Payment.TransactionID)
	}
	if result.Payment.PaymentDate == nil {
		t.Fatal("paid payment should carry a payment date")
	}
	if !result.Payment.Amount.Equal(decimal.NewFromInt(14200)) {
		t.Fatalf("amount = %s, want 14200", result.Payment.Amount)
	}
	if result.Order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("order payment status = %s, want paid", result.Order.PaymentStatus)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(result.Payment.GatewayResponse, &snapshot); err != nil {
		t.Fatalf("decode gateway response: %v", err)
	}
	if snapshot["upi_id"] != "as***@okhdfc" {
		t.Fatalf("upi id not masked: %v", snapshot["upi_id"])
	}

	var events []models.OutboxEvent
	if err := conn.Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 || events[0].EventType != enums.EventOrderPaid {
		t.Fatalf("unexpected outbox rows: %+v", events)
	}
}

func TestProcessCardMasksDetails(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	order := seedOrder(t, conn, "user-1", "9000")

	result, err := svc.Process(context.Background(), "user-1", ProcessInput{
		OrderID:       order.ID,
		PaymentMethod: enums.PaymentMethodCard,
		PaymentDetails: map[string]any{
			"card_number": "4111 1111 1111 1234",
			"card_holder": "Asha Rao",
			"cvv":         "999",
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(result.Payment.GatewayResponse, &snapshot); err != nil {
		t.Fatalf("decode gateway response: %v", err)
	}
	if snapshot["card_number"] != "**** **** **** 1234" {
		t.Fatalf("card number not masked: %v", snapshot["card_number"])
	}
	if _, ok := snapshot["cvv"]; ok {
		t.Fatal("cvv must never be stored")
	}
	if !strings.HasPrefix(*result.Payment.TransactionID, "CARD-") {
		t.Fatalf("unexpected transaction id %v", *result.Payment.TransactionID)
	}
}

func TestProcessGuards(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, "user-1", "5000")

	cases := []struct {
		name   string
		userID string
		input  ProcessInput
		code   pkgerrors.Code
	}{
		{
			name:   "unknown order",
			userID: "user-1",
			input:  ProcessInput{OrderID: uuid.New(), PaymentMethod: enums.PaymentMethodCOD},
			code:   pkgerrors.CodeNotFound,
		},
		{
			name:   "foreign order",
			userID: "someone-else",
			input:  ProcessInput{OrderID: order.ID, PaymentMethod: enums.PaymentMethodCOD},
			code:   pkgerrors.CodeForbidden,
		},
		{
			name:   "unsupported method",
			userID: "user-1",
			input:  ProcessInput{OrderID: order.ID, PaymentMethod: enums.PaymentMethod("emi")},
			code:   pkgerrors.CodeUnsupportedMethod,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Process(ctx, tc.userID, tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != tc.code {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestProcessAlreadyPaid(t *testing.T) {
	t.Parallel()

	conn, svc := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, "user-1", "5000")

	if _, err := svc.Process(ctx, "user-1", ProcessInput{OrderID: order.ID, PaymentMethod: enums.PaymentMethodWallet}); err != nil {
		t.Fatalf("first process: %v", err)
	}

	_, err := svc.Process(ctx, "user-1", ProcessInput{OrderID: order.ID, PaymentMethod: enums.PaymentMethodWallet})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeAlreadyPaid {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newTestService(t *testing.T) (*gorm.DB, Service) {
	t.Helper()
	conn := newTestDB(t)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), nil)
	svc, err := NewService(NewRepository(conn), orders.NewRepository(conn), db.FromGorm(conn), outboxSvc, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return conn, svc
}

func seedOrder(t *testing.T, conn *gorm.DB, userID, total string) *models.Order {
	t.Helper()
	amount := decimal.RequireFromString(total)
	order := models.Order{
		ID:             uuid.New(),
		OrderNumber:    "TYR-20260829120000-" + uuid.NewString()[:5],
		UserID:         userID,
		SubtotalAmount: amount,
		ShippingAmount: decimal.Zero,
		TotalAmount:    amount,
		Status:         enums.OrderStatusPending,
		PaymentStatus:  enums.PaymentStatusPending,
		PaymentMethod:  enums.PaymentMethodUPI,
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
