package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/api/middleware"
	cartsvc "github.com/tyrekart/tyrekart-backend/internal/cart"
	ordersvc "github.com/tyrekart/tyrekart-backend/internal/orders"
	paymentsvc "github.com/tyrekart/tyrekart-backend/internal/payments"
	"github.com/tyrekart/tyrekart-backend/internal/reviews"
	gatewaywebhook "github.com/tyrekart/tyrekart-backend/internal/webhooks/gateway"
	"github.com/tyrekart/tyrekart-backend/pkg/config"
	"github.com/tyrekart/tyrekart-backend/pkg/db"
	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
	"github.com/tyrekart/tyrekart-backend/pkg/outbox"
)

type testStack struct {
	conn     *gorm.DB
	cart     cartsvc.Service
	orders   ordersvc.Service
	payments paymentsvc.Service
	webhooks *gatewaywebhook.Service
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	dsn := "file:controllers_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Review{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runner := db.FromGorm(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), nil)
	pricing := config.PricingConfig{FreeShippingThreshold: "5000", ShippingFlatFee: "250"}

	cartService, err := cartsvc.NewService(cartsvc.NewRepository(conn), runner, reviews.NewRepository(conn))
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	orderService, err := ordersvc.NewService(ordersvc.NewRepository(conn), cartsvc.NewRepository(conn), runner, outboxSvc, pricing, nil)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	paymentService, err := paymentsvc.NewService(paymentsvc.NewRepository(conn), ordersvc.NewRepository(conn), runner, outboxSvc, nil)
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	webhookService, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		PaymentsRepo:      paymentsvc.NewRepository(conn),
		OrdersRepo:        ordersvc.NewRepository(conn),
		TransactionRunner: runner,
		Outbox:            outboxSvc,
	})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}

	return &testStack{
		conn:     conn,
		cart:     cartService,
		orders:   orderService,
		payments: paymentService,
		webhooks: webhookService,
	}
}

func (s *testStack) seedProduct(t *testing.T, price string, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:       uuid.New(),
		Name:     "MRF ZVTV",
		Brand:    "MRF",
		Size:     "185/65 R15",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	if err := s.conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func postJSON(t *testing.T, handler http.HandlerFunc, target, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	if userID != "" {
		req = asUser(req, userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestCartAddAndGet(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	product := stack.seedProduct(t, "4500", 10)

	rec := postJSON(t, CartAdd(stack.cart, nil), "/api/v1/cart", "user-1", map[string]any{
		"product_id": product,
		"quantity":   2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d (%s)", rec.Code, rec.Body.String())
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), "user-1")
	getRec := httptest.NewRecorder()
	CartGet(stack.cart, nil).ServeHTTP(getRec, req)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d", getRec.Code)
	}

	var cart cartsvc.CartDTO
	decodeData(t, getRec, &cart)
	if cart.ItemCount != 2 || len(cart.Items) != 1 {
		t.Fatalf("unexpected cart %+v", cart)
	}
}

func TestCartAddRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	rec := postJSON(t, CartAdd(stack.cart, nil), "/api/v1/cart", "user-1", map[string]any{
		"product_id": uuid.New(),
		"quantity":   1,
		"discount":   99,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if errorCode(t, rec) != "VALIDATION_ERROR" {
		t.Fatalf("code = %s", errorCode(t, rec))
	}
}

func TestCheckoutEndToEnd(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	product := stack.seedProduct(t, "4500", 10)

	addRec := postJSON(t, CartAdd(stack.cart, nil), "/api/v1/cart", "user-1", map[string]any{
		"product_id": product,
		"quantity":   2,
	})
	if addRec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", addRec.Code)
	}

	rec := postJSON(t, Checkout(stack.orders, nil), "/api/v1/checkout", "user-1", map[string]any{
		"shipping_address": map[string]string{
			"name":        "Asha Rao",
			"phone":       "+91 98765 43210",
			"line1":       "14 MG Road",
			"city":        "Bengaluru",
			"state":       "KA",
			"postal_code": "560001",
		},
		"payment_method": "upi",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d (%s)", rec.Code, rec.Body.String())
	}

	var order models.Order
	decodeData(t, rec, &order)
	if order.OrderNumber == "" {
		t.Fatal("order number missing")
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("total = %s, want 9000", order.TotalAmount)
	}
}

func TestCheckoutUnsupportedMethod(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	rec := postJSON(t, Checkout(stack.orders, nil), "/api/v1/checkout", "user-1", map[string]any{
		"shipping_address": map[string]string{"name": "A", "line1": "B", "city": "C"},
		"payment_method":   "emi",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if errorCode(t, rec) != "UNSUPPORTED_METHOD" {
		t.Fatalf("code = %s", errorCode(t, rec))
	}
}

func TestPaymentsProcessCOD(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t)
	product := stack.seedProduct(t, "4500", 10)

	postJSON(t, CartAdd(stack.cart, nil), "/api/v1/cart", "user-1", map[string]any{
		"product_id": product,
		"quantity":   1,
	})
	checkoutRec := postJSON(t, Checkout(stack.orders, nil), "/api/v1/checkout", "user-1", map[string]any{
		"shipping_address": map[string]string{"name": "A", "line1": "B", "city": "C"},
		"payment_method":   "cod",
	})
	var order models.Order
	decodeData(t, checkoutRec, &order)

	rec := postJSON(t, PaymentsProcess(stack.payments, nil), "/api/v1/payments/process", "user-1", map[string]any{
		"order_id":       order.ID,
		"payment_method": "cod",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("process status = %d (%s)", rec.Code, rec.Body.String())
	}

	var result paymentsvc.Result
	decodeData(t, rec, &result)
	if result.Payment.Status != "pending" || result.Order.Status != "confirmed" {
		t.Fatalf("unexpected result %+v", result)
	}
}

type fakeStore struct {
	keys map[string]struct{}
	err  error
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if _, ok := f.keys[key]; ok {
		return "1", nil
	}
	return "", errors.New("missing")
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = struct{}{}
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}
