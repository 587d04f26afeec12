package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/internal/orders"
	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
	"github.com/tyrekart/tyrekart-backend/pkg/enums"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
	"github.com/tyrekart/tyrekart-backend/pkg/metrics"
	"github.com/tyrekart/tyrekart-backend/pkg/outbox"
	"github.com/tyrekart/tyrekart-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ProcessInput captures a buyer-initiated payment attempt.
type ProcessInput struct {
	OrderID        uuid.UUID
	PaymentMethod  enums.PaymentMethod
	PaymentDetails map[string]any
}

// Result reports the payment attempt outcome alongside the order's new state.
type Result struct {
	Payment *models.Payment `json:"payment"`
	Order   *models.Order   `json:"order"`
}

// Service dispatches payment attempts by method.
type Service interface {
	Process(ctx context.Context, userID string, input ProcessInput) (*Result, error)
}

type service struct {
	repo      Repository
	ordersRep orders.Repository
	tx        txRunner
	outbox    outboxPublisher
	metrics   *metrics.CheckoutMetrics
}

// NewService builds a payment service with the required dependencies.
func NewService(repo Repository, ordersRepo orders.Repository, tx txRunner, outboxSvc outboxPublisher, checkoutMetrics *metrics.CheckoutMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      repo,
		ordersRep: ordersRepo,
		tx:        tx,
		outbox:    outboxSvc,
		metrics:   checkoutMetrics,
	}, nil
}

// Process records a payment attempt for an order the caller owns. COD leaves
// the payment pending; card, UPI and wallet settle optimistically, subject to
// later gateway reconciliation via the webhook.
func (s *service) Process(ctx context.Context, userID string, input ProcessInput) (*Result, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRep.WithTx(tx)
		repo := s.repo.WithTx(tx)

		order, err := ordersRepo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "order is already paid")
		}

		payment, paymentStatus, err := buildPayment(order, input)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		if err := ordersRepo.UpdateStatuses(ctx, order.ID, enums.OrderStatusConfirmed, paymentStatus); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order statuses")
		}
		order.Status = enums.OrderStatusConfirmed
		order.PaymentStatus = paymentStatus
		result = &Result{Payment: payment, Order: order}

		return s.emitEvent(ctx, tx, order, payment, userID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPayment(string(input.PaymentMethod), string(result.Payment.Status))
	return result, nil
}

func buildPayment(order *models.Order, input ProcessInput) (*models.Payment, enums.PaymentStatus, error) {
	now := time.Now().UTC()
	payment := &models.Payment{
		ID:            uuid.New(),
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		PaymentMethod: input.PaymentMethod,
	}

	switch input.PaymentMethod {
	case enums.PaymentMethodCOD:
		txnID, err := newTransactionID("COD")
		if err != nil {
			return nil, "", err
		}
		payment.Status = enums.PaymentStatusPending
		payment.TransactionID = &txnID
		return payment, enums.PaymentStatusPending, nil

	case enums.PaymentMethodCard, enums.PaymentMethodUPI, enums.PaymentMethodWallet:
		txnID, err := newTransactionID(transactionPrefix(input.PaymentMethod))
		if err != nil {
			return nil, "", err
		}
		snapshot, err := json.Marshal(maskDetails(input.PaymentMethod, input.PaymentDetails))
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "snapshot payment details")
		}
		payment.Status = enums.PaymentStatusPaid
		payment.TransactionID = &txnID
		payment.PaymentDate = &now
		payment.GatewayResponse = snapshot
		return payment, enums.PaymentStatusPaid, nil

	default:
		return nil, "", pkgerrors.New(pkgerrors.CodeUnsupportedMethod, "unsupported payment method").
			WithDetails(map[string]any{"method": string(input.PaymentMethod)})
	}
}

func (s *service) emitEvent(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, userID string) error {
	actor := &outbox.ActorRef{UserID: userID}

	if payment.Status == enums.PaymentStatusPaid {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				TransactionID: deref(payment.TransactionID),
				PaidAt:        *payment.PaymentDate,
			},
		})
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRecorded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Actor:         actor,
		Data: map[string]any{
			"payment_id":   payment.ID,
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"method":       payment.PaymentMethod,
			"status":       payment.Status,
		},
	})
}

func transactionPrefix(method enums.PaymentMethod) string {
	switch method {
	case enums.PaymentMethodCard:
		return "CARD"
	case enums.PaymentMethodUPI:
		return "UPI"
	case enums.PaymentMethodWallet:
		return "WAL"
	default:
		return "TXN"
	}
}

func newTransactionID(prefix string) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transaction id")
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UTC().Unix(), strings.ToUpper(hex.EncodeToString(buf))), nil
}

// maskDetails keeps a redacted snapshot of what the buyer submitted. Card
// numbers keep their last four digits, UPI handles keep the provider, and
// anything secret-looking is dropped outright.
func maskDetails(method enums.PaymentMethod, details map[string]any) map[string]any {
	masked := map[string]any{"method": string(method)}
	for key, value := range details {
		str, ok := value.(string)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "card_number", "cardnumber":
			masked["card_number"] = maskCardNumber(str)
		case "upi_id", "vpa":
			masked["upi_id"] = maskUPIHandle(str)
		case "wallet_provider", "provider":
			masked["provider"] = str
		case "card_holder", "cardholder", "name":
			masked["card_holder"] = str
		case "cvv", "cvc", "pin", "otp", "password":
			// never stored
		}
	}
	return masked
}

func maskCardNumber(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < 4 {
		return "****"
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

func maskUPIHandle(handle string) string {
	at := strings.IndexByte(handle, '@')
	if at <= 0 {
		return "***"
	}
	visible := 2
	if at < visible {
		visible = at
	}
	return handle[:visible] + "***" + handle[at:]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
