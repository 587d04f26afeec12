package gatewaywebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tyrekart/tyrekart-backend/internal/inventory"
	"github.com/tyrekart/tyrekart-backend/internal/orders"
	"github.com/tyrekart/tyrekart-backend/internal/payments"
	"github.com/tyrekart/tyrekart-backend/pkg/db/models"
	"github.com/tyrekart/tyrekart-backend/pkg/enums"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
	"github.com/tyrekart/tyrekart-backend/pkg/logger"
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

// ServiceParams collects the dependencies for the reconciliation service.
type ServiceParams struct {
	PaymentsRepo      payments.Repository
	OrdersRepo        orders.Repository
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Logger            *logger.Logger
	Metrics           *metrics.CheckoutMetrics
}

// Service reconciles gateway settlement events against orders. The gateway
// is authoritative: a failed event overwrites an optimistic paid state.
type Service struct {
	payments payments.Repository
	orders   orders.Repository
	txRunner txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	metrics  *metrics.CheckoutMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.PaymentsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	return &Service{
		payments: params.PaymentsRepo,
		orders:   params.OrdersRepo,
		txRunner: params.TransactionRunner,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// HandleEvent applies one gateway event. Unknown event types return nil so
// the HTTP layer acknowledges them and the gateway stops retrying.
func (s *Service) HandleEvent(ctx context.Context, event Event) error {
	s.metrics.IncWebhookEvent(event.Event)

	switch event.Event {
	case EventPaymentSuccess:
		return s.applySuccess(ctx, event)
	case EventPaymentFailed, EventPaymentCancelled:
		return s.applyFailure(ctx, event)
	default:
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "event", event.Event), "ignoring unknown gateway event")
		}
		return nil
	}
}

// errStockResold aborts a success transaction when a cancelled order's
// restocked units are no longer available; the event is acknowledged, not
// retried.
var errStockResold = errors.New("restocked units no longer available")

func (s *Service) applySuccess(ctx context.Context, event Event) error {
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		paymentsRepo := s.payments.WithTx(tx)

		order, err := s.loadOrder(ctx, ordersRepo, event)
		if err != nil {
			return err
		}

		// a success arriving after a failure already cancelled and restocked
		// the order must take its units back before the order goes live
		// again; rolled back wholesale when any line falls short
		if order.Status == enums.OrderStatusCancelled {
			if err := s.reclaimStock(ctx, tx, ordersRepo, order.ID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		payment, err := s.buildPayment(order, event, enums.PaymentStatusPaid)
		if err != nil {
			return err
		}
		payment.PaymentDate = &now

		if err := paymentsRepo.Upsert(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert payment")
		}
		if err := ordersRepo.UpdateStatuses(ctx, order.ID, enums.OrderStatusConfirmed, enums.PaymentStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order statuses")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				TransactionID: event.Payload.TransactionID,
				PaidAt:        now,
			},
		})
	})
	if errors.Is(err, errStockResold) {
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "order_id", event.Payload.OrderID.String())
			s.logg.Warn(logCtx, "dropping success for cancelled order, restocked units already resold")
		}
		return nil
	}
	return err
}

// reclaimStock re-reserves a cancelled order's items so a late success
// cannot revive the order against units that were returned to the shelf.
func (s *Service) reclaimStock(ctx context.Context, tx *gorm.DB, ordersRepo orders.Repository, orderID uuid.UUID) error {
	items, err := ordersRepo.FindItemsByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	requests := make([]inventory.ReservationRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, inventory.ReservationRequest{ProductID: item.ProductID, Qty: item.Quantity})
	}
	results, err := inventory.Reserve(ctx, tx, requests)
	if err != nil {
		return err
	}
	for _, result := range results {
		if !result.Reserved {
			return errStockResold
		}
	}
	return nil
}

func (s *Service) applyFailure(ctx context.Context, event Event) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		paymentsRepo := s.payments.WithTx(tx)

		order, err := s.loadOrder(ctx, ordersRepo, event)
		if err != nil {
			return err
		}

		payment, err := s.buildPayment(order, event, enums.PaymentStatusFailed)
		if err != nil {
			return err
		}
		if event.Payload.Reason != "" {
			reason := event.Payload.Reason
			payment.FailureReason = &reason
		}
		if err := paymentsRepo.Upsert(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert payment")
		}

		// restock exactly once: only the transition into cancelled returns
		// units, a redelivered failure finds the order already cancelled
		restocked := 0
		if order.Status != enums.OrderStatusCancelled {
			items, err := ordersRepo.FindItemsByOrder(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
			}
			for _, item := range items {
				if err := inventory.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
				restocked += item.Quantity
			}
		}

		if err := ordersRepo.UpdateStatuses(ctx, order.ID, enums.OrderStatusCancelled, enums.PaymentStatusFailed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order statuses")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCancelledEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				Reason:         event.Payload.Reason,
				RestockedUnits: restocked,
				CancelledAt:    time.Now().UTC(),
			},
		})
	})
}

func (s *Service) loadOrder(ctx context.Context, repo orders.Repository, event Event) (*models.Order, error) {
	order, err := repo.FindByID(ctx, event.Payload.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *Service) buildPayment(order *models.Order, event Event, status enums.PaymentStatus) (*models.Payment, error) {
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "snapshot event payload")
	}
	transactionID := event.Payload.TransactionID
	return &models.Payment{
		ID:              PaymentID(order.ID, transactionID),
		OrderID:         order.ID,
		Amount:          order.TotalAmount,
		PaymentMethod:   order.PaymentMethod,
		Status:          status,
		TransactionID:   &transactionID,
		GatewayResponse: raw,
	}, nil
}
