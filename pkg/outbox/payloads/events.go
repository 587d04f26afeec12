package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/tyrekart/tyrekart-backend/pkg/enums"
)

// OrderConfirmedEvent signals a freshly created order; the notification
// worker turns it into the order-confirmation email.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	UserID      string              `json:"user_id"`
	TotalAmount string              `json:"total_amount"`
	Method      enums.PaymentMethod `json:"payment_method"`
	ItemCount   int                 `json:"item_count"`
}

// OrderPaidEvent is emitted when a payment settles, synchronously or via the
// gateway webhook.
type OrderPaidEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	TransactionID string    `json:"transaction_id,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
}

// OrderCancelledEvent reports a gateway-driven cancellation, including how
// much stock was returned to the shelf.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	Reason         string    `json:"reason,omitempty"`
	RestockedUnits int       `json:"restocked_units"`
	CancelledAt    time.Time `json:"cancelled_at"`
}
