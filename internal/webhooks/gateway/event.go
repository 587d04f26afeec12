package gatewaywebhook

import (
	"github.com/google/uuid"
)

// Event kinds the gateway delivers. Anything else is acknowledged and
// dropped so the gateway stops retrying.
const (
	EventPaymentSuccess   = "payment.success"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCancelled = "payment.cancelled"
)

// Event is the gateway's webhook envelope.
type Event struct {
	Event   string       `json:"event" validate:"required"`
	EventID string       `json:"event_id"`
	Payload EventPayload `json:"payload" validate:"required"`
}

// EventPayload carries the settlement facts for one order.
type EventPayload struct {
	OrderID       uuid.UUID `json:"order_id" validate:"required"`
	TransactionID string    `json:"transaction_id"`
	Amount        string    `json:"amount,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// paymentNamespace seeds the deterministic payment id so a redelivered event
// maps onto the same row.
var paymentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tyrekart/gateway-payment"))

// PaymentID derives the stable payment row id for (order, transaction).
func PaymentID(orderID uuid.UUID, transactionID string) uuid.UUID {
	return uuid.NewSHA1(paymentNamespace, []byte(orderID.String()+"|"+transactionID))
}
