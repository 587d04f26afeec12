package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tyrekart/tyrekart-backend/pkg/enums"
)

// Payment records one settlement attempt against an order. Webhook-driven
// rows use a deterministic id derived from (order_id, transaction_id) so
// redelivered events update in place instead of duplicating.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Status          enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	TransactionID   *string             `gorm:"column:transaction_id"`
	PaymentDate     *time.Time          `gorm:"column:payment_date"`
	GatewayResponse json.RawMessage     `gorm:"column:gateway_response;type:jsonb"`
	FailureReason   *string             `gorm:"column:failure_reason"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
