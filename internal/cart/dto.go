package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineDTO is one cart line enriched with its product snapshot and the
// product's mean review rating.
type LineDTO struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"productId"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand"`
	Size          string          `json:"size"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Quantity      int             `json:"quantity"`
	LineTotal     decimal.Decimal `json:"lineTotal"`
	Stock         int             `json:"stock"`
	AverageRating float64         `json:"averageRating"`
}

// CartDTO is the full cart view returned to the storefront.
type CartDTO struct {
	Items     []LineDTO       `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"itemCount"`
}
