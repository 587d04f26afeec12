package orders

import (
	"github.com/tyrekart/tyrekart-backend/pkg/enums"
	"github.com/tyrekart/tyrekart-backend/pkg/types"
)

// CheckoutInput captures everything needed to turn a cart into an order.
type CheckoutInput struct {
	ShippingAddress types.Address
	BillingAddress  *types.Address
	PaymentMethod   enums.PaymentMethod
	Notes           *string
	B2B             bool
}
