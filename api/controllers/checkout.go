package controllers

import (
	"net/http"

	"github.com/tyrekart/tyrekart-backend/api/middleware"
	"github.com/tyrekart/tyrekart-backend/api/responses"
	"github.com/tyrekart/tyrekart-backend/api/validators"
	ordersvc "github.com/tyrekart/tyrekart-backend/internal/orders"
	"github.com/tyrekart/tyrekart-backend/pkg/enums"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
	"github.com/tyrekart/tyrekart-backend/pkg/logger"
	"github.com/tyrekart/tyrekart-backend/pkg/types"
)

type checkoutRequest struct {
	ShippingAddress types.Address  `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address `json:"billing_address"`
	PaymentMethod   string         `json:"payment_method" validate:"required"`
	Notes           *string        `json:"notes"`
	B2B             bool           `json:"b2b"`
}

// Checkout converts the caller's cart into an order.
func Checkout(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeUnsupportedMethod, "unsupported payment method").
					WithDetails(map[string]any{"method": payload.PaymentMethod}))
			return
		}

		order, err := svc.Checkout(r.Context(), middleware.UserIDFromContext(r.Context()), ordersvc.CheckoutInput{
			ShippingAddress: payload.ShippingAddress,
			BillingAddress:  payload.BillingAddress,
			PaymentMethod:   method,
			Notes:           payload.Notes,
			B2B:             payload.B2B,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
