package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tyrekart/tyrekart-backend/api/middleware"
	"github.com/tyrekart/tyrekart-backend/api/responses"
	"github.com/tyrekart/tyrekart-backend/api/validators"
	paymentsvc "github.com/tyrekart/tyrekart-backend/internal/payments"
	"github.com/tyrekart/tyrekart-backend/pkg/enums"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
	"github.com/tyrekart/tyrekart-backend/pkg/logger"
)

type processPaymentRequest struct {
	OrderID        uuid.UUID      `json:"order_id" validate:"required"`
	PaymentMethod  string         `json:"payment_method" validate:"required"`
	PaymentDetails map[string]any `json:"payment_details"`
}

// PaymentsProcess records a buyer-initiated payment attempt for an order.
func PaymentsProcess(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload processPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Process(r.Context(), middleware.UserIDFromContext(r.Context()), paymentsvc.ProcessInput{
			OrderID:        payload.OrderID,
			PaymentMethod:  enums.PaymentMethod(payload.PaymentMethod),
			PaymentDetails: payload.PaymentDetails,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
