package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/tyrekart/tyrekart-backend/api/responses"
	gatewaywebhook "github.com/tyrekart/tyrekart-backend/internal/webhooks/gateway"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
	"github.com/tyrekart/tyrekart-backend/pkg/logger"
)

// GatewayWebhook receives payment reconciliation events. Signature
// verification is enforced only when a secret is configured; the replay
// guard fails open because the handler itself is idempotent.
func GatewayWebhook(svc *gatewaywebhook.Service, guard *gatewaywebhook.IdempotencyGuard, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := gatewaywebhook.VerifySignature(secret, body, r.Header.Get(gatewaywebhook.SignatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event gatewaywebhook.Event
		if err := json.Unmarshal(body, &event); err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body"))
			return
		}
		if event.Event == "" || event.Payload.OrderID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event and payload.order_id required"))
			return
		}

		if guard != nil && event.EventID != "" {
			seen, err := guard.CheckAndMark(ctx, event.EventID)
			if err != nil {
				// fail open: redelivery is safe, Redis just saves work
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "event_id", event.EventID), "replay guard unavailable, processing anyway")
				}
			} else if seen {
				responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
				return
			}
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			if guard != nil && event.EventID != "" {
				_ = guard.Delete(ctx, event.EventID)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
