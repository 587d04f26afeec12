package middleware

import (
	"net/http"

	"github.com/tyrekart/tyrekart-backend/api/responses"
	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
	"github.com/tyrekart/tyrekart-backend/pkg/logger"
)

// UserIDHeader carries the opaque caller identity established upstream
// (API gateway, session layer). The service trusts it as-is.
const UserIDHeader = "X-User-Id"

// Identity extracts the caller's user id and stores it on the context.
// Requests without one are rejected before reaching a handler.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(UserIDHeader)
			if userID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
