package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tyrekart/tyrekart-backend/api/controllers"
	"github.com/tyrekart/tyrekart-backend/api/middleware"
	cartsvc "github.com/tyrekart/tyrekart-backend/internal/cart"
	ordersvc "github.com/tyrekart/tyrekart-backend/internal/orders"
	paymentsvc "github.com/tyrekart/tyrekart-backend/internal/payments"
	gatewaywebhook "github.com/tyrekart/tyrekart-backend/internal/webhooks/gateway"
	"github.com/tyrekart/tyrekart-backend/pkg/config"
	"github.com/tyrekart/tyrekart-backend/pkg/db"
	"github.com/tyrekart/tyrekart-backend/pkg/logger"
	"github.com/tyrekart/tyrekart-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       db.Pinger
	RedisPinger    redis.Pinger
	CartService    cartsvc.Service
	OrderService   ordersvc.Service
	PaymentService paymentsvc.Service
	WebhookService *gatewaywebhook.Service
	WebhookGuard   *gatewaywebhook.IdempotencyGuard
	Registry       *prometheus.Registry
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DBPinger, params.RedisPinger))
	})

	if params.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{}))
	}

	// gateway calls carry no user identity; the signature is the auth
	r.Post("/api/v1/payments/webhook", controllers.GatewayWebhook(
		params.WebhookService, params.WebhookGuard, cfg.Gateway.WebhookSecret, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(params.CartService, logg))
			r.Post("/", controllers.CartAdd(params.CartService, logg))
			r.Put("/", controllers.CartUpdate(params.CartService, logg))
			r.Delete("/", controllers.CartRemove(params.CartService, logg))
		})

		r.Post("/checkout", controllers.Checkout(params.OrderService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(params.OrderService, logg))
			r.Get("/{orderID}", controllers.OrdersGet(params.OrderService, logg))
		})

		r.Post("/payments/process", controllers.PaymentsProcess(params.PaymentService, logg))
	})

	return r
}
