package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts the pipeline's outcomes: orders created, checkouts
// rejected for stock, payments processed, and webhook events handled.
type CheckoutMetrics struct {
	ordersCreated   prometheus.Counter
	stockRejections prometheus.Counter
	payments        *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
}

// NewCheckoutMetrics registers the pipeline metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders successfully created from carts.",
	})
	stockRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_stock_rejections_total",
		Help: "Checkout attempts aborted for insufficient stock.",
	})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_processed_total",
		Help: "Payments processed by method and resulting status.",
	}, []string{"method", "status"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_events_total",
		Help: "Gateway webhook events received by type.",
	}, []string{"event"})
	reg.MustRegister(ordersCreated, stockRejections, payments, webhookEvents)
	return &CheckoutMetrics{
		ordersCreated:   ordersCreated,
		stockRejections: stockRejections,
		payments:        payments,
		webhookEvents:   webhookEvents,
	}
}

// IncOrderCreated counts a successful checkout.
func (m *CheckoutMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// IncStockRejection counts an insufficient-stock abort.
func (m *CheckoutMetrics) IncStockRejection() {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.Inc()
}

// IncPayment counts a processed payment by method and status.
func (m *CheckoutMetrics) IncPayment(method, status string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(method), normalizeLabel(status)).Inc()
}

// IncWebhookEvent counts one received gateway event.
func (m *CheckoutMetrics) IncWebhookEvent(event string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(event)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
