package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_orders_placed_total",
			Help: "Orders created at checkout, by payment method.",
		},
		[]string{"payment_method"},
	)

	PaymentInitiations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_payment_initiations_total",
			Help: "STK push attempts, by result.",
		},
		[]string{"result"},
	)

	WebhookOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_payment_webhooks_total",
			Help: "Payment webhook deliveries, by outcome.",
		},
		[]string{"outcome"},
	)
)

// MustRegister registers every collector with reg. Call once from main.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests, HTTPDuration, OrdersPlaced, PaymentInitiations, WebhookOutcomes)
}
