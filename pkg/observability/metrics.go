package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider API call metrics
	providerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_provider_calls_total",
			Help: "Total number of Authorize.Net API calls",
		},
		[]string{"operation", "outcome"}, // outcome: ok, application_error, transport_error, parse_error
	)

	providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_provider_call_duration_seconds",
			Help:    "Duration of Authorize.Net API calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// Purchase outcome metrics
	purchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_purchases_total",
			Help: "Total purchase attempts by outcome",
		},
		[]string{"mode", "status"}, // status: paid, declined, error, held
	)

	refundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_refunds_total",
			Help: "Total refund attempts",
		},
		[]string{"mode", "status"}, // status: issued, failed
	)

	// Subscription lifecycle metrics
	subscriptionActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_subscription_actions_total",
			Help: "Total subscription lifecycle actions",
		},
		[]string{"action", "status"}, // action: create, cancel, pause, resume, update_payment
	)

	// Inbound notification metrics
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_webhook_events_total",
			Help: "Total inbound provider notifications",
		},
		[]string{"channel", "outcome"}, // channel: silent_post, signed_webhook
	)
)

// RecordProviderCall records one outbound API call to the provider.
func RecordProviderCall(operation, outcome string, elapsed time.Duration) {
	providerCallsTotal.WithLabelValues(operation, outcome).Inc()
	providerCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordPurchase records the terminal status of a purchase attempt.
func RecordPurchase(mode, status string) {
	purchasesTotal.WithLabelValues(mode, status).Inc()
}

// RecordRefund records the outcome of a refund attempt.
func RecordRefund(mode, status string) {
	refundsTotal.WithLabelValues(mode, status).Inc()
}

// RecordSubscriptionAction records a subscription lifecycle action.
func RecordSubscriptionAction(action, status string) {
	subscriptionActionsTotal.WithLabelValues(action, status).Inc()
}

// RecordWebhookEvent records an inbound notification and how it was handled.
func RecordWebhookEvent(channel, outcome string) {
	webhookEventsTotal.WithLabelValues(channel, outcome).Inc()
}
