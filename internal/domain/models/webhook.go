package models

import "time"

// Provider webhook event types this integration dispatches on.
const (
	EventSubscriptionSuspended  = "net.authorize.customer.subscription.suspended"
	EventSubscriptionTerminated = "net.authorize.customer.subscription.terminated"
	EventSubscriptionCancelled  = "net.authorize.customer.subscription.cancelled"
	EventPaymentAuthCapture     = "net.authorize.payment.authcapture.created"
	EventPaymentVoid            = "net.authorize.payment.void.created"
)

// WebhookRegistration is the single provider-side subscription-to-events
// object for one environment, identified by the provider-assigned webhook id.
type WebhookRegistration struct {
	Mode      PurchaseMode
	WebhookID string
	CreatedAt time.Time
}
