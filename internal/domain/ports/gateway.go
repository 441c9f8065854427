package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
)

// Credentials selects a provider environment and authenticates against it.
// Resolved per-operation by the mode resolver; never stored on a client.
type Credentials struct {
	BaseURL        string
	LoginID        string
	TransactionKey string
	Mode           models.PurchaseMode
}

// ChargeRequest is the input to a one-time charge payload.
type ChargeRequest struct {
	RefID       string
	Amount      decimal.Decimal
	Source      models.PaymentSource
	Description string
	Customer    models.Customer
	BillTo      *models.Address
	ShipTo      *models.Address
	TestMode    bool
}

// ChargeResult is the interpreted outcome of a charge call.
// ResponseCode follows the provider's convention: 1 approved, 2 declined,
// 3 error, 4 held for review.
type ChargeResult struct {
	TransID      string
	ResponseCode int
	Approved     bool
	Messages     []string
}

// RefundRequest is the input to a refund payload. The provider requires the
// redacted card number of the original charge.
type RefundRequest struct {
	RefID        string
	RefTransID   string
	Amount       decimal.Decimal
	CardRedacted string
}

// SubscriptionRequest is the input to an ARB create payload. The adapter maps
// the recurring profile onto the provider's interval vocabulary.
type SubscriptionRequest struct {
	RefID       string
	Name        string
	Profile     models.RecurringProfile
	StartDate   time.Time
	Amount      decimal.Decimal
	Source      models.PaymentSource
	Description string
	Customer    models.Customer
	BillTo      *models.Address
	ShipTo      *models.Address
}

// TransactionDetails is the enrichment result fetched for webhook events.
type TransactionDetails struct {
	TransID          string
	ResponseCode     int
	AuthAmount       decimal.Decimal
	SubscriptionID   string
	RecurringBilling bool
	AccountNumber    string
}

// PaymentProfileDetails is the stored-payment-method detail fetched after
// tokenizing an opaque blob, to recover display data the blob doesn't expose.
type PaymentProfileDetails struct {
	PaymentProfileID string
	CardNumber       string
	ExpirationDate   string // YYYY-MM
}

// CredentialsResolver selects the provider environment and credential set for
// an action, honoring the recorded purchase mode of the record acted on.
type CredentialsResolver interface {
	Resolve(settings *models.GatewaySettings, recorded models.PurchaseMode) Credentials
}

// ChargeGateway performs one-shot transaction calls against the provider.
type ChargeGateway interface {
	Charge(ctx context.Context, creds Credentials, req *ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, creds Credentials, req *RefundRequest) (*ChargeResult, error)
	GetTransactionDetails(ctx context.Context, creds Credentials, transID string) (*TransactionDetails, error)
}

// RecurringGateway drives the provider's recurring-billing (ARB) API.
type RecurringGateway interface {
	CreateSubscription(ctx context.Context, creds Credentials, req *SubscriptionRequest) (string, error)
	UpdateSubscriptionPayment(ctx context.Context, creds Credentials, subscriberID string, source models.PaymentSource) error
	CancelSubscription(ctx context.Context, creds Credentials, subscriberID string) error
}

// ProfileGateway drives the provider's stored-customer (CIM) API.
type ProfileGateway interface {
	CreateCustomerProfile(ctx context.Context, creds Credentials, customer models.Customer) (string, error)
	CreatePaymentProfile(ctx context.Context, creds Credentials, customerProfileID string, source models.PaymentSource, billTo *models.Address) (string, error)
	GetPaymentProfile(ctx context.Context, creds Credentials, customerProfileID, paymentProfileID string) (*PaymentProfileDetails, error)
}

// WebhookRegistrar registers this service's notification URL with the
// provider's webhook REST API (a distinct host from transaction processing).
type WebhookRegistrar interface {
	Register(ctx context.Context, creds Credentials, notifyURL string, eventTypes []string) (string, error)
}
