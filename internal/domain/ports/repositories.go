package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
)

// TransactionRepository persists platform-side charge records.
type TransactionRepository interface {
	Create(ctx context.Context, tx DBTX, txn *models.Transaction) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*models.Transaction, error)
	GetByMethodID(ctx context.Context, tx DBTX, methodID string) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, tx DBTX, id uuid.UUID, status models.TransactionStatus) error
	UpdateMethodID(ctx context.Context, tx DBTX, id uuid.UUID, methodID string) error
}

// SubscriptionRepository persists recurring-billing records.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx DBTX, sub *models.Subscription) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*models.Subscription, error)
	GetBySubscriberID(ctx context.Context, tx DBTX, subscriberID string) (*models.Subscription, error)
	GetByTransactionID(ctx context.Context, tx DBTX, transactionID uuid.UUID) (*models.Subscription, error)
	Update(ctx context.Context, tx DBTX, sub *models.Subscription) error
}

// CustomerProfileRepository stores the per-customer, per-mode mapping to the
// provider's customer profile id.
type CustomerProfileRepository interface {
	// Get returns the stored profile id, or empty string when no mapping exists.
	Get(ctx context.Context, tx DBTX, customerID string, mode models.PurchaseMode) (string, error)

	// CreateIfAbsent inserts the mapping unless one already exists and returns
	// the winning profile id. Concurrent callers for the same (customer, mode)
	// all observe the same id.
	CreateIfAbsent(ctx context.Context, tx DBTX, customerID string, mode models.PurchaseMode, profileID string) (string, error)
}

// PaymentTokenRepository persists local payment tokens.
type PaymentTokenRepository interface {
	Create(ctx context.Context, tx DBTX, token *models.PaymentToken) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*models.PaymentToken, error)
}

// RefundRepository persists refund records. Append-only.
type RefundRepository interface {
	Create(ctx context.Context, tx DBTX, refund *models.Refund) error
	ListByTransaction(ctx context.Context, tx DBTX, transactionID uuid.UUID) ([]*models.Refund, error)
}

// SettingsRepository reads and writes the gateway's merchant settings.
type SettingsRepository interface {
	Load(ctx context.Context) (*models.GatewaySettings, error)
	SaveWebhookID(ctx context.Context, mode models.PurchaseMode, webhookID string) error
}

// RenewalRecorder creates renewal payments for a subscription: a child
// transaction linked to the subscription's originating transaction.
type RenewalRecorder interface {
	AddRenewalPayment(ctx context.Context, sub *models.Subscription, methodID string, status models.TransactionStatus, amount decimal.Decimal) error
}
