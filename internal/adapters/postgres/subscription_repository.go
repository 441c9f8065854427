package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
)

// SubscriptionRepository implements ports.SubscriptionRepository
type SubscriptionRepository struct {
	db ports.DBPort
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db ports.DBPort) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const subscriptionColumns = `id, transaction_id, subscriber_id, status, customer_id,
		billing_interval, interval_count, trial_seconds, recurring_amount,
		expiry_date, payment_token_id, card_redacted,
		cancellation_reason, cancelled_by, paused_by, created_at, updated_at`

// Create inserts a new subscription record
func (r *SubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	amount, err := decimalToNumeric(sub.RecurringAmount)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO subscriptions (
			id, transaction_id, subscriber_id, status, customer_id,
			billing_interval, interval_count, trial_seconds, recurring_amount,
			expiry_date, payment_token_id, card_redacted,
			cancellation_reason, cancelled_by, paused_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		sub.ID,
		sub.TransactionID,
		sub.SubscriberID,
		string(sub.Status),
		sub.CustomerID,
		string(sub.Profile.Interval),
		sub.Profile.IntervalCount,
		sub.Profile.TrialSeconds,
		amount,
		sub.ExpiryDate,
		sub.PaymentTokenID,
		nullText(sub.CardRedacted),
		nullText(sub.CancellationReason),
		nullText(sub.CancelledBy),
		nullText(sub.PausedBy),
	)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription by its local id
func (r *SubscriptionRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Subscription, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	return scanSubscription(row)
}

// GetBySubscriberID retrieves a subscription by the provider's subscription id
func (r *SubscriptionRepository) GetBySubscriberID(ctx context.Context, tx ports.DBTX, subscriberID string) (*models.Subscription, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE subscriber_id = $1`, subscriberID)
	return scanSubscription(row)
}

// GetByTransactionID retrieves the subscription originating from a transaction
func (r *SubscriptionRepository) GetByTransactionID(ctx context.Context, tx ports.DBTX, transactionID uuid.UUID) (*models.Subscription, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE transaction_id = $1`, transactionID)
	return scanSubscription(row)
}

// Update persists mutable subscription fields
func (r *SubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	amount, err := decimalToNumeric(sub.RecurringAmount)
	if err != nil {
		return err
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE subscriptions SET
			subscriber_id = $2,
			status = $3,
			recurring_amount = $4,
			expiry_date = $5,
			payment_token_id = $6,
			card_redacted = $7,
			cancellation_reason = $8,
			cancelled_by = $9,
			paused_by = $10,
			updated_at = now()
		WHERE id = $1`,
		sub.ID,
		sub.SubscriberID,
		string(sub.Status),
		amount,
		sub.ExpiryDate,
		sub.PaymentTokenID,
		nullText(sub.CardRedacted),
		nullText(sub.CancellationReason),
		nullText(sub.CancelledBy),
		nullText(sub.PausedBy),
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update subscription: subscription %s not found", sub.ID)
	}
	return nil
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub      models.Subscription
		status   string
		interval string
		amount   pgtype.Numeric
		redacted pgtype.Text
		reason   pgtype.Text
		byWhom   pgtype.Text
		pausedBy pgtype.Text
	)

	err := row.Scan(
		&sub.ID,
		&sub.TransactionID,
		&sub.SubscriberID,
		&status,
		&sub.CustomerID,
		&interval,
		&sub.Profile.IntervalCount,
		&sub.Profile.TrialSeconds,
		&amount,
		&sub.ExpiryDate,
		&sub.PaymentTokenID,
		&redacted,
		&reason,
		&byWhom,
		&pausedBy,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	sub.Status = models.SubscriptionStatus(status)
	sub.Profile.Interval = models.BillingInterval(interval)
	sub.CardRedacted = textValue(redacted)
	sub.CancellationReason = textValue(reason)
	sub.CancelledBy = textValue(byWhom)
	sub.PausedBy = textValue(pausedBy)

	if sub.RecurringAmount, err = numericToDecimal(amount); err != nil {
		return nil, err
	}

	return &sub, nil
}
