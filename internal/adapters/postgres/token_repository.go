package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
)

// PaymentTokenRepository implements ports.PaymentTokenRepository
type PaymentTokenRepository struct {
	db ports.DBPort
}

// NewPaymentTokenRepository creates a new payment token repository
func NewPaymentTokenRepository(db ports.DBPort) *PaymentTokenRepository {
	return &PaymentTokenRepository{db: db}
}

func (r *PaymentTokenRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Create inserts a new payment token record
func (r *PaymentTokenRepository) Create(ctx context.Context, tx ports.DBTX, token *models.PaymentToken) error {
	_, err := r.executor(tx).Exec(ctx, `
		INSERT INTO payment_tokens (
			id, customer_id, mode, payment_profile_id, redacted,
			exp_month, exp_year, account_type, label, is_primary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		token.ID,
		token.CustomerID,
		string(token.Mode),
		token.PaymentProfileID,
		nullText(token.Redacted),
		nullText(token.ExpMonth),
		nullText(token.ExpYear),
		string(token.AccountType),
		nullText(token.Label),
		token.Primary,
	)
	if err != nil {
		return fmt.Errorf("create payment token: %w", err)
	}
	return nil
}

// GetByID retrieves a payment token by its local id
func (r *PaymentTokenRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.PaymentToken, error) {
	var (
		token       models.PaymentToken
		mode        string
		accountType string
		redacted    pgtype.Text
		expMonth    pgtype.Text
		expYear     pgtype.Text
		label       pgtype.Text
	)

	err := r.executor(tx).QueryRow(ctx, `
		SELECT id, customer_id, mode, payment_profile_id, redacted,
			exp_month, exp_year, account_type, label, is_primary, created_at
		FROM payment_tokens WHERE id = $1`, id).Scan(
		&token.ID,
		&token.CustomerID,
		&mode,
		&token.PaymentProfileID,
		&redacted,
		&expMonth,
		&expYear,
		&accountType,
		&label,
		&token.Primary,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get payment token: %w", err)
	}

	token.Mode = models.PurchaseMode(mode)
	token.AccountType = models.TokenAccountType(accountType)
	token.Redacted = textValue(redacted)
	token.ExpMonth = textValue(expMonth)
	token.ExpYear = textValue(expYear)
	token.Label = textValue(label)

	return &token, nil
}
