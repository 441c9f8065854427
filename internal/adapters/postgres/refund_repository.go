package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
)

// RefundRepository implements ports.RefundRepository
type RefundRepository struct {
	db ports.DBPort
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(db ports.DBPort) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Create inserts a refund record
func (r *RefundRepository) Create(ctx context.Context, tx ports.DBTX, refund *models.Refund) error {
	amount, err := decimalToNumeric(refund.Amount)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO refunds (id, transaction_id, gateway_ref_id, amount, reason, issued_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		refund.ID,
		refund.TransactionID,
		refund.GatewayRefID,
		amount,
		nullText(refund.Reason),
		nullText(refund.IssuedBy),
	)
	if err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

// ListByTransaction returns all refunds issued against a transaction, oldest
// first.
func (r *RefundRepository) ListByTransaction(ctx context.Context, tx ports.DBTX, transactionID uuid.UUID) ([]*models.Refund, error) {
	rows, err := r.executor(tx).Query(ctx, `
		SELECT id, transaction_id, gateway_ref_id, amount, reason, issued_by, created_at
		FROM refunds WHERE transaction_id = $1 ORDER BY created_at`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*models.Refund
	for rows.Next() {
		var (
			refund   models.Refund
			amount   pgtype.Numeric
			reason   pgtype.Text
			issuedBy pgtype.Text
		)
		if err := rows.Scan(
			&refund.ID,
			&refund.TransactionID,
			&refund.GatewayRefID,
			&amount,
			&reason,
			&issuedBy,
			&refund.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}

		refund.Reason = textValue(reason)
		refund.IssuedBy = textValue(issuedBy)
		if refund.Amount, err = numericToDecimal(amount); err != nil {
			return nil, err
		}

		refunds = append(refunds, &refund)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refunds: %w", err)
	}

	return refunds, nil
}
