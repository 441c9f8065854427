package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
)

// TransactionRepository implements ports.TransactionRepository
type TransactionRepository struct {
	db ports.DBPort
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db ports.DBPort) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const transactionColumns = `id, method_id, status, amount, mode, customer_id,
		description, card_redacted, payment_token_id, parent_id,
		order_date, created_at, updated_at`

// Create inserts a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *models.Transaction) error {
	amount, err := decimalToNumeric(txn.Amount)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO transactions (
			id, method_id, status, amount, mode, customer_id,
			description, card_redacted, payment_token_id, parent_id, order_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		txn.ID,
		txn.MethodID,
		int(txn.Status),
		amount,
		string(txn.Mode),
		txn.CustomerID,
		nullText(txn.Description),
		nullText(txn.CardRedacted),
		txn.PaymentTokenID,
		txn.ParentID,
		txn.OrderDate,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by its local id
func (r *TransactionRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Transaction, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// GetByMethodID retrieves a transaction by the provider's transaction id
func (r *TransactionRepository) GetByMethodID(ctx context.Context, tx ports.DBTX, methodID string) (*models.Transaction, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE method_id = $1`, methodID)
	return scanTransaction(row)
}

// UpdateStatus transitions a transaction's status
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status models.TransactionStatus) error {
	tag, err := r.executor(tx).Exec(ctx,
		`UPDATE transactions SET status = $2, updated_at = now() WHERE id = $1`,
		id, int(status))
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update transaction status: transaction %s not found", id)
	}
	return nil
}

// UpdateMethodID replaces the provider transaction id, used when a test-mode
// placeholder is superseded by a real id.
func (r *TransactionRepository) UpdateMethodID(ctx context.Context, tx ports.DBTX, id uuid.UUID, methodID string) error {
	tag, err := r.executor(tx).Exec(ctx,
		`UPDATE transactions SET method_id = $2, updated_at = now() WHERE id = $1`,
		id, methodID)
	if err != nil {
		return fmt.Errorf("update transaction method id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update transaction method id: transaction %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		txn         models.Transaction
		status      int
		mode        string
		amount      pgtype.Numeric
		description pgtype.Text
		redacted    pgtype.Text
	)

	err := row.Scan(
		&txn.ID,
		&txn.MethodID,
		&status,
		&amount,
		&mode,
		&txn.CustomerID,
		&description,
		&redacted,
		&txn.PaymentTokenID,
		&txn.ParentID,
		&txn.OrderDate,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	txn.Status = models.TransactionStatus(status)
	txn.Mode = models.PurchaseMode(mode)
	txn.Description = textValue(description)
	txn.CardRedacted = textValue(redacted)

	if txn.Amount, err = numericToDecimal(amount); err != nil {
		return nil, err
	}

	return &txn, nil
}
