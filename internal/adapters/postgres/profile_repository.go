package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
)

// CustomerProfileRepository implements ports.CustomerProfileRepository
type CustomerProfileRepository struct {
	db ports.DBPort
}

// NewCustomerProfileRepository creates a new customer profile repository
func NewCustomerProfileRepository(db ports.DBPort) *CustomerProfileRepository {
	return &CustomerProfileRepository{db: db}
}

func (r *CustomerProfileRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Get returns the provider profile id mapped to a customer in one
// environment, or empty string when no mapping exists.
func (r *CustomerProfileRepository) Get(ctx context.Context, tx ports.DBTX, customerID string, mode models.PurchaseMode) (string, error) {
	var profileID string
	err := r.executor(tx).QueryRow(ctx,
		`SELECT profile_id FROM customer_profiles WHERE customer_id = $1 AND mode = $2`,
		customerID, string(mode)).Scan(&profileID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get customer profile: %w", err)
	}
	return profileID, nil
}

// CreateIfAbsent inserts the mapping unless one already exists and returns
// the winning profile id. The unique constraint on (customer_id, mode)
// resolves concurrent inserts; losers read the winner's row.
func (r *CustomerProfileRepository) CreateIfAbsent(ctx context.Context, tx ports.DBTX, customerID string, mode models.PurchaseMode, profileID string) (string, error) {
	exec := r.executor(tx)

	_, err := exec.Exec(ctx, `
		INSERT INTO customer_profiles (customer_id, mode, profile_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, mode) DO NOTHING`,
		customerID, string(mode), profileID)
	if err != nil {
		return "", fmt.Errorf("create customer profile: %w", err)
	}

	var winner string
	err = exec.QueryRow(ctx,
		`SELECT profile_id FROM customer_profiles WHERE customer_id = $1 AND mode = $2`,
		customerID, string(mode)).Scan(&winner)
	if err != nil {
		return "", fmt.Errorf("read customer profile after insert: %w", err)
	}
	return winner, nil
}
