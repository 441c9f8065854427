package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
)

// SourceInput carries the possible payment sources of a request, resolved by
// precedence: one-time token, then stored token, then fresh tokenization,
// then raw card. An input with none of these is a validation error.
type SourceInput struct {
	OpaqueDataValue string
	PaymentTokenID  *uuid.UUID
	Tokenize        bool
	Card            *models.Card
	BankAccount     *models.BankAccount
}

// PurchaseRequest is the input to the purchase operation.
type PurchaseRequest struct {
	Cart   models.Cart
	BillTo *models.Address
	ShipTo *models.Address
	Source SourceInput

	// ParentTransactionID marks the new transaction as a renewal/resume child
	// of an existing one.
	ParentTransactionID *uuid.UUID

	// StartDateOverride replaces the computed recurring start date. Used by
	// the resume path to continue the schedule from the old expiry.
	StartDateOverride *time.Time
}

// PurchaseResult carries the records created by a successful purchase.
type PurchaseResult struct {
	Transaction  *models.Transaction
	Subscription *models.Subscription
}

// RefundRequest is the input to the refund operation.
type RefundRequest struct {
	TransactionID uuid.UUID
	Amount        decimal.Decimal
	Reason        string
	IssuedBy      string
}

// PaymentService performs purchases and refunds against the provider.
type PaymentService interface {
	Purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResult, error)
	Refund(ctx context.Context, req *RefundRequest) (*models.Refund, error)
}
