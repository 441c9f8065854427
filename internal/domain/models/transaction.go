package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the platform-side status code for a charge attempt.
// The numeric values mirror the provider's responseCode field.
type TransactionStatus int

const (
	TxnStatusPaid     TransactionStatus = 1
	TxnStatusDeclined TransactionStatus = 2
	TxnStatusError    TransactionStatus = 3
	TxnStatusHeld     TransactionStatus = 4
)

// PurchaseMode records which provider environment a transaction was created
// in. Immutable once recorded: live and sandbox credentials and hosts are
// disjoint, so later actions must target the original environment.
type PurchaseMode string

const (
	ModeLive    PurchaseMode = "live"
	ModeSandbox PurchaseMode = "sandbox"
)

// Transaction is the platform-side record of a completed or attempted charge.
// MethodID is the provider's transaction id, or a locally generated
// "test_"-prefixed placeholder when the provider returns a zero id in test
// mode. Never deleted, only status-transitioned.
type Transaction struct {
	ID             uuid.UUID
	MethodID       string
	Status         TransactionStatus
	Amount         decimal.Decimal
	Mode           PurchaseMode
	CustomerID     string
	Description    string
	CardRedacted   string
	PaymentTokenID *uuid.UUID
	ParentID       *uuid.UUID
	OrderDate      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsChild reports whether this transaction is a renewal/child of another.
func (t *Transaction) IsChild() bool { return t.ParentID != nil }
