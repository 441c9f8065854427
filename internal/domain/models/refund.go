package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Refund links a Transaction to a provider refund transaction. Created only
// after the provider confirms the refund; append-only.
type Refund struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	GatewayRefID  string
	Amount        decimal.Decimal
	Reason        string
	IssuedBy      string
	CreatedAt     time.Time
}
