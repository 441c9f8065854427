package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	domainports "github.com/commercekit/authnet-gateway/internal/domain/ports"
)

// TokenizeRequest stores a payment method with the provider and materializes
// a local token for it.
type TokenizeRequest struct {
	Customer models.Customer
	BillTo   *models.Address
	Source   SourceInput
	Label    string
	Primary  bool
}

// ResolvedSource is a payment source made ready for a provider call. TokenID
// and Redacted are set when the source is (or became) a stored token.
type ResolvedSource struct {
	Source   models.PaymentSource
	TokenID  *uuid.UUID
	Redacted string
}

// TokenizationService manages provider customer/payment profiles and local
// payment tokens.
type TokenizationService interface {
	Tokenize(ctx context.Context, req *TokenizeRequest) (*models.PaymentToken, error)

	// ResolveSource applies the payment-source precedence to a request's
	// inputs, tokenizing or materializing stored tokens as needed.
	ResolveSource(ctx context.Context, input SourceInput, customer models.Customer, billTo *models.Address, creds domainports.Credentials) (*ResolvedSource, error)
}
