package tokenization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	sports "github.com/commercekit/authnet-gateway/internal/services/ports"
	perrors "github.com/commercekit/authnet-gateway/pkg/errors"
)

// Service implements sports.TokenizationService
type Service struct {
	db           ports.DBPort
	profileRepo  ports.CustomerProfileRepository
	tokenRepo    ports.PaymentTokenRepository
	settingsRepo ports.SettingsRepository
	profiles     ports.ProfileGateway
	resolver     ports.CredentialsResolver
	logger       ports.Logger
}

// NewService creates a new tokenization service
func NewService(
	db ports.DBPort,
	profileRepo ports.CustomerProfileRepository,
	tokenRepo ports.PaymentTokenRepository,
	settingsRepo ports.SettingsRepository,
	profiles ports.ProfileGateway,
	resolver ports.CredentialsResolver,
	logger ports.Logger,
) *Service {
	return &Service{
		db:           db,
		profileRepo:  profileRepo,
		tokenRepo:    tokenRepo,
		settingsRepo: settingsRepo,
		profiles:     profiles,
		resolver:     resolver,
		logger:       logger,
	}
}

// Tokenize stores a payment method with the provider and materializes a
// local token carrying redacted display data.
func (s *Service) Tokenize(ctx context.Context, req *sports.TokenizeRequest) (*models.PaymentToken, error) {
	settings, err := s.settingsRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	creds := s.resolver.Resolve(settings, "")

	return s.tokenize(ctx, req, creds)
}

func (s *Service) tokenize(ctx context.Context, req *sports.TokenizeRequest, creds ports.Credentials) (*models.PaymentToken, error) {
	source, accountType, redacted, err := tokenizableSource(req.Source)
	if err != nil {
		return nil, err
	}

	customerProfileID, err := s.ensureCustomerProfile(ctx, req.Customer, creds)
	if err != nil {
		return nil, err
	}

	// Address precedence: explicit request address, then the customer's
	// billing address, then their shipping address.
	billTo := req.BillTo
	if billTo == nil && !req.Customer.BillingAddress.IsEmpty() {
		billTo = &req.Customer.BillingAddress
	}
	if billTo == nil && !req.Customer.ShippingAddress.IsEmpty() {
		billTo = &req.Customer.ShippingAddress
	}

	paymentProfileID, err := s.profiles.CreatePaymentProfile(ctx, creds, customerProfileID, source, billTo)
	if err != nil {
		return nil, err
	}

	token := &models.PaymentToken{
		ID:               uuid.New(),
		CustomerID:       req.Customer.ID,
		Mode:             creds.Mode,
		PaymentProfileID: paymentProfileID,
		Redacted:         redacted,
		AccountType:      accountType,
		Label:            req.Label,
		Primary:          req.Primary,
		CreatedAt:        time.Now(),
	}

	if _, isOpaque := source.(models.OpaqueToken); isOpaque {
		// The opaque blob exposes no display data; fetch the stored profile
		// to recover the masked number and expiry.
		s.backfillFromProfile(ctx, creds, customerProfileID, token)
	}
	if card, ok := source.(models.Card); ok {
		token.ExpMonth = card.ExpMonth
		token.ExpYear = card.ExpYear
	}

	if err := s.tokenRepo.Create(ctx, nil, token); err != nil {
		return nil, err
	}

	s.logger.Info("tokenized payment method",
		ports.String("customer_id", req.Customer.ID),
		ports.String("token_id", token.ID.String()),
		ports.String("account_type", string(token.AccountType)))

	return token, nil
}

// ensureCustomerProfile returns the provider customer profile id for the
// customer in this environment, creating one remotely on first use. The
// insert-if-absent keeps concurrent first tokenizations from persisting two
// different mappings; a losing remote profile is simply orphaned.
func (s *Service) ensureCustomerProfile(ctx context.Context, customer models.Customer, creds ports.Credentials) (string, error) {
	existing, err := s.profileRepo.Get(ctx, nil, customer.ID, creds.Mode)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	created, err := s.profiles.CreateCustomerProfile(ctx, creds, customer)
	if err != nil {
		return "", err
	}

	winner, err := s.profileRepo.CreateIfAbsent(ctx, nil, customer.ID, creds.Mode, created)
	if err != nil {
		return "", err
	}
	if winner != created {
		s.logger.Warn("lost customer profile creation race",
			ports.String("customer_id", customer.ID),
			ports.String("orphaned_profile_id", created))
	}
	return winner, nil
}

func (s *Service) backfillFromProfile(ctx context.Context, creds ports.Credentials, customerProfileID string, token *models.PaymentToken) {
	details, err := s.profiles.GetPaymentProfile(ctx, creds, customerProfileID, token.PaymentProfileID)
	if err != nil {
		s.logger.Warn("could not fetch payment profile details",
			ports.String("payment_profile_id", token.PaymentProfileID),
			ports.Err(err))
		return
	}

	if n := details.CardNumber; len(n) >= 4 {
		token.Redacted = n[len(n)-4:]
	}
	if parts := strings.SplitN(details.ExpirationDate, "-", 2); len(parts) == 2 {
		token.ExpYear = parts[0]
		token.ExpMonth = parts[1]
	}
}

// ResolveSource applies the payment-source precedence: one-time token, then
// stored token, then fresh tokenization, then raw card.
func (s *Service) ResolveSource(ctx context.Context, input sports.SourceInput, customer models.Customer, billTo *models.Address, creds ports.Credentials) (*sports.ResolvedSource, error) {
	switch {
	case input.OpaqueDataValue != "":
		return &sports.ResolvedSource{Source: models.OpaqueToken{DataValue: input.OpaqueDataValue}}, nil

	case input.PaymentTokenID != nil:
		return s.materializeStoredToken(ctx, *input.PaymentTokenID, customer, creds)

	case input.Tokenize && (input.Card != nil || input.BankAccount != nil):
		token, err := s.tokenize(ctx, &sports.TokenizeRequest{
			Customer: customer,
			BillTo:   billTo,
			Source:   sports.SourceInput{Card: input.Card, BankAccount: input.BankAccount},
		}, creds)
		if err != nil {
			return nil, err
		}
		return s.materializeStoredToken(ctx, token.ID, customer, creds)

	case input.Card != nil:
		return &sports.ResolvedSource{
			Source:   *input.Card,
			Redacted: input.Card.RedactedNumber(),
		}, nil

	default:
		return nil, perrors.NewValidationError("payment_source", "invalid payment method")
	}
}

func (s *Service) materializeStoredToken(ctx context.Context, tokenID uuid.UUID, customer models.Customer, creds ports.Credentials) (*sports.ResolvedSource, error) {
	token, err := s.tokenRepo.GetByID(ctx, nil, tokenID)
	if err != nil {
		return nil, err
	}
	if token.Mode != creds.Mode {
		return nil, perrors.NewValidationError("payment_token",
			fmt.Sprintf("token was created in %s mode", token.Mode))
	}

	customerProfileID, err := s.profileRepo.Get(ctx, nil, customer.ID, creds.Mode)
	if err != nil {
		return nil, err
	}
	if customerProfileID == "" {
		return nil, perrors.NewValidationError("payment_token", "customer has no stored profile in this environment")
	}

	id := token.ID
	return &sports.ResolvedSource{
		Source: models.StoredToken{
			CustomerProfileID: customerProfileID,
			PaymentProfileID:  token.PaymentProfileID,
			Redacted:          token.Redacted,
		},
		TokenID:  &id,
		Redacted: token.Redacted,
	}, nil
}

func tokenizableSource(input sports.SourceInput) (models.PaymentSource, models.TokenAccountType, string, error) {
	switch {
	case input.OpaqueDataValue != "":
		return models.OpaqueToken{DataValue: input.OpaqueDataValue}, models.TokenAccountCard, "", nil
	case input.Card != nil:
		return *input.Card, models.TokenAccountCard, input.Card.RedactedNumber(), nil
	case input.BankAccount != nil:
		return *input.BankAccount, models.TokenAccountBank, input.BankAccount.RedactedNumber(), nil
	default:
		return nil, "", "", perrors.NewValidationError("payment_source", "no payment source provided")
	}
}
