package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	sports "github.com/commercekit/authnet-gateway/internal/services/ports"
	perrors "github.com/commercekit/authnet-gateway/pkg/errors"
	"github.com/commercekit/authnet-gateway/pkg/observability"
)

// Service implements sports.PaymentService and ports.RenewalRecorder
type Service struct {
	db           ports.DBPort
	txRepo       ports.TransactionRepository
	subRepo      ports.SubscriptionRepository
	refundRepo   ports.RefundRepository
	settingsRepo ports.SettingsRepository
	charges      ports.ChargeGateway
	recurring    ports.RecurringGateway
	resolver     ports.CredentialsResolver
	tokens       sports.TokenizationService
	logger       ports.Logger
}

// NewService creates a new payment service
func NewService(
	db ports.DBPort,
	txRepo ports.TransactionRepository,
	subRepo ports.SubscriptionRepository,
	refundRepo ports.RefundRepository,
	settingsRepo ports.SettingsRepository,
	charges ports.ChargeGateway,
	recurring ports.RecurringGateway,
	resolver ports.CredentialsResolver,
	tokens sports.TokenizationService,
	logger ports.Logger,
) *Service {
	return &Service{
		db:           db,
		txRepo:       txRepo,
		subRepo:      subRepo,
		refundRepo:   refundRepo,
		settingsRepo: settingsRepo,
		charges:      charges,
		recurring:    recurring,
		resolver:     resolver,
		tokens:       tokens,
		logger:       logger,
	}
}

// Purchase executes a one-time or recurring purchase for a cart.
func (s *Service) Purchase(ctx context.Context, req *sports.PurchaseRequest) (*sports.PurchaseResult, error) {
	settings, err := s.settingsRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	creds := s.resolver.Resolve(settings, "")

	billTo := req.BillTo
	if billTo == nil && !req.Cart.Customer.BillingAddress.IsEmpty() {
		billTo = &req.Cart.Customer.BillingAddress
	}

	resolved, err := s.tokens.ResolveSource(ctx, req.Source, req.Cart.Customer, billTo, creds)
	if err != nil {
		return nil, err
	}

	if item, ok := req.Cart.RecurringItem(); ok {
		return s.purchaseRecurring(ctx, req, settings, creds, resolved, item, billTo)
	}
	return s.purchaseOneTime(ctx, req, settings, creds, resolved, billTo)
}

func (s *Service) purchaseOneTime(ctx context.Context, req *sports.PurchaseRequest, settings *models.GatewaySettings, creds ports.Credentials, resolved *sports.ResolvedSource, billTo *models.Address) (*sports.PurchaseResult, error) {
	result, err := s.charge(ctx, creds, settings, req.Cart.Total(), req.Cart, resolved.Source, billTo, req.ShipTo)
	if err != nil {
		observability.RecordPurchase(string(creds.Mode), "error")
		return nil, err
	}
	if !result.Approved {
		observability.RecordPurchase(string(creds.Mode), "declined")
		return nil, declinedError(result)
	}

	txn := s.newTransaction(req, creds.Mode, result, req.Cart.Total(), resolved)

	if err := s.txRepo.Create(ctx, nil, txn); err != nil {
		return nil, err
	}

	observability.RecordPurchase(string(creds.Mode), "paid")
	s.logger.Info("purchase completed",
		ports.String("transaction_id", txn.ID.String()),
		ports.String("method_id", txn.MethodID),
		ports.Int("status", int(txn.Status)))

	return &sports.PurchaseResult{Transaction: txn}, nil
}

func (s *Service) purchaseRecurring(ctx context.Context, req *sports.PurchaseRequest, settings *models.GatewaySettings, creds ports.Credentials, resolved *sports.ResolvedSource, item *models.LineItem, billTo *models.Address) (*sports.PurchaseResult, error) {
	qty := item.Quantity
	if qty == 0 {
		qty = 1
	}
	recurringAmount := item.Amount.Mul(decimal.NewFromInt(int64(qty)))

	// One-time fees (sign-up fee and any non-recurring items) are billed now
	// as a separate preceding charge; the schedule carries only the
	// recurring amount.
	precedingAmount := req.Cart.Total().Sub(recurringAmount)

	var precedingResult *ports.ChargeResult
	if precedingAmount.IsPositive() {
		result, err := s.charge(ctx, creds, settings, precedingAmount, req.Cart, resolved.Source, billTo, req.ShipTo)
		if err != nil {
			observability.RecordPurchase(string(creds.Mode), "error")
			return nil, err
		}
		if !result.Approved {
			// A declined sign-up fee aborts the whole purchase; no
			// subscription is created.
			observability.RecordPurchase(string(creds.Mode), "declined")
			return nil, declinedError(result)
		}
		precedingResult = result
	}

	startDate := time.Now()
	if item.Profile.TrialSeconds > 0 {
		startDate = startDate.Add(time.Duration(item.Profile.TrialSeconds) * time.Second)
	}
	if req.StartDateOverride != nil {
		startDate = *req.StartDateOverride
	}

	subscriberID, err := s.recurring.CreateSubscription(ctx, creds, &ports.SubscriptionRequest{
		RefID:       newRefID(),
		Name:        item.Name,
		Profile:     *item.Profile,
		StartDate:   startDate,
		Amount:      recurringAmount,
		Source:      resolved.Source,
		Description: req.Cart.Description,
		Customer:    req.Cart.Customer,
		BillTo:      billTo,
		ShipTo:      req.ShipTo,
	})
	if err != nil {
		observability.RecordPurchase(string(creds.Mode), "error")
		return nil, err
	}

	// The subscription-create response carries no transaction id. Until the
	// first settlement webhook backfills the real one, the provider
	// subscription id doubles as the method id (or the preceding charge's id
	// when a sign-up fee was billed).
	methodID := subscriberID
	status := models.TxnStatusPaid
	if precedingResult != nil {
		methodID = precedingResult.TransID
		if methodID == "" || methodID == "0" {
			methodID = placeholderMethodID()
		}
		status = models.TransactionStatus(precedingResult.ResponseCode)
	}

	now := time.Now()
	expiry := startDate
	if !startDate.After(now) {
		expiry = startDate.Add(time.Duration(item.Profile.CycleSeconds()) * time.Second)
	}

	txn := &models.Transaction{
		ID:             uuid.New(),
		MethodID:       methodID,
		Status:         status,
		Amount:         req.Cart.Total(),
		Mode:           creds.Mode,
		CustomerID:     req.Cart.Customer.ID,
		Description:    req.Cart.Description,
		CardRedacted:   resolved.Redacted,
		PaymentTokenID: resolved.TokenID,
		ParentID:       req.ParentTransactionID,
		OrderDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	sub := &models.Subscription{
		ID:              uuid.New(),
		TransactionID:   txn.ID,
		SubscriberID:    subscriberID,
		Status:          models.SubStatusActive,
		CustomerID:      req.Cart.Customer.ID,
		Profile:         *item.Profile,
		RecurringAmount: recurringAmount,
		ExpiryDate:      expiry,
		PaymentTokenID:  resolved.TokenID,
		CardRedacted:    resolved.Redacted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.txRepo.Create(ctx, tx, txn); err != nil {
			return err
		}
		return s.subRepo.Create(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	observability.RecordPurchase(string(creds.Mode), "paid")
	observability.RecordSubscriptionAction("create", "ok")
	s.logger.Info("recurring purchase completed",
		ports.String("transaction_id", txn.ID.String()),
		ports.String("subscriber_id", subscriberID),
		ports.String("start_date", startDate.Format("2006-01-02")))

	return &sports.PurchaseResult{Transaction: txn, Subscription: sub}, nil
}

func (s *Service) charge(ctx context.Context, creds ports.Credentials, settings *models.GatewaySettings, amount decimal.Decimal, cart models.Cart, source models.PaymentSource, billTo, shipTo *models.Address) (*ports.ChargeResult, error) {
	return s.charges.Charge(ctx, creds, &ports.ChargeRequest{
		RefID:       newRefID(),
		Amount:      amount,
		Source:      source,
		Description: cart.Description,
		Customer:    cart.Customer,
		BillTo:      billTo,
		ShipTo:      shipTo,
		TestMode:    settings.TestMode,
	})
}

// newTransaction builds the local record for an approved one-time charge. A
// success response without a transId happens in test mode; a generated
// placeholder keeps the method id unique.
func (s *Service) newTransaction(req *sports.PurchaseRequest, mode models.PurchaseMode, result *ports.ChargeResult, amount decimal.Decimal, resolved *sports.ResolvedSource) *models.Transaction {
	methodID := result.TransID
	if methodID == "" || methodID == "0" {
		methodID = placeholderMethodID()
	}

	now := time.Now()
	return &models.Transaction{
		ID:             uuid.New(),
		MethodID:       methodID,
		Status:         models.TransactionStatus(result.ResponseCode),
		Amount:         amount,
		Mode:           mode,
		CustomerID:     req.Cart.Customer.ID,
		Description:    req.Cart.Description,
		CardRedacted:   resolved.Redacted,
		PaymentTokenID: resolved.TokenID,
		ParentID:       req.ParentTransactionID,
		OrderDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Refund issues a partial or full refund against a settled transaction.
func (s *Service) Refund(ctx context.Context, req *sports.RefundRequest) (*models.Refund, error) {
	txn, err := s.txRepo.GetByID(ctx, nil, req.TransactionID)
	if err != nil {
		return nil, err
	}

	// The provider requires the original card's last four digits; a token
	// purchase without a redacted number cannot be refunded through this
	// path. Checked before any outbound call.
	if txn.CardRedacted == "" {
		return nil, perrors.NewValidationError("transaction", "transaction has no card reference to refund against")
	}
	if !req.Amount.IsPositive() {
		return nil, perrors.NewValidationError("amount", "refund amount must be positive")
	}

	refunds, err := s.refundRepo.ListByTransaction(ctx, nil, txn.ID)
	if err != nil {
		return nil, err
	}
	refunded := decimal.Zero
	for _, r := range refunds {
		refunded = refunded.Add(r.Amount)
	}
	if refunded.Add(req.Amount).GreaterThan(txn.Amount) {
		return nil, perrors.NewValidationError("amount",
			fmt.Sprintf("refund exceeds remaining balance %s", txn.Amount.Sub(refunded).StringFixed(2)))
	}

	settings, err := s.settingsRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	creds := s.resolver.Resolve(settings, txn.Mode)

	result, err := s.charges.Refund(ctx, creds, &ports.RefundRequest{
		RefID:        newRefID(),
		RefTransID:   txn.MethodID,
		Amount:       req.Amount,
		CardRedacted: txn.CardRedacted,
	})
	if err != nil {
		observability.RecordRefund(string(txn.Mode), "failed")
		return nil, err
	}
	if !result.Approved {
		observability.RecordRefund(string(txn.Mode), "failed")
		return nil, declinedError(result)
	}

	refund := &models.Refund{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		GatewayRefID:  result.TransID,
		Amount:        req.Amount,
		Reason:        req.Reason,
		IssuedBy:      req.IssuedBy,
		CreatedAt:     time.Now(),
	}
	if err := s.refundRepo.Create(ctx, nil, refund); err != nil {
		return nil, err
	}

	observability.RecordRefund(string(txn.Mode), "issued")
	s.logger.Info("refund issued",
		ports.String("transaction_id", txn.ID.String()),
		ports.String("gateway_ref_id", refund.GatewayRefID),
		ports.String("amount", req.Amount.StringFixed(2)))

	return refund, nil
}

// AddRenewalPayment records a renewal as a child transaction of the
// subscription's originating transaction. Called by notification handlers.
func (s *Service) AddRenewalPayment(ctx context.Context, sub *models.Subscription, methodID string, status models.TransactionStatus, amount decimal.Decimal) error {
	parent, err := s.txRepo.GetByID(ctx, nil, sub.TransactionID)
	if err != nil {
		return err
	}

	now := time.Now()
	child := &models.Transaction{
		ID:             uuid.New(),
		MethodID:       methodID,
		Status:         status,
		Amount:         amount,
		Mode:           parent.Mode,
		CustomerID:     sub.CustomerID,
		Description:    parent.Description,
		CardRedacted:   sub.CardRedacted,
		PaymentTokenID: sub.PaymentTokenID,
		ParentID:       &parent.ID,
		OrderDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if child.MethodID == "" {
		child.MethodID = placeholderMethodID()
	}

	if err := s.txRepo.Create(ctx, nil, child); err != nil {
		return err
	}

	s.logger.Info("renewal payment recorded",
		ports.String("subscription_id", sub.ID.String()),
		ports.String("method_id", child.MethodID),
		ports.Int("status", int(status)))
	return nil
}

// declinedError folds a declined or errored charge into a user-facing error.
func declinedError(result *ports.ChargeResult) error {
	msg := strings.Join(result.Messages, " ")
	if msg == "" {
		msg = "the transaction was declined"
	}
	category := perrors.CategoryDeclined
	if result.ResponseCode == 3 {
		category = perrors.CategoryGatewayError
	}
	err := perrors.NewPaymentError("E_DECLINED", msg, category)
	err.GatewayMessage = msg
	return err
}

// refId is limited to 20 characters by the provider.
func newRefID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

func placeholderMethodID() string {
	return "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
