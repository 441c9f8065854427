package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	sports "github.com/commercekit/authnet-gateway/internal/services/ports"
	perrors "github.com/commercekit/authnet-gateway/pkg/errors"
	"github.com/commercekit/authnet-gateway/pkg/observability"
)

// The lock serializes a locally-initiated status write against a concurrent
// provider webhook for the same subscription. Held only around the
// call-provider-then-write-status critical section.
const lockTTL = 2 * time.Second

func lockName(transactionID uuid.UUID) string {
	return "authnet-cancel-subscription-" + transactionID.String()
}

// Service implements sports.SubscriptionService
type Service struct {
	db           ports.DBPort
	subRepo      ports.SubscriptionRepository
	txRepo       ports.TransactionRepository
	settingsRepo ports.SettingsRepository
	recurring    ports.RecurringGateway
	charges      ports.ChargeGateway
	resolver     ports.CredentialsResolver
	locker       ports.Locker
	tokens       sports.TokenizationService
	payments     sports.PaymentService
	renewals     ports.RenewalRecorder
	logger       ports.Logger
}

// NewService creates a new subscription lifecycle service
func NewService(
	db ports.DBPort,
	subRepo ports.SubscriptionRepository,
	txRepo ports.TransactionRepository,
	settingsRepo ports.SettingsRepository,
	recurring ports.RecurringGateway,
	charges ports.ChargeGateway,
	resolver ports.CredentialsResolver,
	locker ports.Locker,
	tokens sports.TokenizationService,
	payments sports.PaymentService,
	renewals ports.RenewalRecorder,
	logger ports.Logger,
) *Service {
	return &Service{
		db:           db,
		subRepo:      subRepo,
		txRepo:       txRepo,
		settingsRepo: settingsRepo,
		recurring:    recurring,
		charges:      charges,
		resolver:     resolver,
		locker:       locker,
		tokens:       tokens,
		payments:     payments,
		renewals:     renewals,
		logger:       logger,
	}
}

// Cancel stops the provider-side schedule and marks the subscription
// cancelled. The named lock is taken before the provider call so a
// concurrently arriving webhook cannot write a conflicting status.
func (s *Service) Cancel(ctx context.Context, req *sports.CancelRequest) error {
	sub, creds, err := s.loadConfirmed(ctx, req.SubscriptionID)
	if err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, lockName(sub.TransactionID), lockTTL)
	if err != nil {
		return fmt.Errorf("acquire cancel lock: %w", err)
	}
	defer release()

	if err := s.recurring.CancelSubscription(ctx, creds, sub.SubscriberID); err != nil {
		// Local status stays untouched when the provider rejects the cancel.
		observability.RecordSubscriptionAction("cancel", "error")
		return err
	}

	sub.Status = models.SubStatusCancelled
	sub.CancellationReason = req.Reason
	sub.CancelledBy = req.Actor
	if err := s.subRepo.Update(ctx, nil, sub); err != nil {
		return err
	}

	observability.RecordSubscriptionAction("cancel", "ok")
	s.logger.Info("subscription cancelled",
		ports.String("subscription_id", sub.ID.String()),
		ports.String("subscriber_id", sub.SubscriberID),
		ports.String("cancelled_by", req.Actor))
	return nil
}

// Pause cancels the provider-side schedule but keeps the local record
// distinct from a genuine cancellation: only the paused-by actor is written.
func (s *Service) Pause(ctx context.Context, req *sports.PauseRequest) error {
	sub, creds, err := s.loadConfirmed(ctx, req.SubscriptionID)
	if err != nil {
		return err
	}

	if err := s.recurring.CancelSubscription(ctx, creds, sub.SubscriberID); err != nil {
		observability.RecordSubscriptionAction("pause", "error")
		return err
	}

	sub.PausedBy = req.Actor
	if err := s.subRepo.Update(ctx, nil, sub); err != nil {
		return err
	}

	observability.RecordSubscriptionAction("pause", "ok")
	s.logger.Info("subscription paused",
		ports.String("subscription_id", sub.ID.String()),
		ports.String("paused_by", req.Actor))
	return nil
}

// Resume replays a purchase with the subscription's stored token and a
// synthetic cart rebuilt from the original transaction. The start date is
// the old expiry when it is still ahead, so the new schedule continues where
// the old one left off.
func (s *Service) Resume(ctx context.Context, req *sports.ResumeRequest) (*sports.PurchaseResult, error) {
	sub, err := s.subRepo.GetByID(ctx, nil, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.PaymentTokenID == nil {
		return nil, perrors.NewValidationError("subscription", "subscription has no stored payment token to resume with")
	}

	original, err := s.txRepo.GetByID(ctx, nil, sub.TransactionID)
	if err != nil {
		return nil, err
	}

	start := sub.ExpiryDate
	if start.Before(time.Now()) {
		start = time.Now()
	}

	profile := sub.Profile
	cart := models.Cart{
		Customer:    models.Customer{ID: sub.CustomerID},
		Description: original.Description,
		Items: []models.LineItem{{
			Name:     original.Description,
			Amount:   sub.RecurringAmount,
			Quantity: 1,
			Profile:  &profile,
		}},
	}

	result, err := s.payments.Purchase(ctx, &sports.PurchaseRequest{
		Cart:                cart,
		Source:              sports.SourceInput{PaymentTokenID: sub.PaymentTokenID},
		ParentTransactionID: &sub.TransactionID,
		StartDateOverride:   &start,
	})
	if err != nil {
		observability.RecordSubscriptionAction("resume", "error")
		return nil, err
	}

	// The replay created a fresh subscription record; the old one only
	// loses its paused marker. Its terminal status is the provider's to
	// report going forward.
	sub.PausedBy = ""
	if err := s.subRepo.Update(ctx, nil, sub); err != nil {
		return nil, err
	}

	observability.RecordSubscriptionAction("resume", "ok")
	s.logger.Info("subscription resumed",
		ports.String("subscription_id", sub.ID.String()),
		ports.String("new_subscriber_id", result.Subscription.SubscriberID),
		ports.String("start_date", start.Format("2006-01-02")))
	return result, nil
}

// UpdatePaymentMethod swaps the payment source on the provider-side
// subscription. A payment-failed subscription past its expiry owes the
// merchant the unbilled remainder of the cycle, charged before the update is
// sent: the provider does not retry the missed cycle itself.
func (s *Service) UpdatePaymentMethod(ctx context.Context, req *sports.UpdatePaymentMethodRequest) error {
	sub, creds, err := s.loadConfirmed(ctx, req.SubscriptionID)
	if err != nil {
		return err
	}

	resolved, err := s.tokens.ResolveSource(ctx, req.Source, models.Customer{ID: sub.CustomerID}, req.BillTo, creds)
	if err != nil {
		return err
	}

	if sub.IsStatus(models.SubStatusPaymentFailed) && time.Now().After(sub.ExpiryDate) {
		daysSince := int(time.Since(sub.ExpiryDate).Hours() / 24)
		fee := ReactivationFee(sub.RecurringAmount, sub.Profile.CycleSeconds(), daysSince)
		if fee.IsPositive() {
			if err := s.chargeReactivationFee(ctx, creds, sub, resolved, fee); err != nil {
				observability.RecordSubscriptionAction("update_payment", "error")
				return err
			}
		}
	}

	if err := s.recurring.UpdateSubscriptionPayment(ctx, creds, sub.SubscriberID, resolved.Source); err != nil {
		observability.RecordSubscriptionAction("update_payment", "error")
		return err
	}

	if resolved.TokenID != nil {
		sub.PaymentTokenID = resolved.TokenID
	}
	if resolved.Redacted != "" {
		sub.CardRedacted = resolved.Redacted
	}
	if sub.IsStatus(models.SubStatusPaymentFailed) {
		sub.Status = models.SubStatusActive
	}
	if err := s.subRepo.Update(ctx, nil, sub); err != nil {
		return err
	}

	observability.RecordSubscriptionAction("update_payment", "ok")
	s.logger.Info("subscription payment method updated",
		ports.String("subscription_id", sub.ID.String()),
		ports.String("subscriber_id", sub.SubscriberID))
	return nil
}

func (s *Service) chargeReactivationFee(ctx context.Context, creds ports.Credentials, sub *models.Subscription, resolved *sports.ResolvedSource, fee decimal.Decimal) error {
	result, err := s.charges.Charge(ctx, creds, &ports.ChargeRequest{
		RefID:       strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
		Amount:      fee,
		Source:      resolved.Source,
		Description: "reactivation fee",
		Customer:    models.Customer{ID: sub.CustomerID},
	})
	if err != nil {
		return err
	}
	if !result.Approved {
		msg := strings.Join(result.Messages, " ")
		if msg == "" {
			msg = "the reactivation fee was declined"
		}
		apiErr := perrors.NewPaymentError("E_DECLINED", msg, perrors.CategoryDeclined)
		apiErr.GatewayMessage = msg
		return apiErr
	}

	return s.renewals.AddRenewalPayment(ctx, sub, result.TransID, models.TransactionStatus(result.ResponseCode), fee)
}

// loadConfirmed fetches a subscription, refusing to act on one the provider
// has not yet confirmed, and resolves credentials for the environment its
// originating transaction was created in.
func (s *Service) loadConfirmed(ctx context.Context, id uuid.UUID) (*models.Subscription, ports.Credentials, error) {
	sub, err := s.subRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, ports.Credentials{}, err
	}
	if !sub.HasSubscriberID() {
		return nil, ports.Credentials{}, perrors.NewValidationError("subscription", "subscription is not yet confirmed by the provider")
	}

	txn, err := s.txRepo.GetByID(ctx, nil, sub.TransactionID)
	if err != nil {
		return nil, ports.Credentials{}, err
	}

	settings, err := s.settingsRepo.Load(ctx)
	if err != nil {
		return nil, ports.Credentials{}, fmt.Errorf("load settings: %w", err)
	}

	return sub, s.resolver.Resolve(settings, txn.Mode), nil
}

// ReactivationFee computes the pro-rated charge for the unbilled remainder of
// a missed cycle. Non-negative, and zero once a full cycle has elapsed.
func ReactivationFee(recurringAmount decimal.Decimal, cycleSeconds int64, daysSinceExpiry int) decimal.Decimal {
	daysInCycle := cycleSeconds / 86400
	if daysInCycle <= 0 || daysSinceExpiry < 0 {
		return decimal.Zero
	}

	daysLeft := daysInCycle - int64(daysSinceExpiry)
	if daysLeft <= 0 {
		return decimal.Zero
	}

	dailyCost := recurringAmount.Div(decimal.NewFromInt(daysInCycle))
	return dailyCost.Mul(decimal.NewFromInt(daysLeft)).Round(2)
}
