package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	"github.com/commercekit/authnet-gateway/pkg/crypto"
	"github.com/commercekit/authnet-gateway/pkg/observability"
)

// signatureHeader carries the HMAC-SHA512 of the raw request body.
const signatureHeader = "X-ANET-Signature"

// statusWriteLockTTL bounds the hold time of the per-subscription lock taken
// around remote-initiated status writes.
const statusWriteLockTTL = 2 * time.Second

// webhookEvent is the provider's notification body. Payload.ID is the
// subscription id for subscription events and the transaction id for payment
// events.
type webhookEvent struct {
	NotificationID string `json:"notificationId"`
	WebhookID      string `json:"webhookId"`
	EventType      string `json:"eventType"`
	Payload        struct {
		ID         json.Number `json:"id"`
		Status     string      `json:"status"`
		EntityName string      `json:"entityName"`
	} `json:"payload"`
}

// SignedWebhookHandler terminates the provider's modern signed JSON webhook
// feed. Unlike the legacy channel, protocol failures are rejected explicitly:
// the provider suppresses retries on 400.
type SignedWebhookHandler struct {
	subRepo      ports.SubscriptionRepository
	txRepo       ports.TransactionRepository
	settingsRepo ports.SettingsRepository
	charges      ports.ChargeGateway
	renewals     ports.RenewalRecorder
	resolver     ports.CredentialsResolver
	locker       ports.Locker
	logger       *zap.Logger
}

// NewSignedWebhookHandler creates a new signed webhook handler
func NewSignedWebhookHandler(
	subRepo ports.SubscriptionRepository,
	txRepo ports.TransactionRepository,
	settingsRepo ports.SettingsRepository,
	charges ports.ChargeGateway,
	renewals ports.RenewalRecorder,
	resolver ports.CredentialsResolver,
	locker ports.Locker,
	logger *zap.Logger,
) *SignedWebhookHandler {
	return &SignedWebhookHandler{
		subRepo:      subRepo,
		txRepo:       txRepo,
		settingsRepo: settingsRepo,
		charges:      charges,
		renewals:     renewals,
		resolver:     resolver,
		locker:       locker,
		logger:       logger,
	}
}

// HandleWebhook processes a signed provider notification.
// POST application/json with X-ANET-Signature: sha512=<hex>.
func (h *SignedWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}

	settings, err := h.settingsRepo.Load(r.Context())
	if err != nil {
		h.logger.Error("webhook could not load settings", zap.Error(err))
		http.Error(w, "configuration unavailable", http.StatusInternalServerError)
		return
	}

	if settings.SignatureKey == "" && settings.SandboxSignatureKey == "" {
		h.logger.Error("webhook received but no signature key configured")
		http.Error(w, "no signing secret configured", http.StatusInternalServerError)
		return
	}

	// Signature is checked before the body is parsed. The verifying secret
	// determines the environment the event belongs to.
	mode, ok := h.verifySignature(settings, r.Header.Get(signatureHeader), body)
	if !ok {
		observability.RecordWebhookEvent("signed_webhook", "invalid_signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		observability.RecordWebhookEvent("signed_webhook", "invalid")
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	if event.WebhookID != settings.WebhookIDFor(mode) {
		h.logger.Warn("webhook with unrecognized webhook id",
			zap.String("webhook_id", event.WebhookID),
			zap.String("mode", string(mode)),
		)
		observability.RecordWebhookEvent("signed_webhook", "unknown_webhook_id")
		http.Error(w, "unrecognized webhook id", http.StatusBadRequest)
		return
	}

	// Processing failures past this point are logged, not surfaced: only
	// protocol-level failures earn a non-200.
	creds := h.resolver.Resolve(settings, mode)
	if err := h.dispatch(r.Context(), creds, &event); err != nil {
		h.logger.Error("webhook event processing failed",
			zap.String("event_type", event.EventType),
			zap.String("payload_id", event.Payload.ID.String()),
			zap.Error(err),
		)
		observability.RecordWebhookEvent("signed_webhook", "error")
	} else {
		observability.RecordWebhookEvent("signed_webhook", "ok")
	}

	w.WriteHeader(http.StatusOK)
}

func (h *SignedWebhookHandler) verifySignature(settings *models.GatewaySettings, header string, body []byte) (models.PurchaseMode, bool) {
	for _, mode := range []models.PurchaseMode{models.ModeLive, models.ModeSandbox} {
		secret := settings.SignatureKeyFor(mode)
		if secret == "" {
			continue
		}
		if crypto.VerifyWebhookSignature(secret, header, body) == nil {
			return mode, true
		}
	}
	return "", false
}

func (h *SignedWebhookHandler) dispatch(ctx context.Context, creds ports.Credentials, event *webhookEvent) error {
	switch event.EventType {
	case models.EventSubscriptionSuspended:
		return h.setSubscriptionStatus(ctx, event.Payload.ID.String(), models.SubStatusPaymentFailed)

	case models.EventSubscriptionTerminated, models.EventSubscriptionCancelled:
		status := models.SubStatusCancelled
		if event.Payload.Status == "expired" {
			status = models.SubStatusDeactivated
		}
		return h.setSubscriptionStatus(ctx, event.Payload.ID.String(), status)

	case models.EventPaymentAuthCapture:
		return h.handleAuthCapture(ctx, creds, event.Payload.ID.String())

	case models.EventPaymentVoid:
		return h.handleVoid(ctx, creds, event.Payload.ID.String())

	default:
		h.logger.Debug("ignoring webhook event", zap.String("event_type", event.EventType))
		return nil
	}
}

// setSubscriptionStatus applies a remote-initiated status transition under
// the same named lock the local cancel path takes, so the two paths never
// interleave their provider-call-then-write sequences.
func (h *SignedWebhookHandler) setSubscriptionStatus(ctx context.Context, subscriberID string, status models.SubscriptionStatus) error {
	sub, err := h.subRepo.GetBySubscriberID(ctx, nil, subscriberID)
	if err != nil {
		return err
	}

	release, err := h.locker.Acquire(ctx, "authnet-cancel-subscription-"+sub.TransactionID.String(), statusWriteLockTTL)
	if err != nil {
		return err
	}
	defer release()

	// Reread under the lock; a concurrent local cancel may have won.
	sub, err = h.subRepo.GetBySubscriberID(ctx, nil, subscriberID)
	if err != nil {
		return err
	}
	if sub.IsStatus(models.SubStatusCancelled) && status == models.SubStatusCancelled {
		return nil
	}

	sub.Status = status
	if err := h.subRepo.Update(ctx, nil, sub); err != nil {
		return err
	}

	h.logger.Info("subscription status updated from webhook",
		zap.String("subscriber_id", subscriberID),
		zap.String("status", string(status)),
	)
	return nil
}

// handleAuthCapture enriches a thin settlement event with full transaction
// details, then either backfills the subscription's first-payment method id
// or records a renewal.
func (h *SignedWebhookHandler) handleAuthCapture(ctx context.Context, creds ports.Credentials, transID string) error {
	details, err := h.charges.GetTransactionDetails(ctx, creds, transID)
	if err != nil {
		return err
	}
	if details.SubscriptionID == "" {
		// Not a recurring charge; nothing to reconcile.
		return nil
	}

	sub, err := h.subRepo.GetBySubscriberID(ctx, nil, details.SubscriptionID)
	if err != nil {
		return err
	}

	if !details.RecurringBilling {
		// First payment: the originating transaction still carries its
		// placeholder method id.
		if err := h.txRepo.UpdateMethodID(ctx, nil, sub.TransactionID, details.TransID); err != nil {
			return err
		}
		h.logger.Info("backfilled first payment method id",
			zap.String("subscriber_id", sub.SubscriberID),
			zap.String("trans_id", details.TransID),
		)
		return nil
	}

	if err := h.renewals.AddRenewalPayment(ctx, sub, details.TransID, models.TxnStatusPaid, details.AuthAmount); err != nil {
		return err
	}
	if !sub.IsStatus(models.SubStatusActive) {
		sub.Status = models.SubStatusActive
		return h.subRepo.Update(ctx, nil, sub)
	}
	return nil
}

// handleVoid finds the original transaction for a voided provider
// transaction and marks it declined.
func (h *SignedWebhookHandler) handleVoid(ctx context.Context, creds ports.Credentials, transID string) error {
	details, err := h.charges.GetTransactionDetails(ctx, creds, transID)
	if err != nil {
		return err
	}

	txn, err := h.txRepo.GetByMethodID(ctx, nil, details.TransID)
	if err != nil {
		return err
	}

	if err := h.txRepo.UpdateStatus(ctx, nil, txn.ID, models.TxnStatusDeclined); err != nil {
		return err
	}

	h.logger.Info("transaction voided from webhook",
		zap.String("trans_id", details.TransID),
		zap.String("transaction_id", txn.ID.String()),
	)
	return nil
}
