package webhook

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	"github.com/commercekit/authnet-gateway/pkg/crypto"
	"github.com/commercekit/authnet-gateway/pkg/observability"
)

// SilentPostHandler terminates the provider's legacy form-encoded
// notification channel. The channel has no documented retry-suppression
// semantics, so every request is answered 200; bad requests are logged and
// dropped, never rejected.
type SilentPostHandler struct {
	subRepo      ports.SubscriptionRepository
	settingsRepo ports.SettingsRepository
	renewals     ports.RenewalRecorder
	logger       *zap.Logger
}

// NewSilentPostHandler creates a new silent post handler
func NewSilentPostHandler(
	subRepo ports.SubscriptionRepository,
	settingsRepo ports.SettingsRepository,
	renewals ports.RenewalRecorder,
	logger *zap.Logger,
) *SilentPostHandler {
	return &SilentPostHandler{
		subRepo:      subRepo,
		settingsRepo: settingsRepo,
		renewals:     renewals,
		logger:       logger,
	}
}

// HandleSilentPost processes a legacy silent-post notification.
// POST application/x-www-form-urlencoded with x_trans_id, x_MD5_Hash,
// x_amount, x_subscription_id, x_response_code.
func (h *SilentPostHandler) HandleSilentPost(w http.ResponseWriter, r *http.Request) {
	// The response is always 200; the provider treats anything else as a
	// delivery failure with unspecified retry behavior.
	defer w.WriteHeader(http.StatusOK)

	if err := r.ParseForm(); err != nil {
		h.logger.Warn("silent post with unparseable form", zap.Error(err))
		observability.RecordWebhookEvent("silent_post", "invalid")
		return
	}

	transID := r.PostFormValue("x_trans_id")
	givenHash := r.PostFormValue("x_MD5_Hash")
	amount := r.PostFormValue("x_amount")
	subscriberID := r.PostFormValue("x_subscription_id")
	responseCode := r.PostFormValue("x_response_code")

	if transID == "" || givenHash == "" {
		h.logger.Warn("silent post missing required fields")
		observability.RecordWebhookEvent("silent_post", "invalid")
		return
	}

	settings, err := h.settingsRepo.Load(r.Context())
	if err != nil {
		h.logger.Error("silent post could not load settings", zap.Error(err))
		observability.RecordWebhookEvent("silent_post", "error")
		return
	}

	// The hash secret is per-environment; whichever verifies determines the
	// mode the notification belongs to.
	mode, ok := h.verifyHash(settings, transID, amount, givenHash)
	if !ok {
		h.logger.Warn("silent post with invalid hash",
			zap.String("trans_id", transID),
		)
		observability.RecordWebhookEvent("silent_post", "invalid_signature")
		return
	}

	if subscriberID == "" {
		observability.RecordWebhookEvent("silent_post", "ignored")
		return
	}

	sub, err := h.subRepo.GetBySubscriberID(r.Context(), nil, subscriberID)
	if err != nil {
		h.logger.Warn("silent post for unknown subscription",
			zap.String("subscriber_id", subscriberID),
			zap.Error(err),
		)
		observability.RecordWebhookEvent("silent_post", "ignored")
		return
	}

	switch responseCode {
	case "1":
		h.recordRenewal(r, sub, transID, amount, mode)
	case "2", "3":
		h.escalateFailure(r, sub)
	default:
		observability.RecordWebhookEvent("silent_post", "ignored")
	}
}

func (h *SilentPostHandler) verifyHash(settings *models.GatewaySettings, transID, amount, given string) (models.PurchaseMode, bool) {
	for _, mode := range []models.PurchaseMode{models.ModeLive, models.ModeSandbox} {
		secret := settings.MD5HashFor(mode)
		if secret == "" {
			continue
		}
		if crypto.VerifySilentPostHash(secret, transID, amount, given) {
			return mode, true
		}
	}
	return "", false
}

func (h *SilentPostHandler) recordRenewal(r *http.Request, sub *models.Subscription, transID, amount string, mode models.PurchaseMode) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		amt = decimal.Zero
	}

	if err := h.renewals.AddRenewalPayment(r.Context(), sub, transID, models.TxnStatusPaid, amt); err != nil {
		h.logger.Error("silent post failed to record renewal",
			zap.String("subscriber_id", sub.SubscriberID),
			zap.Error(err),
		)
		observability.RecordWebhookEvent("silent_post", "error")
		return
	}

	if !sub.IsStatus(models.SubStatusActive) {
		sub.Status = models.SubStatusActive
		if err := h.subRepo.Update(r.Context(), nil, sub); err != nil {
			h.logger.Error("silent post failed to reactivate subscription", zap.Error(err))
			observability.RecordWebhookEvent("silent_post", "error")
			return
		}
	}

	h.logger.Info("silent post renewal recorded",
		zap.String("subscriber_id", sub.SubscriberID),
		zap.String("trans_id", transID),
		zap.String("mode", string(mode)),
	)
	observability.RecordWebhookEvent("silent_post", "ok")
}

// escalateFailure applies the repeated-failure rule: a first failed renewal
// marks payment_failed, a second consecutive one cancels.
func (h *SilentPostHandler) escalateFailure(r *http.Request, sub *models.Subscription) {
	if sub.IsStatus(models.SubStatusPaymentFailed) {
		sub.Status = models.SubStatusCancelled
	} else {
		sub.Status = models.SubStatusPaymentFailed
	}

	if err := h.subRepo.Update(r.Context(), nil, sub); err != nil {
		h.logger.Error("silent post failed to update subscription status", zap.Error(err))
		observability.RecordWebhookEvent("silent_post", "error")
		return
	}

	h.logger.Info("silent post payment failure recorded",
		zap.String("subscriber_id", sub.SubscriberID),
		zap.String("status", string(sub.Status)),
	)
	observability.RecordWebhookEvent("silent_post", "ok")
}
