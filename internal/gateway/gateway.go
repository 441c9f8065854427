package gateway

import (
	"context"
	"fmt"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	sports "github.com/commercekit/authnet-gateway/internal/services/ports"
)

// Request is a gateway operation, dispatched by type. Exactly one concrete
// kind exists per operation; Dispatch switches exhaustively.
type Request interface {
	request()
}

// Purchase executes a one-time or recurring checkout.
type Purchase struct{ sports.PurchaseRequest }

// Refund refunds part or all of a settled transaction.
type Refund struct{ sports.RefundRequest }

// Tokenize stores a payment method and materializes a local token.
type Tokenize struct{ sports.TokenizeRequest }

// CancelSubscription cancels a confirmed subscription.
type CancelSubscription struct{ sports.CancelRequest }

// PauseSubscription pauses a confirmed subscription.
type PauseSubscription struct{ sports.PauseRequest }

// ResumeSubscription resumes a paused subscription.
type ResumeSubscription struct{ sports.ResumeRequest }

// UpdatePaymentMethod swaps the payment source on a subscription.
type UpdatePaymentMethod struct{ sports.UpdatePaymentMethodRequest }

// RegisterWebhooks idempotently registers the notification URL with the
// provider for every configured environment.
type RegisterWebhooks struct{ NotifyURL string }

func (Purchase) request()            {}
func (Refund) request()              {}
func (Tokenize) request()            {}
func (CancelSubscription) request()  {}
func (PauseSubscription) request()   {}
func (ResumeSubscription) request()  {}
func (UpdatePaymentMethod) request() {}
func (RegisterWebhooks) request()    {}

// registeredEventTypes is the event list subscribed to on registration.
var registeredEventTypes = []string{
	models.EventSubscriptionSuspended,
	models.EventSubscriptionTerminated,
	models.EventSubscriptionCancelled,
	models.EventPaymentAuthCapture,
	models.EventPaymentVoid,
}

// Gateway binds the provider integration's operations to their services.
// Constructed once with its dependencies and passed explicitly; no global
// registry.
type Gateway struct {
	payments      sports.PaymentService
	subscriptions sports.SubscriptionService
	tokens        sports.TokenizationService
	registrar     ports.WebhookRegistrar
	settingsRepo  ports.SettingsRepository
	resolver      ports.CredentialsResolver
	logger        ports.Logger
}

// New creates a new gateway
func New(
	payments sports.PaymentService,
	subscriptions sports.SubscriptionService,
	tokens sports.TokenizationService,
	registrar ports.WebhookRegistrar,
	settingsRepo ports.SettingsRepository,
	resolver ports.CredentialsResolver,
	logger ports.Logger,
) *Gateway {
	return &Gateway{
		payments:      payments,
		subscriptions: subscriptions,
		tokens:        tokens,
		registrar:     registrar,
		settingsRepo:  settingsRepo,
		resolver:      resolver,
		logger:        logger,
	}
}

// Dispatch routes a request to its handler and returns the operation result,
// when the operation produces one.
func (g *Gateway) Dispatch(ctx context.Context, req Request) (interface{}, error) {
	switch r := req.(type) {
	case Purchase:
		return g.payments.Purchase(ctx, &r.PurchaseRequest)
	case Refund:
		return g.payments.Refund(ctx, &r.RefundRequest)
	case Tokenize:
		return g.tokens.Tokenize(ctx, &r.TokenizeRequest)
	case CancelSubscription:
		return nil, g.subscriptions.Cancel(ctx, &r.CancelRequest)
	case PauseSubscription:
		return nil, g.subscriptions.Pause(ctx, &r.PauseRequest)
	case ResumeSubscription:
		return g.subscriptions.Resume(ctx, &r.ResumeRequest)
	case UpdatePaymentMethod:
		return nil, g.subscriptions.UpdatePaymentMethod(ctx, &r.UpdatePaymentMethodRequest)
	case RegisterWebhooks:
		return nil, g.EnsureWebhookRegistrations(ctx, r.NotifyURL)
	default:
		return nil, fmt.Errorf("unhandled request type %T", req)
	}
}

// EnsureWebhookRegistrations registers the notification URL once per
// configured environment, skipping environments that already have a webhook
// id on file. Called when merchant settings are saved.
func (g *Gateway) EnsureWebhookRegistrations(ctx context.Context, notifyURL string) error {
	settings, err := g.settingsRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	for _, mode := range []models.PurchaseMode{models.ModeLive, models.ModeSandbox} {
		creds := g.resolver.Resolve(settings, mode)
		if creds.LoginID == "" || creds.TransactionKey == "" {
			continue
		}
		if settings.WebhookIDFor(mode) != "" {
			continue
		}

		webhookID, err := g.registrar.Register(ctx, creds, notifyURL, registeredEventTypes)
		if err != nil {
			return fmt.Errorf("register %s webhook: %w", mode, err)
		}
		if err := g.settingsRepo.SaveWebhookID(ctx, mode, webhookID); err != nil {
			return err
		}

		g.logger.Info("registered provider webhook",
			ports.String("mode", string(mode)),
			ports.String("webhook_id", webhookID))
	}
	return nil
}
