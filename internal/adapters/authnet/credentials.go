package authnet

import (
	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
)

// Provider endpoints. Transaction processing and webhook registration live on
// distinct REST bases.
const (
	LiveAPIURL    = "https://api.authorize.net/xml/v1/request.api"
	SandboxAPIURL = "https://apitest.authorize.net/xml/v1/request.api"

	LiveWebhookAPIURL    = "https://api.authorize.net/rest/v1/webhooks"
	SandboxWebhookAPIURL = "https://apitest.authorize.net/rest/v1/webhooks"
)

// ResolveCredentials selects the credential set for an action. The recorded
// purchase mode of the transaction or subscription being acted on wins over
// the gateway's current global sandbox flag, so actions against historical
// records always target the environment they were created in. Pass an empty
// mode for actions not tied to an existing record.
func ResolveCredentials(settings *models.GatewaySettings, recorded models.PurchaseMode) ports.Credentials {
	mode := recorded
	if mode == "" {
		mode = settings.CurrentMode()
	}

	if mode == models.ModeSandbox {
		return ports.Credentials{
			BaseURL:        SandboxAPIURL,
			LoginID:        settings.SandboxLoginID,
			TransactionKey: settings.SandboxTransactionKey,
			Mode:           models.ModeSandbox,
		}
	}

	return ports.Credentials{
		BaseURL:        LiveAPIURL,
		LoginID:        settings.LoginID,
		TransactionKey: settings.TransactionKey,
		Mode:           models.ModeLive,
	}
}

// Resolver implements ports.CredentialsResolver.
type Resolver struct{}

func (Resolver) Resolve(settings *models.GatewaySettings, recorded models.PurchaseMode) ports.Credentials {
	return ResolveCredentials(settings, recorded)
}

// WebhookAPIURL returns the webhook-registration REST base for a mode.
func WebhookAPIURL(mode models.PurchaseMode) string {
	if mode == models.ModeSandbox {
		return SandboxWebhookAPIURL
	}
	return LiveWebhookAPIURL
}
