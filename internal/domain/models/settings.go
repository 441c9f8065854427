package models

// GatewaySettings is the flat merchant configuration for the gateway,
// persisted in the platform settings store under the "addon_authorizenet"
// namespace. Live and sandbox credential sets are entirely disjoint.
type GatewaySettings struct {
	SandboxMode bool
	TestMode    bool

	LoginID        string
	TransactionKey string
	MD5Hash        string
	SignatureKey   string
	PublicKey      string
	WebhookID      string

	SandboxLoginID        string
	SandboxTransactionKey string
	SandboxMD5Hash        string
	SandboxSignatureKey   string
	SandboxPublicKey      string
	SandboxWebhookID      string

	AcceptJS      bool
	CIM           bool
	International bool
}

// CurrentMode returns the environment the gateway is globally configured for.
func (s GatewaySettings) CurrentMode() PurchaseMode {
	if s.SandboxMode {
		return ModeSandbox
	}
	return ModeLive
}

// MD5HashFor returns the silent-post shared secret for the given environment.
func (s GatewaySettings) MD5HashFor(mode PurchaseMode) string {
	if mode == ModeSandbox {
		return s.SandboxMD5Hash
	}
	return s.MD5Hash
}

// SignatureKeyFor returns the webhook HMAC signing secret for the given
// environment.
func (s GatewaySettings) SignatureKeyFor(mode PurchaseMode) string {
	if mode == ModeSandbox {
		return s.SandboxSignatureKey
	}
	return s.SignatureKey
}

// WebhookIDFor returns the registered webhook id for the given environment.
func (s GatewaySettings) WebhookIDFor(mode PurchaseMode) string {
	if mode == ModeSandbox {
		return s.SandboxWebhookID
	}
	return s.WebhookID
}
