package postgres

import (
	"context"
	"fmt"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
)

// Settings live in the platform's key/value settings store, one row per
// field, under this namespace.
const settingsNamespace = "addon_authorizenet"

// SettingsRepository implements ports.SettingsRepository
type SettingsRepository struct {
	db ports.DBPort
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db ports.DBPort) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load reads the full merchant configuration. Missing keys leave zero values;
// an unconfigured gateway loads as all-empty settings, not an error.
func (r *SettingsRepository) Load(ctx context.Context) (*models.GatewaySettings, error) {
	rows, err := r.db.GetDB().Query(ctx,
		`SELECT key, value FROM settings WHERE namespace = $1`, settingsNamespace)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}

	settings := &models.GatewaySettings{
		SandboxMode: parseBool(values["sandbox_mode"]),
		TestMode:    parseBool(values["test_mode"]),

		LoginID:        values["login_id"],
		TransactionKey: values["transaction_key"],
		MD5Hash:        values["md5_hash"],
		SignatureKey:   values["signature_key"],
		PublicKey:      values["public_key"],
		WebhookID:      values["webhook_id"],

		SandboxLoginID:        values["sandbox_login_id"],
		SandboxTransactionKey: values["sandbox_transaction_key"],
		SandboxMD5Hash:        values["sandbox_md5_hash"],
		SandboxSignatureKey:   values["sandbox_signature_key"],
		SandboxPublicKey:      values["sandbox_public_key"],
		SandboxWebhookID:      values["sandbox_webhook_id"],

		AcceptJS:      parseBool(values["accept_js"]),
		CIM:           parseBool(values["cim"]),
		International: parseBool(values["international"]),
	}
	return settings, nil
}

// SaveWebhookID persists the provider-assigned webhook id for one
// environment.
func (r *SettingsRepository) SaveWebhookID(ctx context.Context, mode models.PurchaseMode, webhookID string) error {
	key := "webhook_id"
	if mode == models.ModeSandbox {
		key = "sandbox_webhook_id"
	}

	_, err := r.db.GetDB().Exec(ctx, `
		INSERT INTO settings (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value`,
		settingsNamespace, key, webhookID)
	if err != nil {
		return fmt.Errorf("save webhook id: %w", err)
	}
	return nil
}

func parseBool(s string) bool {
	return s == "1" || s == "true" || s == "yes"
}
