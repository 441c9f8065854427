package authnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	perrors "github.com/commercekit/authnet-gateway/pkg/errors"
	"github.com/commercekit/authnet-gateway/pkg/observability"
)

type webhookRegistrationRequest struct {
	URL        string   `json:"url"`
	EventTypes []string `json:"eventTypes"`
	Status     string   `json:"status"`
}

type webhookRegistrationResponse struct {
	WebhookID string `json:"webhookId"`
	Status    string `json:"status"`
}

// Register creates an active webhook endpoint on the provider's REST API and
// returns its id. Unlike the transaction API, this surface authenticates with
// HTTP basic auth and signals failure through status codes, not a messages
// envelope.
func (c *Client) Register(ctx context.Context, creds ports.Credentials, notifyURL string, eventTypes []string) (string, error) {
	const op = "webhook_register"

	payload, err := json.Marshal(webhookRegistrationRequest{
		URL:        notifyURL,
		EventTypes: eventTypes,
		Status:     "active",
	})
	if err != nil {
		return "", fmt.Errorf("marshal %s request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, WebhookAPIURL(creds.Mode), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(creds.LoginID, creds.TransactionKey)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		observability.RecordProviderCall(op, "transport_error", time.Since(start))
		return "", perrors.NewTransportError(op, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		observability.RecordProviderCall(op, "transport_error", time.Since(start))
		return "", perrors.NewTransportError(op, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.Warn("Webhook registration rejected",
			zap.Int("status_code", httpResp.StatusCode),
			zap.String("body", string(raw)),
		)
		observability.RecordProviderCall(op, "application_error", time.Since(start))
		return "", perrors.NewPaymentError("E_WEBHOOK_REGISTRATION",
			fmt.Sprintf("webhook registration failed with status %d", httpResp.StatusCode),
			perrors.CategoryGatewayError)
	}

	var resp webhookRegistrationResponse
	if err := json.Unmarshal(bytes.TrimPrefix(raw, utf8BOM), &resp); err != nil {
		observability.RecordProviderCall(op, "parse_error", time.Since(start))
		return "", fmt.Errorf("decode %s response: %w", op, err)
	}

	if resp.WebhookID == "" {
		observability.RecordProviderCall(op, "application_error", time.Since(start))
		return "", perrors.NewPaymentError("E_WEBHOOK_REGISTRATION", "provider returned no webhook id", perrors.CategoryGatewayError)
	}

	observability.RecordProviderCall(op, "ok", time.Since(start))
	c.logger.Info("Registered webhook endpoint",
		zap.String("webhook_id", resp.WebhookID),
		zap.String("notify_url", notifyURL),
	)
	return resp.WebhookID, nil
}
