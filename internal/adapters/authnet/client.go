package authnet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	perrors "github.com/commercekit/authnet-gateway/pkg/errors"
	"github.com/commercekit/authnet-gateway/pkg/observability"
)

// ErrNoTransaction is returned when a success envelope arrives without the
// expected transaction body. Observed provider defect; callers treat it as
// "no transaction" rather than a panic.
var ErrNoTransaction = errors.New("provider response contained no transaction")

// utf8BOM is the byte-order-mark artifact the provider prepends to some
// responses. Stripped before JSON decoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Config contains configuration for the Authorize.Net client
type Config struct {
	// HTTP client timeout for charge/tokenize/ARB calls
	Timeout time.Duration

	// International enables the country-code conversion hook used by
	// international processor accounts
	International    bool
	CountryConverter func(code string) string
}

// DefaultConfig returns default client configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}

// Client talks to the provider's JSON transaction API. Credentials are
// resolved per call, never stored: a single client serves both environments.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Authorize.Net API client
func NewClient(config *Config, logger *zap.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// post sends a JSON request to the provider and decodes the response into
// out. The response body has its BOM stripped before decoding, and the
// messages envelope is classified: resultCode "Error" becomes a PaymentError
// carrying the first message's text.
func (c *Client) post(ctx context.Context, op, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Provider request failed",
			zap.String("operation", op),
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		observability.RecordProviderCall(op, "transport_error", time.Since(start))
		return perrors.NewTransportError(op, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		observability.RecordProviderCall(op, "transport_error", time.Since(start))
		return perrors.NewTransportError(op, err)
	}

	c.logger.Debug("Received provider response",
		zap.String("operation", op),
		zap.Int("status_code", httpResp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("body_length", len(raw)),
	)

	raw = bytes.TrimPrefix(raw, utf8BOM)

	if err := json.Unmarshal(raw, out); err != nil {
		observability.RecordProviderCall(op, "parse_error", time.Since(start))
		return fmt.Errorf("decode %s response: %w", op, err)
	}

	if apiErr := classifyEnvelope(out); apiErr != nil {
		c.logger.Warn("Provider returned application error",
			zap.String("operation", op),
			zap.String("gateway_message", apiErr.GatewayMessage),
		)
		observability.RecordProviderCall(op, "application_error", time.Since(start))
		return apiErr
	}

	observability.RecordProviderCall(op, "ok", time.Since(start))
	return nil
}

// enveloped is implemented by response types that carry the shared messages
// envelope.
type enveloped interface {
	envelope() *apiMessages
}

// classifyEnvelope inspects the decoded response for the provider's error
// envelope. A response lacking messages, or with a non-"Error" result code,
// is success.
func classifyEnvelope(out interface{}) *perrors.PaymentError {
	resp, ok := out.(enveloped)
	if !ok {
		return nil
	}

	msgs := resp.envelope()
	if msgs == nil || msgs.ResultCode != "Error" {
		return nil
	}

	apiErr := perrors.NewPaymentError("E_GATEWAY", "provider rejected request", perrors.CategoryGatewayError)
	if len(msgs.Message) > 0 {
		first := msgs.Message[0]
		apiErr.Code = first.Code
		if apiErr.Code == "" {
			apiErr.Code = "E_GATEWAY"
		}
		apiErr.GatewayMessage = first.Text
	}
	return apiErr
}
