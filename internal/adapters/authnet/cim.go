package authnet

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	perrors "github.com/commercekit/authnet-gateway/pkg/errors"
)

type createCustomerProfileRequest struct {
	CreateCustomerProfileRequest struct {
		MerchantAuthentication merchantAuthentication `json:"merchantAuthentication"`
		Profile                struct {
			MerchantCustomerID string       `json:"merchantCustomerId"`
			Email              string       `json:"email"`
			ShipToList         *wireAddress `json:"shipToList,omitempty"`
		} `json:"profile"`
	} `json:"createCustomerProfileRequest"`
}

type createCustomerProfileResponse struct {
	CustomerProfileID json.Number  `json:"customerProfileId"`
	Messages          *apiMessages `json:"messages"`
}

func (r *createCustomerProfileResponse) envelope() *apiMessages { return r.Messages }

// CreateCustomerProfile creates a stored-customer record keyed by the
// platform customer id, carrying the customer's shipping address when one is
// on file. Payment profiles attach separately.
func (c *Client) CreateCustomerProfile(ctx context.Context, creds ports.Credentials, customer models.Customer) (string, error) {
	var body createCustomerProfileRequest
	body.CreateCustomerProfileRequest.MerchantAuthentication = merchantAuthentication{Name: creds.LoginID, TransactionKey: creds.TransactionKey}
	body.CreateCustomerProfileRequest.Profile.MerchantCustomerID = customer.ID
	body.CreateCustomerProfileRequest.Profile.Email = customer.Email
	if !customer.ShippingAddress.IsEmpty() {
		body.CreateCustomerProfileRequest.Profile.ShipToList = c.buildAddress(customer.ShippingAddress)
	}

	var resp createCustomerProfileResponse
	if err := c.post(ctx, "cim_create_customer", creds.BaseURL, body, &resp); err != nil {
		return "", err
	}

	id := resp.CustomerProfileID.String()
	if id == "" {
		return "", perrors.NewPaymentError("E_NO_PROFILE_ID", "provider returned no customer profile id", perrors.CategoryGatewayError)
	}

	c.logger.Info("Created customer profile",
		zap.String("customer_profile_id", id),
		zap.String("customer_id", customer.ID),
	)
	return id, nil
}

type createPaymentProfileRequest struct {
	CreateCustomerPaymentProfileRequest struct {
		MerchantAuthentication merchantAuthentication `json:"merchantAuthentication"`
		CustomerProfileID      string                 `json:"customerProfileId"`
		PaymentProfile         struct {
			BillTo  *wireAddress  `json:"billTo,omitempty"`
			Payment *paymentBlock `json:"payment"`
		} `json:"paymentProfile"`
		ValidationMode string `json:"validationMode"`
	} `json:"createCustomerPaymentProfileRequest"`
}

type createPaymentProfileResponse struct {
	CustomerPaymentProfileID json.Number  `json:"customerPaymentProfileId"`
	Messages                 *apiMessages `json:"messages"`
}

func (r *createPaymentProfileResponse) envelope() *apiMessages { return r.Messages }

// CreatePaymentProfile attaches a payment method to an existing customer
// profile. Validation mode follows the credential environment so sandbox
// tokenization never hits the live card networks.
func (c *Client) CreatePaymentProfile(ctx context.Context, creds ports.Credentials, customerProfileID string, source models.PaymentSource, billTo *models.Address) (string, error) {
	payment, profile, err := buildPayment(source)
	if err != nil {
		return "", err
	}
	if profile != nil {
		return "", perrors.NewValidationError("payment_source", "cannot tokenize an already stored payment method")
	}

	validationMode := "liveMode"
	if creds.Mode == models.ModeSandbox {
		validationMode = "testMode"
	}

	var body createPaymentProfileRequest
	body.CreateCustomerPaymentProfileRequest.MerchantAuthentication = merchantAuthentication{Name: creds.LoginID, TransactionKey: creds.TransactionKey}
	body.CreateCustomerPaymentProfileRequest.CustomerProfileID = customerProfileID
	body.CreateCustomerPaymentProfileRequest.PaymentProfile.Payment = payment
	if billTo != nil {
		body.CreateCustomerPaymentProfileRequest.PaymentProfile.BillTo = c.buildAddress(*billTo)
	}
	body.CreateCustomerPaymentProfileRequest.ValidationMode = validationMode

	var resp createPaymentProfileResponse
	if err := c.post(ctx, "cim_create_payment", creds.BaseURL, body, &resp); err != nil {
		return "", err
	}

	id := resp.CustomerPaymentProfileID.String()
	if id == "" {
		return "", perrors.NewPaymentError("E_NO_PROFILE_ID", "provider returned no payment profile id", perrors.CategoryGatewayError)
	}

	c.logger.Info("Created payment profile",
		zap.String("customer_profile_id", customerProfileID),
		zap.String("payment_profile_id", id),
	)
	return id, nil
}

type getPaymentProfileRequest struct {
	GetCustomerPaymentProfileRequest struct {
		MerchantAuthentication   merchantAuthentication `json:"merchantAuthentication"`
		CustomerProfileID        string                 `json:"customerProfileId"`
		CustomerPaymentProfileID string                 `json:"customerPaymentProfileId"`
	} `json:"getCustomerPaymentProfileRequest"`
}

type getPaymentProfileResponse struct {
	PaymentProfile *struct {
		CustomerPaymentProfileID json.Number `json:"customerPaymentProfileId"`
		Payment                  *struct {
			CreditCard *struct {
				CardNumber     string `json:"cardNumber"`
				ExpirationDate string `json:"expirationDate"`
			} `json:"creditCard"`
		} `json:"payment"`
	} `json:"paymentProfile"`
	Messages *apiMessages `json:"messages"`
}

func (r *getPaymentProfileResponse) envelope() *apiMessages { return r.Messages }

// GetPaymentProfile fetches the stored payment method's display data. Opaque
// tokenization flows use this to recover the masked number and expiry the
// accept blob never exposes.
func (c *Client) GetPaymentProfile(ctx context.Context, creds ports.Credentials, customerProfileID, paymentProfileID string) (*ports.PaymentProfileDetails, error) {
	var body getPaymentProfileRequest
	body.GetCustomerPaymentProfileRequest.MerchantAuthentication = merchantAuthentication{Name: creds.LoginID, TransactionKey: creds.TransactionKey}
	body.GetCustomerPaymentProfileRequest.CustomerProfileID = customerProfileID
	body.GetCustomerPaymentProfileRequest.CustomerPaymentProfileID = paymentProfileID

	var resp getPaymentProfileResponse
	if err := c.post(ctx, "cim_get_payment", creds.BaseURL, body, &resp); err != nil {
		return nil, err
	}

	if resp.PaymentProfile == nil {
		return nil, perrors.NewPaymentError("E_NO_PROFILE", "provider returned no payment profile", perrors.CategoryGatewayError)
	}

	details := &ports.PaymentProfileDetails{
		PaymentProfileID: resp.PaymentProfile.CustomerPaymentProfileID.String(),
	}
	if details.PaymentProfileID == "" {
		details.PaymentProfileID = paymentProfileID
	}
	if p := resp.PaymentProfile.Payment; p != nil && p.CreditCard != nil {
		details.CardNumber = p.CreditCard.CardNumber
		// The provider reports expiry as YYYY-MM, or "XXXX" when masked.
		if exp := p.CreditCard.ExpirationDate; strings.Contains(exp, "-") {
			details.ExpirationDate = exp
		}
	}

	return details, nil
}
