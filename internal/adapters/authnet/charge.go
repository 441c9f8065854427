package authnet

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	perrors "github.com/commercekit/authnet-gateway/pkg/errors"
)

const opaqueDataDescriptor = "COMMON.ACCEPT.INAPP.PAYMENT"

// buildPayment maps a payment source onto the wire: exactly one of the
// payment block or the stored-profile reference, never both, never neither.
func buildPayment(source models.PaymentSource) (*paymentBlock, *chargeProfile, error) {
	switch s := source.(type) {
	case models.OpaqueToken:
		return &paymentBlock{OpaqueData: &opaqueData{
			DataDescriptor: opaqueDataDescriptor,
			DataValue:      s.DataValue,
		}}, nil, nil
	case models.Card:
		return &paymentBlock{CreditCard: &creditCard{
			CardNumber:     s.Number,
			ExpirationDate: s.ExpMonth + s.ExpYear,
			CardCode:       s.CVC,
		}}, nil, nil
	case models.BankAccount:
		accountType := "checking"
		if s.Company {
			accountType = "businessChecking"
		}
		return &paymentBlock{BankAccount: &bankAccount{
			AccountType:   accountType,
			RoutingNumber: s.RoutingNumber,
			AccountNumber: s.AccountNumber,
			NameOnAccount: s.HolderName,
			EcheckType:    "WEB",
		}}, nil, nil
	case models.StoredToken:
		return nil, &chargeProfile{
			CustomerProfileID: s.CustomerProfileID,
			PaymentProfile:    paymentProfileRef{PaymentProfileID: s.PaymentProfileID},
		}, nil
	default:
		return nil, nil, perrors.NewValidationError("payment_source", "invalid payment method")
	}
}

type createTransactionRequest struct {
	CreateTransactionRequest createTransactionBody `json:"createTransactionRequest"`
}

type createTransactionBody struct {
	MerchantAuthentication merchantAuthentication `json:"merchantAuthentication"`
	RefID                  string                 `json:"refId"`
	TransactionRequest     transactionRequest     `json:"transactionRequest"`
}

type transactionRequest struct {
	TransactionType     string               `json:"transactionType"`
	Amount              string               `json:"amount"`
	Payment             *paymentBlock        `json:"payment,omitempty"`
	Profile             *chargeProfile       `json:"profile,omitempty"`
	RefTransID          string               `json:"refTransId,omitempty"`
	Order               *orderInfo           `json:"order,omitempty"`
	Customer            *customerInfo        `json:"customer,omitempty"`
	BillTo              *wireAddress         `json:"billTo,omitempty"`
	ShipTo              *wireAddress         `json:"shipTo,omitempty"`
	Retail              *retailInfo          `json:"retail,omitempty"`
	TransactionSettings *transactionSettings `json:"transactionSettings,omitempty"`
}

type wireTransactionResponse struct {
	ResponseCode string `json:"responseCode"`
	TransID      string `json:"transId"`
	Messages     []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"messages"`
	Errors []struct {
		ErrorCode string `json:"errorCode"`
		ErrorText string `json:"errorText"`
	} `json:"errors"`
}

type createTransactionResponse struct {
	TransactionResponse *wireTransactionResponse `json:"transactionResponse"`
	Messages            *apiMessages             `json:"messages"`
}

func (r *createTransactionResponse) envelope() *apiMessages { return r.Messages }

// Charge submits a one-time authCaptureTransaction.
func (c *Client) Charge(ctx context.Context, creds ports.Credentials, req *ports.ChargeRequest) (*ports.ChargeResult, error) {
	payment, profile, err := buildPayment(req.Source)
	if err != nil {
		return nil, err
	}

	txn := transactionRequest{
		TransactionType: "authCaptureTransaction",
		Amount:          req.Amount.StringFixed(2),
		Payment:         payment,
		Profile:         profile,
		Order:           &orderInfo{Description: req.Description},
		Customer:        &customerInfo{ID: req.Customer.ID, Email: req.Customer.Email},
		Retail:          &retailInfo{MarketType: 0, DeviceType: 8},
	}

	// billTo travels with raw payment data only; a stored profile already
	// carries its own billing address.
	if profile == nil && req.BillTo != nil {
		txn.BillTo = c.buildAddress(*req.BillTo)
	}
	if req.ShipTo != nil {
		txn.ShipTo = c.buildAddress(*req.ShipTo)
	}
	if req.TestMode {
		txn.TransactionSettings = &transactionSettings{
			Setting: transactionSetting{SettingName: "testRequest", SettingValue: true},
		}
	}

	body := createTransactionRequest{
		CreateTransactionRequest: createTransactionBody{
			MerchantAuthentication: merchantAuthentication{Name: creds.LoginID, TransactionKey: creds.TransactionKey},
			RefID:                  req.RefID,
			TransactionRequest:     txn,
		},
	}

	var resp createTransactionResponse
	if err := c.post(ctx, "charge", creds.BaseURL, body, &resp); err != nil {
		return nil, err
	}

	return interpretTransactionResponse(resp.TransactionResponse)
}

// Refund submits a refundTransaction against a settled charge. The provider
// requires the original card's last four digits; the expiration date is
// masked per its refund convention.
func (c *Client) Refund(ctx context.Context, creds ports.Credentials, req *ports.RefundRequest) (*ports.ChargeResult, error) {
	body := createTransactionRequest{
		CreateTransactionRequest: createTransactionBody{
			MerchantAuthentication: merchantAuthentication{Name: creds.LoginID, TransactionKey: creds.TransactionKey},
			RefID:                  req.RefID,
			TransactionRequest: transactionRequest{
				TransactionType: "refundTransaction",
				Amount:          req.Amount.StringFixed(2),
				RefTransID:      req.RefTransID,
				Payment: &paymentBlock{CreditCard: &creditCard{
					CardNumber:     req.CardRedacted,
					ExpirationDate: "XXXX",
				}},
			},
		},
	}

	var resp createTransactionResponse
	if err := c.post(ctx, "refund", creds.BaseURL, body, &resp); err != nil {
		return nil, err
	}

	return interpretTransactionResponse(resp.TransactionResponse)
}

func interpretTransactionResponse(tr *wireTransactionResponse) (*ports.ChargeResult, error) {
	if tr == nil {
		return nil, ErrNoTransaction
	}

	code, _ := strconv.Atoi(tr.ResponseCode)

	var messages []string
	for _, m := range tr.Messages {
		if m.Description != "" {
			messages = append(messages, m.Description)
		}
	}
	for _, e := range tr.Errors {
		if e.ErrorText != "" {
			messages = append(messages, e.ErrorText)
		}
	}

	return &ports.ChargeResult{
		TransID:      tr.TransID,
		ResponseCode: code,
		Approved:     code == 1 || code == 4,
		Messages:     messages,
	}, nil
}

type getTransactionDetailsRequest struct {
	GetTransactionDetailsRequest struct {
		MerchantAuthentication merchantAuthentication `json:"merchantAuthentication"`
		TransID                string                 `json:"transId"`
	} `json:"getTransactionDetailsRequest"`
}

type getTransactionDetailsResponse struct {
	Transaction *struct {
		TransID      string      `json:"transId"`
		ResponseCode int         `json:"responseCode"`
		AuthAmount   json.Number `json:"authAmount"`
		Subscription *struct {
			ID     json.Number `json:"id"`
			PayNum int         `json:"payNum"`
		} `json:"subscription"`
		RecurringBilling bool `json:"recurringBilling"`
		Payment          *struct {
			CreditCard *creditCard `json:"creditCard"`
		} `json:"payment"`
	} `json:"transaction"`
	Messages *apiMessages `json:"messages"`
}

func (r *getTransactionDetailsResponse) envelope() *apiMessages { return r.Messages }

// GetTransactionDetails fetches the full provider-side record for a
// transaction id. Used by webhook handlers to enrich thin event payloads.
func (c *Client) GetTransactionDetails(ctx context.Context, creds ports.Credentials, transID string) (*ports.TransactionDetails, error) {
	var body getTransactionDetailsRequest
	body.GetTransactionDetailsRequest.MerchantAuthentication = merchantAuthentication{Name: creds.LoginID, TransactionKey: creds.TransactionKey}
	body.GetTransactionDetailsRequest.TransID = transID

	var resp getTransactionDetailsResponse
	if err := c.post(ctx, "transaction_details", creds.BaseURL, body, &resp); err != nil {
		return nil, err
	}

	if resp.Transaction == nil {
		return nil, ErrNoTransaction
	}

	details := &ports.TransactionDetails{
		TransID:          resp.Transaction.TransID,
		ResponseCode:     resp.Transaction.ResponseCode,
		RecurringBilling: resp.Transaction.RecurringBilling,
	}

	if amt, err := decimal.NewFromString(resp.Transaction.AuthAmount.String()); err == nil {
		details.AuthAmount = amt
	}
	if resp.Transaction.Subscription != nil {
		details.SubscriptionID = resp.Transaction.Subscription.ID.String()
	}
	if resp.Transaction.Payment != nil && resp.Transaction.Payment.CreditCard != nil {
		details.AccountNumber = resp.Transaction.Payment.CreditCard.CardNumber
	}

	c.logger.Debug("Fetched transaction details",
		zap.String("trans_id", details.TransID),
		zap.String("subscription_id", details.SubscriptionID),
		zap.Bool("recurring_billing", details.RecurringBilling),
	)

	return details, nil
}
