package authnet

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	perrors "github.com/commercekit/authnet-gateway/pkg/errors"
)

// Recurring schedules never carry a real occurrence count; the provider
// treats this value as "until cancelled".
const openEndedOccurrences = 9999

// Schedule start dates are rendered in the provider's processing timezone so
// the first charge lands on the intended calendar day.
var scheduleTimezone = func() *time.Location {
	loc, err := time.LoadLocation("America/Denver")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// buildPaymentSchedule maps a billing interval onto the provider's two
// supported units. The provider has no native week or year unit, so weeks
// become days and years become months. A month interval cannot exceed 12, so
// every yearly schedule renders as 12 months regardless of its count.
func buildPaymentSchedule(profile models.RecurringProfile, start time.Time) paymentSchedule {
	var interval paymentInterval
	switch profile.Interval {
	case models.IntervalYear:
		interval = paymentInterval{Length: 12, Unit: "months"}
	case models.IntervalWeek:
		interval = paymentInterval{Length: profile.IntervalCount * 7, Unit: "days"}
	case models.IntervalDay:
		interval = paymentInterval{Length: profile.IntervalCount, Unit: "days"}
	default:
		interval = paymentInterval{Length: profile.IntervalCount, Unit: "months"}
	}

	return paymentSchedule{
		Interval:         interval,
		StartDate:        start.In(scheduleTimezone).Format("2006-01-02"),
		TotalOccurrences: openEndedOccurrences,
	}
}

type arbSubscription struct {
	Name            string          `json:"name"`
	PaymentSchedule paymentSchedule `json:"paymentSchedule"`
	Amount          string          `json:"amount"`
	Payment         *paymentBlock   `json:"payment,omitempty"`
	Profile         *arbProfile     `json:"profile,omitempty"`
	Order           *orderInfo      `json:"order,omitempty"`
	Customer        *customerInfo   `json:"customer,omitempty"`
	BillTo          *wireAddress    `json:"billTo,omitempty"`
	ShipTo          *wireAddress    `json:"shipTo,omitempty"`
}

type arbCreateRequest struct {
	ARBCreateSubscriptionRequest struct {
		MerchantAuthentication merchantAuthentication `json:"merchantAuthentication"`
		RefID                  string                 `json:"refId"`
		Subscription           arbSubscription        `json:"subscription"`
	} `json:"ARBCreateSubscriptionRequest"`
}

type arbCreateResponse struct {
	SubscriptionID json.Number  `json:"subscriptionId"`
	Messages       *apiMessages `json:"messages"`
}

func (r *arbCreateResponse) envelope() *apiMessages { return r.Messages }

// CreateSubscription registers a recurring schedule and returns the
// provider's subscription id.
func (c *Client) CreateSubscription(ctx context.Context, creds ports.Credentials, req *ports.SubscriptionRequest) (string, error) {
	payment, profile, err := buildPayment(req.Source)
	if err != nil {
		return "", err
	}

	sub := arbSubscription{
		Name:            req.Name,
		PaymentSchedule: buildPaymentSchedule(req.Profile, req.StartDate),
		Amount:          req.Amount.StringFixed(2),
		Payment:         payment,
		Order:           &orderInfo{Description: req.Description},
		Customer:        &customerInfo{ID: req.Customer.ID, Email: req.Customer.Email},
	}
	if profile != nil {
		sub.Profile = &arbProfile{
			CustomerProfileID:        profile.CustomerProfileID,
			CustomerPaymentProfileID: profile.PaymentProfile.PaymentProfileID,
		}
	} else {
		if req.BillTo != nil {
			sub.BillTo = c.buildAddress(*req.BillTo)
		}
		if req.ShipTo != nil {
			sub.ShipTo = c.buildAddress(*req.ShipTo)
		}
	}

	var body arbCreateRequest
	body.ARBCreateSubscriptionRequest.MerchantAuthentication = merchantAuthentication{Name: creds.LoginID, TransactionKey: creds.TransactionKey}
	body.ARBCreateSubscriptionRequest.RefID = req.RefID
	body.ARBCreateSubscriptionRequest.Subscription = sub

	var resp arbCreateResponse
	if err := c.post(ctx, "arb_create", creds.BaseURL, body, &resp); err != nil {
		return "", err
	}

	id := resp.SubscriptionID.String()
	if id == "" {
		return "", perrors.NewPaymentError("E_NO_SUBSCRIPTION_ID", "provider returned no subscription id", perrors.CategoryGatewayError)
	}

	c.logger.Info("Created recurring subscription",
		zap.String("subscription_id", id),
		zap.String("ref_id", req.RefID),
	)
	return id, nil
}

type arbUpdateRequest struct {
	ARBUpdateSubscriptionRequest struct {
		MerchantAuthentication merchantAuthentication `json:"merchantAuthentication"`
		SubscriptionID         string                 `json:"subscriptionId"`
		Subscription           struct {
			Payment *paymentBlock `json:"payment,omitempty"`
			Profile *arbProfile   `json:"profile,omitempty"`
		} `json:"subscription"`
	} `json:"ARBUpdateSubscriptionRequest"`
}

type arbStatusResponse struct {
	Messages *apiMessages `json:"messages"`
}

func (r *arbStatusResponse) envelope() *apiMessages { return r.Messages }

// UpdateSubscriptionPayment swaps the payment source on an existing
// subscription without touching its schedule.
func (c *Client) UpdateSubscriptionPayment(ctx context.Context, creds ports.Credentials, subscriptionID string, source models.PaymentSource) error {
	payment, profile, err := buildPayment(source)
	if err != nil {
		return err
	}

	var body arbUpdateRequest
	body.ARBUpdateSubscriptionRequest.MerchantAuthentication = merchantAuthentication{Name: creds.LoginID, TransactionKey: creds.TransactionKey}
	body.ARBUpdateSubscriptionRequest.SubscriptionID = subscriptionID
	body.ARBUpdateSubscriptionRequest.Subscription.Payment = payment
	if profile != nil {
		body.ARBUpdateSubscriptionRequest.Subscription.Profile = &arbProfile{
			CustomerProfileID:        profile.CustomerProfileID,
			CustomerPaymentProfileID: profile.PaymentProfile.PaymentProfileID,
		}
	}

	var resp arbStatusResponse
	return c.post(ctx, "arb_update", creds.BaseURL, body, &resp)
}

type arbCancelRequest struct {
	ARBCancelSubscriptionRequest struct {
		MerchantAuthentication merchantAuthentication `json:"merchantAuthentication"`
		SubscriptionID         string                 `json:"subscriptionId"`
	} `json:"ARBCancelSubscriptionRequest"`
}

// CancelSubscription stops the provider-side schedule. Local status is the
// caller's concern.
func (c *Client) CancelSubscription(ctx context.Context, creds ports.Credentials, subscriptionID string) error {
	var body arbCancelRequest
	body.ARBCancelSubscriptionRequest.MerchantAuthentication = merchantAuthentication{Name: creds.LoginID, TransactionKey: creds.TransactionKey}
	body.ARBCancelSubscriptionRequest.SubscriptionID = subscriptionID

	var resp arbStatusResponse
	if err := c.post(ctx, "arb_cancel", creds.BaseURL, body, &resp); err != nil {
		return err
	}

	c.logger.Info("Cancelled recurring subscription", zap.String("subscription_id", subscriptionID))
	return nil
}
