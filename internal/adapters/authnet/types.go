package authnet

import (
	"encoding/json"
	"regexp"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
)

// Wire structures for the provider's JSON API. Field order inside a request
// is not significant to the provider, but names are.

type merchantAuthentication struct {
	Name           string `json:"name"`
	TransactionKey string `json:"transactionKey"`
}

type creditCard struct {
	CardNumber     string `json:"cardNumber"`
	ExpirationDate string `json:"expirationDate"`
	CardCode       string `json:"cardCode,omitempty"`
}

type opaqueData struct {
	DataDescriptor string `json:"dataDescriptor"`
	DataValue      string `json:"dataValue"`
}

type bankAccount struct {
	AccountType   string `json:"accountType"`
	RoutingNumber string `json:"routingNumber"`
	AccountNumber string `json:"accountNumber"`
	NameOnAccount string `json:"nameOnAccount"`
	EcheckType    string `json:"echeckType"`
}

// paymentBlock carries exactly one concrete payment source.
type paymentBlock struct {
	CreditCard  *creditCard  `json:"creditCard,omitempty"`
	OpaqueData  *opaqueData  `json:"opaqueData,omitempty"`
	BankAccount *bankAccount `json:"bankAccount,omitempty"`
}

// chargeProfile references a stored payment method on a one-time charge.
// Mutually exclusive with paymentBlock and billTo.
type chargeProfile struct {
	CustomerProfileID string            `json:"customerProfileId"`
	PaymentProfile    paymentProfileRef `json:"paymentProfile"`
}

type paymentProfileRef struct {
	PaymentProfileID string `json:"paymentProfileId"`
}

// arbProfile references a stored payment method on a subscription. The ARB
// API names the inner field differently from the charge API.
type arbProfile struct {
	CustomerProfileID        string `json:"customerProfileId"`
	CustomerPaymentProfileID string `json:"customerPaymentProfileId"`
}

type wireAddress struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
}

type orderInfo struct {
	Description string `json:"description"`
}

type customerInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type retailInfo struct {
	MarketType int `json:"marketType"`
	DeviceType int `json:"deviceType"`
}

type transactionSetting struct {
	SettingName  string `json:"settingName"`
	SettingValue bool   `json:"settingValue"`
}

type transactionSettings struct {
	Setting transactionSetting `json:"setting"`
}

type paymentInterval struct {
	Length int    `json:"length"`
	Unit   string `json:"unit"`
}

type paymentSchedule struct {
	Interval         paymentInterval `json:"interval"`
	StartDate        string          `json:"startDate"`
	TotalOccurrences int             `json:"totalOccurrences"`
}

// flexMessage tolerates both the `{code, text}` object shape and the bare
// string shape the provider uses interchangeably in error envelopes.
type flexMessage struct {
	Code string
	Text string
}

func (m *flexMessage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.Text = s
		return nil
	}
	var obj struct {
		Code string `json:"code"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	m.Code = obj.Code
	m.Text = obj.Text
	return nil
}

type apiMessages struct {
	ResultCode string        `json:"resultCode"`
	Message    []flexMessage `json:"message"`
}

var zipSanitizer = regexp.MustCompile(`[^A-Za-z0-9\-]`)

// buildAddress converts a platform address to the provider's shape,
// sanitizing the postal code and applying the optional country-code
// conversion used by international processors.
func (c *Client) buildAddress(a models.Address) *wireAddress {
	if a.IsEmpty() {
		return nil
	}

	street := a.Address1
	if a.Address2 != "" {
		street += ", " + a.Address2
	}

	country := a.Country
	if c.config.International && c.config.CountryConverter != nil {
		country = c.config.CountryConverter(country)
	}

	return &wireAddress{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Address:   street,
		City:      a.City,
		State:     a.State,
		Zip:       zipSanitizer.ReplaceAllString(a.Zip, ""),
		Country:   country,
	}
}
