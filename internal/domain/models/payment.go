package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentSource is the payment method presented with a purchase or
// tokenization request. Exactly one concrete type is used per request;
// payload builders switch exhaustively over the variants.
type PaymentSource interface {
	paymentSource()
}

// OpaqueToken is a one-time-use blob produced by browser-side tokenization
// (Accept.js). Raw card data never reaches this service when it is used.
type OpaqueToken struct {
	DataValue string
}

func (OpaqueToken) paymentSource() {}

// Card is raw card data collected server-side.
type Card struct {
	Number     string
	ExpMonth   string // MM
	ExpYear    string // YY
	CVC        string
	HolderName string
}

func (Card) paymentSource() {}

// RedactedNumber returns the last four digits of the card number, or empty
// when the number is too short to redact.
func (c Card) RedactedNumber() string {
	if len(c.Number) < 4 {
		return ""
	}
	return c.Number[len(c.Number)-4:]
}

// BankAccount is an eCheck source for tokenization.
type BankAccount struct {
	AccountNumber string
	RoutingNumber string
	HolderName    string
	Company       bool
}

func (BankAccount) paymentSource() {}

// RedactedNumber returns the last four digits of the account number.
func (b BankAccount) RedactedNumber() string {
	if len(b.AccountNumber) < 4 {
		return ""
	}
	return b.AccountNumber[len(b.AccountNumber)-4:]
}

// StoredToken references a previously tokenized payment method: the
// provider's customer profile plus one of its payment profiles.
type StoredToken struct {
	CustomerProfileID string
	PaymentProfileID  string
	Redacted          string
}

func (StoredToken) paymentSource() {}

// TokenAccountType tags a stored payment token as card or bank sourced.
type TokenAccountType string

const (
	TokenAccountCard TokenAccountType = "card"
	TokenAccountBank TokenAccountType = "bank"
)

// PaymentToken is the local record of a provider payment profile. Immutable
// once created apart from the primary flag.
type PaymentToken struct {
	ID               uuid.UUID
	CustomerID       string
	Mode             PurchaseMode
	PaymentProfileID string
	Redacted         string
	ExpMonth         string
	ExpYear          string
	AccountType      TokenAccountType
	Label            string
	Primary          bool
	CreatedAt        time.Time
}

// CustomerProfile maps a platform customer to the provider's customer profile
// id for one environment. One mapping per (customer, mode).
type CustomerProfile struct {
	CustomerID string
	Mode       PurchaseMode
	ProfileID  string
	CreatedAt  time.Time
}
