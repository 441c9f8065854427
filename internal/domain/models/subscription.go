package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents the current state of a subscription
type SubscriptionStatus string

const (
	SubStatusActive        SubscriptionStatus = "active"
	SubStatusPaymentFailed SubscriptionStatus = "payment_failed"
	SubStatusSuspended     SubscriptionStatus = "suspended"
	SubStatusCancelled     SubscriptionStatus = "cancelled"
	SubStatusDeactivated   SubscriptionStatus = "deactivated"
)

// BillingInterval is the platform-side billing interval unit.
type BillingInterval string

const (
	IntervalDay   BillingInterval = "day"
	IntervalWeek  BillingInterval = "week"
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

// RecurringProfile describes the billing schedule of an auto-renewing product.
type RecurringProfile struct {
	Interval      BillingInterval
	IntervalCount int
	TrialSeconds  int64 // 0 when the product has no trial
}

// CycleSeconds returns the length of one billing cycle in seconds.
func (p RecurringProfile) CycleSeconds() int64 {
	const day = int64(24 * 60 * 60)
	switch p.Interval {
	case IntervalDay:
		return int64(p.IntervalCount) * day
	case IntervalWeek:
		return int64(p.IntervalCount) * 7 * day
	case IntervalYear:
		return 365 * day
	default:
		return int64(p.IntervalCount) * 30 * day
	}
}

// Subscription is a recurring-billing record tied 1:1 to its originating
// Transaction. SubscriberID is the provider's remote subscription id,
// assigned after the first successful create call; lifecycle handlers must
// not act on a subscription that lacks one.
type Subscription struct {
	ID                 uuid.UUID
	TransactionID      uuid.UUID
	SubscriberID       string
	Status             SubscriptionStatus
	CustomerID         string
	Profile            RecurringProfile
	RecurringAmount    decimal.Decimal
	ExpiryDate         time.Time // next billing boundary
	PaymentTokenID     *uuid.UUID
	CardRedacted       string
	CancellationReason string
	CancelledBy        string
	PausedBy           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasSubscriberID reports whether the subscription has been confirmed by the
// provider.
func (s *Subscription) HasSubscriberID() bool { return s.SubscriberID != "" }

// IsStatus reports whether the subscription currently has the given status.
func (s *Subscription) IsStatus(status SubscriptionStatus) bool { return s.Status == status }
