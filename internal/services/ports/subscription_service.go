package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
)

// CancelRequest identifies a subscription to cancel and who asked for it.
type CancelRequest struct {
	SubscriptionID uuid.UUID
	Reason         string
	Actor          string
}

// PauseRequest identifies a subscription to pause.
type PauseRequest struct {
	SubscriptionID uuid.UUID
	Actor          string
}

// ResumeRequest identifies a paused subscription to resume.
type ResumeRequest struct {
	SubscriptionID uuid.UUID
}

// UpdatePaymentMethodRequest swaps the payment source on a subscription.
type UpdatePaymentMethodRequest struct {
	SubscriptionID uuid.UUID
	Source         SourceInput
	BillTo         *models.Address
}

// SubscriptionService drives the subscription lifecycle.
type SubscriptionService interface {
	Cancel(ctx context.Context, req *CancelRequest) error
	Pause(ctx context.Context, req *PauseRequest) error
	Resume(ctx context.Context, req *ResumeRequest) (*PurchaseResult, error)
	UpdatePaymentMethod(ctx context.Context, req *UpdatePaymentMethodRequest) error
}
