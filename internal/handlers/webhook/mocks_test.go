package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
)

// MockSubscriptionRepository mocks the subscription repository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetBySubscriberID(ctx context.Context, tx ports.DBTX, subscriberID string) (*models.Subscription, error) {
	args := m.Called(ctx, tx, subscriberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByTransactionID(ctx context.Context, tx ports.DBTX, transactionID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, tx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

// MockTransactionRepository mocks the transaction repository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *models.Transaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByMethodID(ctx context.Context, tx ports.DBTX, methodID string) (*models.Transaction, error) {
	args := m.Called(ctx, tx, methodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status models.TransactionStatus) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateMethodID(ctx context.Context, tx ports.DBTX, id uuid.UUID, methodID string) error {
	args := m.Called(ctx, tx, id, methodID)
	return args.Error(0)
}

// MockSettingsRepository mocks the settings repository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Load(ctx context.Context) (*models.GatewaySettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GatewaySettings), args.Error(1)
}

func (m *MockSettingsRepository) SaveWebhookID(ctx context.Context, mode models.PurchaseMode, webhookID string) error {
	args := m.Called(ctx, mode, webhookID)
	return args.Error(0)
}

// MockChargeGateway mocks the one-time charge gateway
type MockChargeGateway struct {
	mock.Mock
}

func (m *MockChargeGateway) Charge(ctx context.Context, creds ports.Credentials, req *ports.ChargeRequest) (*ports.ChargeResult, error) {
	args := m.Called(ctx, creds, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ChargeResult), args.Error(1)
}

func (m *MockChargeGateway) Refund(ctx context.Context, creds ports.Credentials, req *ports.RefundRequest) (*ports.ChargeResult, error) {
	args := m.Called(ctx, creds, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ChargeResult), args.Error(1)
}

func (m *MockChargeGateway) GetTransactionDetails(ctx context.Context, creds ports.Credentials, transID string) (*ports.TransactionDetails, error) {
	args := m.Called(ctx, creds, transID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.TransactionDetails), args.Error(1)
}

// MockRenewalRecorder mocks the renewal recorder
type MockRenewalRecorder struct {
	mock.Mock
}

func (m *MockRenewalRecorder) AddRenewalPayment(ctx context.Context, sub *models.Subscription, methodID string, status models.TransactionStatus, amount decimal.Decimal) error {
	args := m.Called(ctx, sub, methodID, status, amount)
	return args.Error(0)
}

// MockLocker records lock activity so tests can assert the lock discipline.
type MockLocker struct {
	mock.Mock
	acquiredNames []string
	released      int
}

func (m *MockLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	args := m.Called(ctx, name, ttl)
	if args.Error(0) != nil {
		return nil, args.Error(0)
	}
	m.acquiredNames = append(m.acquiredNames, name)
	return func() { m.released++ }, nil
}

type stubResolver struct {
	lastRecorded models.PurchaseMode
}

func (r *stubResolver) Resolve(settings *models.GatewaySettings, recorded models.PurchaseMode) ports.Credentials {
	r.lastRecorded = recorded
	mode := recorded
	if mode == "" {
		mode = settings.CurrentMode()
	}
	return ports.Credentials{BaseURL: "https://example.test", LoginID: "login", TransactionKey: "key", Mode: mode}
}
