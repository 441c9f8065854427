package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/internal/domain/ports"
	sports "github.com/commercekit/authnet-gateway/internal/services/ports"
	perrors "github.com/commercekit/authnet-gateway/pkg/errors"
)

// MockDBPort mocks the database port
type MockDBPort struct {
	mock.Mock
}

func (m *MockDBPort) GetDB() *pgxpool.Pool { return nil }

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx, nil)
}

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

// MockRecurringGateway mocks the ARB gateway
type MockRecurringGateway struct {
	mock.Mock
}

func (m *MockRecurringGateway) CreateSubscription(ctx context.Context, creds ports.Credentials, req *ports.SubscriptionRequest) (string, error) {
	args := m.Called(ctx, creds, req)
	return args.String(0), args.Error(1)
}

func (m *MockRecurringGateway) UpdateSubscriptionPayment(ctx context.Context, creds ports.Credentials, subscriberID string, source models.PaymentSource) error {
	args := m.Called(ctx, creds, subscriberID, source)
	return args.Error(0)
}

func (m *MockRecurringGateway) CancelSubscription(ctx context.Context, creds ports.Credentials, subscriberID string) error {
	args := m.Called(ctx, creds, subscriberID)
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

// MockTokenizationService mocks the tokenization service
type MockTokenizationService struct {
	mock.Mock
}

func (m *MockTokenizationService) Tokenize(ctx context.Context, req *sports.TokenizeRequest) (*models.PaymentToken, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentToken), args.Error(1)
}

func (m *MockTokenizationService) ResolveSource(ctx context.Context, input sports.SourceInput, customer models.Customer, billTo *models.Address, creds ports.Credentials) (*sports.ResolvedSource, error) {
	args := m.Called(ctx, input, customer, billTo, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sports.ResolvedSource), args.Error(1)
}

// MockPaymentService mocks the payment service
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Purchase(ctx context.Context, req *sports.PurchaseRequest) (*sports.PurchaseResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sports.PurchaseResult), args.Error(1)
}

func (m *MockPaymentService) Refund(ctx context.Context, req *sports.RefundRequest) (*models.Refund, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Refund), args.Error(1)
}

// MockRenewalRecorder mocks the renewal recorder
type MockRenewalRecorder struct {
	mock.Mock
}

func (m *MockRenewalRecorder) AddRenewalPayment(ctx context.Context, sub *models.Subscription, methodID string, status models.TransactionStatus, amount decimal.Decimal) error {
	args := m.Called(ctx, sub, methodID, status, amount)
	return args.Error(0)
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

type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...ports.Field) {}
func (noopLogger) Info(msg string, fields ...ports.Field)  {}
func (noopLogger) Warn(msg string, fields ...ports.Field)  {}
func (noopLogger) Error(msg string, fields ...ports.Field) {}

type serviceFixture struct {
	db       *MockDBPort
	subRepo  *MockSubscriptionRepository
	txRepo   *MockTransactionRepository
	settings *MockSettingsRepository
	arb      *MockRecurringGateway
	charges  *MockChargeGateway
	resolver *stubResolver
	locker   *MockLocker
	tokens   *MockTokenizationService
	payments *MockPaymentService
	renewals *MockRenewalRecorder
	service  *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		db:       new(MockDBPort),
		subRepo:  new(MockSubscriptionRepository),
		txRepo:   new(MockTransactionRepository),
		settings: new(MockSettingsRepository),
		arb:      new(MockRecurringGateway),
		charges:  new(MockChargeGateway),
		resolver: &stubResolver{},
		locker:   new(MockLocker),
		tokens:   new(MockTokenizationService),
		payments: new(MockPaymentService),
		renewals: new(MockRenewalRecorder),
	}
	f.service = NewService(f.db, f.subRepo, f.txRepo, f.settings, f.arb, f.charges, f.resolver, f.locker, f.tokens, f.payments, f.renewals, noopLogger{})
	return f
}

func confirmedSubscription() *models.Subscription {
	return &models.Subscription{
		ID:              uuid.New(),
		TransactionID:   uuid.New(),
		SubscriberID:    "8800123",
		Status:          models.SubStatusActive,
		CustomerID:      "cust-1",
		Profile:         models.RecurringProfile{Interval: models.IntervalMonth, IntervalCount: 1},
		RecurringAmount: decimal.RequireFromString("30.00"),
		ExpiryDate:      time.Now().Add(10 * 24 * time.Hour),
	}
}

func (f *serviceFixture) expectLoadConfirmed(ctx context.Context, sub *models.Subscription, mode models.PurchaseMode) {
	f.subRepo.On("GetByID", ctx, nil, sub.ID).Return(sub, nil)
	f.txRepo.On("GetByID", ctx, nil, sub.TransactionID).Return(&models.Transaction{
		ID:   sub.TransactionID,
		Mode: mode,
	}, nil)
	f.settings.On("Load", ctx).Return(&models.GatewaySettings{}, nil)
}

func TestReactivationFee(t *testing.T) {
	monthly := int64(30 * 24 * 60 * 60)
	amount := decimal.RequireFromString("30.00")

	tests := []struct {
		name            string
		daysSinceExpiry int
		want            string
	}{
		{name: "expired today owes the full cycle", daysSinceExpiry: 0, want: "30.00"},
		{name: "half the cycle elapsed", daysSinceExpiry: 15, want: "15.00"},
		{name: "one day left", daysSinceExpiry: 29, want: "1.00"},
		{name: "full cycle elapsed owes nothing", daysSinceExpiry: 30, want: "0.00"},
		{name: "beyond a full cycle owes nothing", daysSinceExpiry: 45, want: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := ReactivationFee(amount, monthly, tt.daysSinceExpiry)
			assert.Equal(t, tt.want, fee.StringFixed(2))
			assert.False(t, fee.IsNegative())
		})
	}
}

func TestReactivationFee_DegenerateInputs(t *testing.T) {
	amount := decimal.RequireFromString("30.00")

	assert.True(t, ReactivationFee(amount, 0, 5).IsZero())
	assert.True(t, ReactivationFee(amount, 3600, 0).IsZero()) // sub-day cycle
	assert.True(t, ReactivationFee(amount, 30*86400, -1).IsZero())
}

func TestReactivationFee_Rounding(t *testing.T) {
	fee := ReactivationFee(decimal.RequireFromString("29.99"), 30*86400, 13)
	// 29.99 / 30 * 17 = 16.994… rounds to 16.99
	assert.Equal(t, "16.99", fee.StringFixed(2))
}

func TestService_Cancel_Success(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()

	f.expectLoadConfirmed(ctx, sub, models.ModeLive)
	f.locker.On("Acquire", ctx, "authnet-cancel-subscription-"+sub.TransactionID.String(), 2*time.Second).Return(nil)
	f.arb.On("CancelSubscription", ctx, mock.Anything, "8800123").Return(nil)
	f.subRepo.On("Update", ctx, nil, sub).Return(nil)

	err := f.service.Cancel(ctx, &sports.CancelRequest{
		SubscriptionID: sub.ID,
		Reason:         "too expensive",
		Actor:          "customer",
	})

	require.NoError(t, err)
	assert.Equal(t, models.SubStatusCancelled, sub.Status)
	assert.Equal(t, "too expensive", sub.CancellationReason)
	assert.Equal(t, "customer", sub.CancelledBy)
	assert.Equal(t, 1, f.locker.released)
	assert.Equal(t, models.ModeLive, f.resolver.lastRecorded)
}

func TestService_Cancel_ProviderErrorLeavesStatus(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()

	f.expectLoadConfirmed(ctx, sub, models.ModeLive)
	f.locker.On("Acquire", ctx, mock.Anything, mock.Anything).Return(nil)
	f.arb.On("CancelSubscription", ctx, mock.Anything, "8800123").Return(errors.New("provider unavailable"))

	err := f.service.Cancel(ctx, &sports.CancelRequest{SubscriptionID: sub.ID})

	require.Error(t, err)
	assert.Equal(t, models.SubStatusActive, sub.Status)
	f.subRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	// The lock is still released on the error path.
	assert.Equal(t, 1, f.locker.released)
}

func TestService_Cancel_LockHeldElsewhere(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()

	f.expectLoadConfirmed(ctx, sub, models.ModeLive)
	f.locker.On("Acquire", ctx, mock.Anything, mock.Anything).Return(errors.New("lock is already held"))

	err := f.service.Cancel(ctx, &sports.CancelRequest{SubscriptionID: sub.ID})

	require.Error(t, err)
	f.arb.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Cancel_UnconfirmedSubscription(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()
	sub.SubscriberID = ""

	f.subRepo.On("GetByID", ctx, nil, sub.ID).Return(sub, nil)

	err := f.service.Cancel(ctx, &sports.CancelRequest{SubscriptionID: sub.ID})

	var valErr *perrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	f.arb.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Pause_Success(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()

	f.expectLoadConfirmed(ctx, sub, models.ModeSandbox)
	f.arb.On("CancelSubscription", ctx, mock.Anything, "8800123").Return(nil)
	f.subRepo.On("Update", ctx, nil, sub).Return(nil)

	err := f.service.Pause(ctx, &sports.PauseRequest{SubscriptionID: sub.ID, Actor: "customer"})

	require.NoError(t, err)
	// A pause is not a cancellation: status and cancellation fields stay.
	assert.Equal(t, models.SubStatusActive, sub.Status)
	assert.Empty(t, sub.CancelledBy)
	assert.Equal(t, "customer", sub.PausedBy)
	assert.Equal(t, models.ModeSandbox, f.resolver.lastRecorded)
}

func TestService_Resume_Success(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()
	tokenID := uuid.New()
	sub.PaymentTokenID = &tokenID
	sub.PausedBy = "customer"

	f.subRepo.On("GetByID", ctx, nil, sub.ID).Return(sub, nil)
	f.txRepo.On("GetByID", ctx, nil, sub.TransactionID).Return(&models.Transaction{
		ID:          sub.TransactionID,
		Description: "Pro Plan",
		Mode:        models.ModeLive,
	}, nil)

	var purchaseReq *sports.PurchaseRequest
	f.payments.On("Purchase", ctx, mock.AnythingOfType("*ports.PurchaseRequest")).
		Run(func(args mock.Arguments) { purchaseReq = args.Get(1).(*sports.PurchaseRequest) }).
		Return(&sports.PurchaseResult{
			Transaction:  &models.Transaction{ID: uuid.New()},
			Subscription: &models.Subscription{ID: uuid.New(), SubscriberID: "8800999"},
		}, nil)
	f.subRepo.On("Update", ctx, nil, sub).Return(nil)

	result, err := f.service.Resume(ctx, &sports.ResumeRequest{SubscriptionID: sub.ID})

	require.NoError(t, err)
	assert.Equal(t, "8800999", result.Subscription.SubscriberID)
	assert.Empty(t, sub.PausedBy)

	require.NotNil(t, purchaseReq)
	assert.Equal(t, tokenID, *purchaseReq.Source.PaymentTokenID)
	require.NotNil(t, purchaseReq.ParentTransactionID)
	assert.Equal(t, sub.TransactionID, *purchaseReq.ParentTransactionID)
	require.NotNil(t, purchaseReq.StartDateOverride)
	// The paused schedule was still paid up; the replay starts at the old
	// expiry, not today.
	assert.WithinDuration(t, sub.ExpiryDate, *purchaseReq.StartDateOverride, time.Second)
	require.Len(t, purchaseReq.Cart.Items, 1)
	assert.Equal(t, "Pro Plan", purchaseReq.Cart.Items[0].Name)
	require.NotNil(t, purchaseReq.Cart.Items[0].Profile)
}

func TestService_Resume_RequiresStoredToken(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()

	f.subRepo.On("GetByID", ctx, nil, sub.ID).Return(sub, nil)

	_, err := f.service.Resume(ctx, &sports.ResumeRequest{SubscriptionID: sub.ID})

	var valErr *perrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	f.payments.AssertNotCalled(t, "Purchase", mock.Anything, mock.Anything)
}

func TestService_UpdatePaymentMethod_Active(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()
	tokenID := uuid.New()

	f.expectLoadConfirmed(ctx, sub, models.ModeLive)
	f.tokens.On("ResolveSource", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&sports.ResolvedSource{
			Source:   models.StoredToken{CustomerProfileID: "cp-1", PaymentProfileID: "pp-1"},
			TokenID:  &tokenID,
			Redacted: "4242",
		}, nil)
	f.arb.On("UpdateSubscriptionPayment", ctx, mock.Anything, "8800123", mock.Anything).Return(nil)
	f.subRepo.On("Update", ctx, nil, sub).Return(nil)

	err := f.service.UpdatePaymentMethod(ctx, &sports.UpdatePaymentMethodRequest{
		SubscriptionID: sub.ID,
		Source:         sports.SourceInput{PaymentTokenID: &tokenID},
	})

	require.NoError(t, err)
	assert.Equal(t, tokenID, *sub.PaymentTokenID)
	assert.Equal(t, "4242", sub.CardRedacted)
	f.charges.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_UpdatePaymentMethod_ReactivatesWithFee(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()
	sub.Status = models.SubStatusPaymentFailed
	sub.ExpiryDate = time.Now().Add(-15 * 24 * time.Hour)

	f.expectLoadConfirmed(ctx, sub, models.ModeLive)
	f.tokens.On("ResolveSource", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&sports.ResolvedSource{Source: models.Card{Number: "4242424242424242"}}, nil)

	var feeCharged decimal.Decimal
	f.charges.On("Charge", ctx, mock.Anything, mock.AnythingOfType("*ports.ChargeRequest")).
		Run(func(args mock.Arguments) { feeCharged = args.Get(2).(*ports.ChargeRequest).Amount }).
		Return(&ports.ChargeResult{TransID: "60555", ResponseCode: 1, Approved: true}, nil)
	f.renewals.On("AddRenewalPayment", ctx, sub, "60555", models.TxnStatusPaid, mock.Anything).Return(nil)
	f.arb.On("UpdateSubscriptionPayment", ctx, mock.Anything, "8800123", mock.Anything).Return(nil)
	f.subRepo.On("Update", ctx, nil, sub).Return(nil)

	err := f.service.UpdatePaymentMethod(ctx, &sports.UpdatePaymentMethodRequest{
		SubscriptionID: sub.ID,
		Source:         sports.SourceInput{Card: &models.Card{Number: "4242424242424242"}},
	})

	require.NoError(t, err)
	assert.Equal(t, models.SubStatusActive, sub.Status)
	// 30.00 over a 30-day cycle, 15 days unbilled.
	assert.Equal(t, "15.00", feeCharged.StringFixed(2))
}

func TestService_UpdatePaymentMethod_DeclinedFeeAborts(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	sub := confirmedSubscription()
	sub.Status = models.SubStatusPaymentFailed
	sub.ExpiryDate = time.Now().Add(-5 * 24 * time.Hour)

	f.expectLoadConfirmed(ctx, sub, models.ModeLive)
	f.tokens.On("ResolveSource", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&sports.ResolvedSource{Source: models.Card{Number: "4242424242424242"}}, nil)
	f.charges.On("Charge", ctx, mock.Anything, mock.Anything).
		Return(&ports.ChargeResult{ResponseCode: 2, Approved: false}, nil)

	err := f.service.UpdatePaymentMethod(ctx, &sports.UpdatePaymentMethodRequest{
		SubscriptionID: sub.ID,
		Source:         sports.SourceInput{Card: &models.Card{Number: "4242424242424242"}},
	})

	var payErr *perrors.PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, models.SubStatusPaymentFailed, sub.Status)
	f.arb.AssertNotCalled(t, "UpdateSubscriptionPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.subRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}
