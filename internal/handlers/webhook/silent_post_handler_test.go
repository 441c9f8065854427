package webhook

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/commercekit/authnet-gateway/internal/domain/models"
	"github.com/commercekit/authnet-gateway/pkg/crypto"
)

func silentPostSettings() *models.GatewaySettings {
	return &models.GatewaySettings{
		MD5Hash:        "live-md5-secret",
		SandboxMD5Hash: "sandbox-md5-secret",
	}
}

func postSilent(t *testing.T, h *SilentPostHandler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/authnet/silent-post", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleSilentPost(rec, req)
	return rec
}

func silentForm(secret, transID, amount, subscriberID, responseCode string) url.Values {
	return url.Values{
		"x_trans_id":        {transID},
		"x_MD5_Hash":        {crypto.ComputeSilentPostHash(secret, transID, amount)},
		"x_amount":          {amount},
		"x_subscription_id": {subscriberID},
		"x_response_code":   {responseCode},
	}
}

func TestSilentPost_RenewalRecorded(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	settingsRepo := new(MockSettingsRepository)
	renewals := new(MockRenewalRecorder)
	h := NewSilentPostHandler(subRepo, settingsRepo, renewals, zap.NewNop())

	sub := &models.Subscription{ID: uuid.New(), TransactionID: uuid.New(), SubscriberID: "8800123", Status: models.SubStatusActive}
	settingsRepo.On("Load", mock.Anything).Return(silentPostSettings(), nil)
	subRepo.On("GetBySubscriberID", mock.Anything, nil, "8800123").Return(sub, nil)
	renewals.On("AddRenewalPayment", mock.Anything, sub, "60123", models.TxnStatusPaid, mock.Anything).Return(nil)

	rec := postSilent(t, h, silentForm("live-md5-secret", "60123", "29.99", "8800123", "1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	renewals.AssertExpectations(t)
	// Already active, so no status write.
	subRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestSilentPost_RenewalReactivates(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	settingsRepo := new(MockSettingsRepository)
	renewals := new(MockRenewalRecorder)
	h := NewSilentPostHandler(subRepo, settingsRepo, renewals, zap.NewNop())

	sub := &models.Subscription{ID: uuid.New(), SubscriberID: "8800123", Status: models.SubStatusPaymentFailed}
	settingsRepo.On("Load", mock.Anything).Return(silentPostSettings(), nil)
	subRepo.On("GetBySubscriberID", mock.Anything, nil, "8800123").Return(sub, nil)
	renewals.On("AddRenewalPayment", mock.Anything, sub, "60124", models.TxnStatusPaid, mock.Anything).Return(nil)
	subRepo.On("Update", mock.Anything, nil, sub).Return(nil)

	rec := postSilent(t, h, silentForm("live-md5-secret", "60124", "29.99", "8800123", "1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SubStatusActive, sub.Status)
}

func TestSilentPost_SandboxSecretVerifies(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	settingsRepo := new(MockSettingsRepository)
	renewals := new(MockRenewalRecorder)
	h := NewSilentPostHandler(subRepo, settingsRepo, renewals, zap.NewNop())

	sub := &models.Subscription{ID: uuid.New(), SubscriberID: "8800123", Status: models.SubStatusActive}
	settingsRepo.On("Load", mock.Anything).Return(silentPostSettings(), nil)
	subRepo.On("GetBySubscriberID", mock.Anything, nil, "8800123").Return(sub, nil)
	renewals.On("AddRenewalPayment", mock.Anything, sub, "60125", models.TxnStatusPaid, mock.Anything).Return(nil)

	rec := postSilent(t, h, silentForm("sandbox-md5-secret", "60125", "9.99", "8800123", "1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	renewals.AssertExpectations(t)
}

func TestSilentPost_TamperedHashDropped(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	settingsRepo := new(MockSettingsRepository)
	renewals := new(MockRenewalRecorder)
	h := NewSilentPostHandler(subRepo, settingsRepo, renewals, zap.NewNop())

	settingsRepo.On("Load", mock.Anything).Return(silentPostSettings(), nil)

	form := silentForm("live-md5-secret", "60123", "29.99", "8800123", "1")
	form.Set("x_amount", "0.01")

	rec := postSilent(t, h, form)

	// The legacy channel never rejects; it answers 200 and does nothing.
	assert.Equal(t, http.StatusOK, rec.Code)
	subRepo.AssertNotCalled(t, "GetBySubscriberID", mock.Anything, mock.Anything, mock.Anything)
	renewals.AssertNotCalled(t, "AddRenewalPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSilentPost_MissingFieldsDropped(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	settingsRepo := new(MockSettingsRepository)
	renewals := new(MockRenewalRecorder)
	h := NewSilentPostHandler(subRepo, settingsRepo, renewals, zap.NewNop())

	rec := postSilent(t, h, url.Values{"x_amount": {"29.99"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	settingsRepo.AssertNotCalled(t, "Load", mock.Anything)
}

func TestSilentPost_FirstFailureMarksPaymentFailed(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	settingsRepo := new(MockSettingsRepository)
	renewals := new(MockRenewalRecorder)
	h := NewSilentPostHandler(subRepo, settingsRepo, renewals, zap.NewNop())

	sub := &models.Subscription{ID: uuid.New(), SubscriberID: "8800123", Status: models.SubStatusActive}
	settingsRepo.On("Load", mock.Anything).Return(silentPostSettings(), nil)
	subRepo.On("GetBySubscriberID", mock.Anything, nil, "8800123").Return(sub, nil)
	subRepo.On("Update", mock.Anything, nil, sub).Return(nil)

	rec := postSilent(t, h, silentForm("live-md5-secret", "60126", "29.99", "8800123", "2"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SubStatusPaymentFailed, sub.Status)
	renewals.AssertNotCalled(t, "AddRenewalPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSilentPost_SecondConsecutiveFailureCancels(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	settingsRepo := new(MockSettingsRepository)
	renewals := new(MockRenewalRecorder)
	h := NewSilentPostHandler(subRepo, settingsRepo, renewals, zap.NewNop())

	sub := &models.Subscription{ID: uuid.New(), SubscriberID: "8800123", Status: models.SubStatusPaymentFailed}
	settingsRepo.On("Load", mock.Anything).Return(silentPostSettings(), nil)
	subRepo.On("GetBySubscriberID", mock.Anything, nil, "8800123").Return(sub, nil)
	subRepo.On("Update", mock.Anything, nil, sub).Return(nil)

	rec := postSilent(t, h, silentForm("live-md5-secret", "60127", "29.99", "8800123", "3"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SubStatusCancelled, sub.Status)
}

func TestSilentPost_NonSubscriptionNotificationIgnored(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	settingsRepo := new(MockSettingsRepository)
	renewals := new(MockRenewalRecorder)
	h := NewSilentPostHandler(subRepo, settingsRepo, renewals, zap.NewNop())

	settingsRepo.On("Load", mock.Anything).Return(silentPostSettings(), nil)

	rec := postSilent(t, h, silentForm("live-md5-secret", "60128", "29.99", "", "1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	subRepo.AssertNotCalled(t, "GetBySubscriberID", mock.Anything, mock.Anything, mock.Anything)
}
