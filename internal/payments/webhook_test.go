package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-coaching/internal/booking"
	"ms-coaching/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v82"
)

type MockBookingCreator struct {
	mock.Mock
}

func (m *MockBookingCreator) Create(req models.BookingRequest) (*models.Booking, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

const testWebhookSecret = "whsec_test_secret"

func newTestProcessor(t *testing.T, profiles *MockProfileStore, creator *MockBookingCreator) *WebhookProcessor {
	t.Helper()
	return NewWebhookProcessor(newTestService(t, profiles), creator, testWebhookSecret)
}

func intentEvent(t *testing.T, eventType string, intent map[string]interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	assert.NoError(t, err)
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func validIntentMetadata() map[string]string {
	return map[string]string{
		"client_id":    "client1",
		"mentor_id":    "mentor1",
		"session_type": "sparring",
		"date":         time.Now().Add(96 * time.Hour).Format(time.RFC3339),
		"location":     "Riverside boxing gym",
		"price":        "45.00",
	}
}

func TestHandleIntentSucceededCreatesBooking(t *testing.T) {
	creator := &MockBookingCreator{}
	creator.On("Create", mock.MatchedBy(func(req models.BookingRequest) bool {
		return req.ClientID == "client1" &&
			req.MentorID == "mentor1" &&
			req.SessionType == models.SessionSparring &&
			req.Price == 45.00 &&
			req.PaymentIntentID == "pi_123"
	})).Return(&models.Booking{BookingID: "b1", Status: models.BookingPending}, nil)

	p := newTestProcessor(t, &MockProfileStore{}, creator)
	event := intentEvent(t, "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_123",
		"metadata": validIntentMetadata(),
	})

	err := p.handleIntentSucceeded(event)
	assert.NoError(t, err)
	creator.AssertExpectations(t)
}

func TestHandleIntentSucceededSurfacesReconciliation(t *testing.T) {
	creator := &MockBookingCreator{}
	creator.On("Create", mock.Anything).Return(nil, &booking.ReconciliationError{
		PaymentIntentID: "pi_123",
		ClientID:        "client1",
		MentorID:        "mentor1",
		Err:             errors.New("database unreachable"),
	})

	p := newTestProcessor(t, &MockProfileStore{}, creator)
	event := intentEvent(t, "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_123",
		"metadata": validIntentMetadata(),
	})

	err := p.handleIntentSucceeded(event)

	var whErr *WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusInternalServerError, whErr.StatusCode)

	var recErr *booking.ReconciliationError
	assert.ErrorAs(t, err, &recErr)
	assert.Equal(t, "pi_123", recErr.PaymentIntentID)
}

func TestHandleIntentSucceededRejectsMalformedMetadata(t *testing.T) {
	creator := &MockBookingCreator{}
	p := newTestProcessor(t, &MockProfileStore{}, creator)

	meta := validIntentMetadata()
	delete(meta, "mentor_id")
	event := intentEvent(t, "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_123",
		"metadata": meta,
	})

	err := p.handleIntentSucceeded(event)

	var whErr *WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
	creator.AssertNotCalled(t, "Create", mock.Anything)
}

func TestHandleIntentFailedCreatesNothing(t *testing.T) {
	creator := &MockBookingCreator{}
	p := newTestProcessor(t, &MockProfileStore{}, creator)

	event := intentEvent(t, "payment_intent.payment_failed", map[string]interface{}{
		"id":       "pi_123",
		"metadata": validIntentMetadata(),
	})

	assert.NoError(t, p.handleIntentFailed(event))
	creator.AssertNotCalled(t, "Create", mock.Anything)
}

func TestHandleAccountUpdatedFlipsReadiness(t *testing.T) {
	profiles := &MockProfileStore{}
	profiles.On("SetPayoutsReady", "acct_1", true).Return(nil)
	p := newTestProcessor(t, profiles, &MockBookingCreator{})

	event := intentEvent(t, "account.updated", map[string]interface{}{
		"id":              "acct_1",
		"charges_enabled": true,
		"payouts_enabled": true,
	})

	assert.NoError(t, p.handleAccountUpdated(event))
	profiles.AssertExpectations(t)
}

func TestHandleAccountUpdatedNotReadyUntilBothFlags(t *testing.T) {
	profiles := &MockProfileStore{}
	profiles.On("SetPayoutsReady", "acct_1", false).Return(nil)
	p := newTestProcessor(t, profiles, &MockBookingCreator{})

	event := intentEvent(t, "account.updated", map[string]interface{}{
		"id":              "acct_1",
		"charges_enabled": true,
		"payouts_enabled": false,
	})

	assert.NoError(t, p.handleAccountUpdated(event))
	profiles.AssertExpectations(t)
}

func signWebhookPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestHandleWebhookRejectsMissingSecret(t *testing.T) {
	p := NewWebhookProcessor(newTestService(t, &MockProfileStore{}), &MockBookingCreator{}, "")
	r := httptest.NewRequest("POST", "/api/v1/payments/webhook", bytes.NewReader(nil))

	err := p.HandleWebhook(r)

	var whErr *WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, "configuration", whErr.Category)
	assert.Equal(t, http.StatusInternalServerError, whErr.StatusCode)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	p := newTestProcessor(t, &MockProfileStore{}, &MockBookingCreator{})
	r := httptest.NewRequest("POST", "/api/v1/payments/webhook", bytes.NewReader([]byte(`{}`)))
	r.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	err := p.HandleWebhook(r)

	var whErr *WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, "validation", whErr.Category)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
}

func TestHandleWebhookVerifiedEventDispatches(t *testing.T) {
	creator := &MockBookingCreator{}
	creator.On("Create", mock.Anything).Return(&models.Booking{BookingID: "b1"}, nil)
	p := newTestProcessor(t, &MockProfileStore{}, creator)

	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_1",
		"type": "payment_intent.succeeded",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "pi_123",
				"metadata": validIntentMetadata(),
			},
		},
	})
	assert.NoError(t, err)

	r := httptest.NewRequest("POST", "/api/v1/payments/webhook", bytes.NewReader(payload))
	r.Header.Set("Stripe-Signature", signWebhookPayload(payload, testWebhookSecret))

	assert.NoError(t, p.HandleWebhook(r))
	creator.AssertExpectations(t)
}
