package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"ms-coaching/internal/auth"
	"ms-coaching/internal/booking"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"
)

// BookingClient creates bookings over the booking service's internal API.
// The payment service runs standalone and reaches the booking core this
// way, authenticating with an m2m token.
type BookingClient struct {
	client *http.Client
	cache  *auth.RedisTokenCache
	logger *logger.Logger
}

func NewBookingClient(client *http.Client, cache *auth.RedisTokenCache, log *logger.Logger) *BookingClient {
	return &BookingClient{
		client: client,
		cache:  cache,
		logger: log,
	}
}

func bookingServiceURL() string {
	url := os.Getenv("BOOKING_SERVICE_URL")
	return strings.TrimRight(url, "/")
}

// Create posts the booking to the booking service. A failure after a
// captured payment is surfaced as a ReconciliationError so the caller
// never retries the charge.
func (bc *BookingClient) Create(req models.BookingRequest) (*models.Booking, error) {
	token, err := auth.GetM2MToken(context.Background(), bc.client, bc.cache)
	if err != nil {
		bc.logger.Error("BOOKING_CLIENT", fmt.Sprintf("Failed to get m2m token: %v", err))
		return nil, bc.wrapCreateFailure(req, fmt.Errorf("failed to get m2m token: %w", err))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode booking request: %w", err)
	}

	url := fmt.Sprintf("%s/internal/v1/bookings", bookingServiceURL())
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create booking request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := bc.client.Do(httpReq)
	if err != nil {
		bc.logger.Error("BOOKING_CLIENT", fmt.Sprintf("Booking service error: %v", err))
		return nil, bc.wrapCreateFailure(req, fmt.Errorf("booking service error: %w", err))
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			bc.logger.Error("BOOKING_CLIENT", fmt.Sprintf("Failed to close booking response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		bc.logger.Error("BOOKING_CLIENT", fmt.Sprintf("Booking service returned status: %d", resp.StatusCode))
		return nil, bc.wrapCreateFailure(req, fmt.Errorf("booking service returned status: %d", resp.StatusCode))
	}

	var envelope struct {
		Data models.Booking `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		bc.logger.Error("BOOKING_CLIENT", fmt.Sprintf("Failed to decode booking response: %v", err))
		return nil, fmt.Errorf("failed to decode booking response: %w", err)
	}

	bc.logger.LogBooking("CREATE_REMOTE", envelope.Data.BookingID, "booking created via booking service")
	return &envelope.Data, nil
}

func (bc *BookingClient) wrapCreateFailure(req models.BookingRequest, err error) error {
	if req.PaymentIntentID == "" {
		return err
	}
	return &booking.ReconciliationError{
		PaymentIntentID: req.PaymentIntentID,
		ClientID:        req.ClientID,
		MentorID:        req.MentorID,
		Err:             err,
	}
}
