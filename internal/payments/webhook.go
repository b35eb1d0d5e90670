package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ms-coaching/internal/booking"
	"ms-coaching/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookError carries both a client-safe message and the detailed
// internal one, so handlers can respond without leaking gateway state.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

// BookingCreator is the slice of the booking lifecycle the webhook
// needs: create the booking once capture is confirmed.
type BookingCreator interface {
	Create(req models.BookingRequest) (*models.Booking, error)
}

// WebhookProcessor turns verified gateway events into booking and
// payee state changes.
type WebhookProcessor struct {
	svc           *Service
	bookings      BookingCreator
	webhookSecret string
}

func NewWebhookProcessor(svc *Service, bookings BookingCreator, webhookSecret string) *WebhookProcessor {
	return &WebhookProcessor{
		svc:           svc,
		bookings:      bookings,
		webhookSecret: webhookSecret,
	}
}

// HandleWebhook verifies the event signature and dispatches on event
// type. A ReconciliationError from booking creation is deliberately NOT
// mapped to a retryable status: the payment is captured and the failure
// needs operator attention, not a replay.
func (p *WebhookProcessor) HandleWebhook(r *http.Request) error {
	if p.webhookSecret == "" {
		p.svc.log.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		p.svc.log.Error("WEBHOOK", fmt.Sprintf("Failed to read webhook payload: %v", err))
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), p.webhookSecret, opts)
	if err != nil {
		p.svc.log.Error("WEBHOOK", fmt.Sprintf("Webhook signature verification failed: %v", err))
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	p.svc.log.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "payment_intent.succeeded":
		return p.handleIntentSucceeded(event)
	case "payment_intent.payment_failed":
		return p.handleIntentFailed(event)
	case "account.updated":
		return p.handleAccountUpdated(event)
	default:
		p.svc.log.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
	}

	return nil
}

func (p *WebhookProcessor) handleIntentSucceeded(event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return p.eventDataError("payment intent", err)
	}

	req, err := bookingRequestFromMetadata(intent.Metadata)
	if err != nil {
		p.svc.log.Error("WEBHOOK", fmt.Sprintf("Payment intent %s has malformed booking metadata: %v", intent.ID, err))
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid payment intent data",
			InternalError: fmt.Sprintf("Payment intent %s has malformed booking metadata: %v", intent.ID, err),
			OriginalErr:   err,
		}
	}

	req.PaymentIntentID = intent.ID
	bk, err := p.bookings.Create(req)
	if err != nil {
		var recErr *booking.ReconciliationError
		if errors.As(err, &recErr) {
			p.svc.log.LogSecurity("RECONCILE", recErr.Error())
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Payment captured but booking creation failed, support has been notified",
				InternalError: recErr.Error(),
				OriginalErr:   recErr,
			}
		}
		p.svc.log.Error("WEBHOOK", fmt.Sprintf("Failed to create booking for intent %s: %v", intent.ID, err))
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Failed to process payment",
			InternalError: fmt.Sprintf("Failed to create booking for intent %s: %v", intent.ID, err),
			OriginalErr:   err,
		}
	}

	p.svc.log.LogPayment("WEBHOOK", intent.ID, "booking "+bk.BookingID+" created after capture")
	return nil
}

func (p *WebhookProcessor) handleIntentFailed(event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return p.eventDataError("payment intent", err)
	}

	// No booking exists yet for a failed capture, nothing to roll back.
	p.svc.log.LogPayment("WEBHOOK", intent.ID, "payment failed, no booking created")
	return nil
}

func (p *WebhookProcessor) handleAccountUpdated(event stripe.Event) error {
	var account stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
		return p.eventDataError("account", err)
	}

	ready := account.ChargesEnabled && account.PayoutsEnabled
	if err := p.svc.profiles.SetPayoutsReady(account.ID, ready); err != nil {
		p.svc.log.Error("WEBHOOK", fmt.Sprintf("Failed to update payee readiness for account %s: %v", account.ID, err))
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Failed to update payee account",
			InternalError: fmt.Sprintf("Failed to update payee readiness for account %s: %v", account.ID, err),
			OriginalErr:   err,
		}
	}

	p.svc.log.LogPayment("WEBHOOK", account.ID, fmt.Sprintf("payee readiness set to %t", ready))
	return nil
}

func (p *WebhookProcessor) eventDataError(kind string, err error) error {
	p.svc.log.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal %s: %v", kind, err))
	return &WebhookError{
		Category:      "processing",
		StatusCode:    http.StatusBadRequest,
		PublicError:   "Invalid event data",
		InternalError: fmt.Sprintf("Failed to unmarshal %s: %v", kind, err),
		OriginalErr:   err,
	}
}

// BookingRequestFromIntent rebuilds the booking parameters from a captured
// intent, including the payment reference.
func BookingRequestFromIntent(intent *stripe.PaymentIntent) (models.BookingRequest, error) {
	req, err := bookingRequestFromMetadata(intent.Metadata)
	if err != nil {
		return req, err
	}
	req.PaymentIntentID = intent.ID
	return req, nil
}

// bookingRequestFromMetadata rebuilds the booking parameters stashed on
// the intent at creation time.
func bookingRequestFromMetadata(meta map[string]string) (models.BookingRequest, error) {
	var req models.BookingRequest

	req.ClientID = meta["client_id"]
	req.MentorID = meta["mentor_id"]
	if req.ClientID == "" || req.MentorID == "" {
		return req, errors.New("metadata missing client_id or mentor_id")
	}

	req.SessionType = models.SessionType(meta["session_type"])
	req.Location = meta["location"]

	date, err := time.Parse(time.RFC3339, meta["date"])
	if err != nil {
		return req, fmt.Errorf("metadata has invalid date: %w", err)
	}
	req.Date = date

	price, err := strconv.ParseFloat(meta["price"], 64)
	if err != nil {
		return req, fmt.Errorf("metadata has invalid price: %w", err)
	}
	req.Price = price

	return req, nil
}
