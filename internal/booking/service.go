package booking

import (
	"fmt"
	"time"

	"ms-coaching/internal/fees"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	CreateBooking(booking models.Booking) error
	GetBookingByID(id string) (*models.Booking, error)
	UpdateBookingStatus(id string, from, to models.BookingStatus, updatedAt time.Time) (bool, error)
	GetBookingsByClient(clientID string) ([]models.Booking, error)
	GetBookingsByMentor(mentorID string) ([]models.Booking, error)
	GetPendingBookingsByMentor(mentorID string) ([]models.Booking, error)
}

type EventPublisher interface {
	PublishBookingEvent(event models.BookingEvent) error
}

// Service is the booking lifecycle engine. It owns the transition graph:
//
//	pending   -> confirmed | rejected | cancelled
//	confirmed -> completed | cancelled
//
// rejected, completed and cancelled are terminal. Transitions are applied
// with an optimistic status guard at write time; the loser of a race gets
// ErrStaleTransition and must re-read.
type Service struct {
	DB     DBLayer
	Events EventPublisher
	logger *logger.Logger

	// Now is swapped out in tests.
	Now func() time.Time
}

func NewService(db DBLayer, events EventPublisher, log *logger.Logger) *Service {
	return &Service{
		DB:     db,
		Events: events,
		logger: log,
		Now:    time.Now,
	}
}

// ValidateRequest checks the creation preconditions without touching the
// store. The payment service runs the same checks before opening an intent
// so a card is never charged for a booking that could not be created.
func ValidateRequest(req models.BookingRequest, now time.Time) error {
	if req.ClientID == "" || req.MentorID == "" {
		return ErrNotBookingParty
	}
	if req.ClientID == req.MentorID {
		return ErrSelfBooking
	}
	if !req.Date.After(now) {
		return ErrInvalidDate
	}
	if req.Price <= 0 {
		return ErrInvalidPrice
	}
	switch req.SessionType {
	case models.SessionSparring, models.SessionTournament:
	default:
		return ErrInvalidSessionType
	}
	return nil
}

// Create writes a new pending booking. Callers only invoke this after the
// payment capture is confirmed, so any failure here is surfaced as a
// ReconciliationError whenever a payment reference is attached. That
// includes validation: a delayed webhook can arrive after the session date
// has passed, and the captured charge must not vanish into a generic error.
func (s *Service) Create(req models.BookingRequest) (*models.Booking, error) {
	now := s.Now()
	if err := ValidateRequest(req, now); err != nil {
		return nil, s.wrapCaptured(req, err)
	}

	breakdown, err := fees.Compute(req.Price)
	if err != nil {
		return nil, s.wrapCaptured(req, err)
	}

	b := models.Booking{
		BookingID:       uuid.NewString(),
		ClientID:        req.ClientID,
		MentorID:        req.MentorID,
		SessionType:     req.SessionType,
		Date:            req.Date,
		Location:        req.Location,
		Price:           req.Price,
		AppFee:          breakdown.AppFee,
		PaymentIntentID: req.PaymentIntentID,
		Status:          models.BookingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.DB.CreateBooking(b); err != nil {
		if req.PaymentIntentID != "" {
			return nil, s.wrapCaptured(req, err)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.logger.LogBooking("CREATE", b.BookingID, fmt.Sprintf("client=%s mentor=%s price=%.2f fee=%.2f", b.ClientID, b.MentorID, b.Price, b.AppFee))
	s.publish("booking.created", &b)
	return &b, nil
}

// wrapCaptured attaches the payment handle and booking parameters to a
// creation failure when money has already moved. Without a payment
// reference the error passes through untouched.
func (s *Service) wrapCaptured(req models.BookingRequest, err error) error {
	if req.PaymentIntentID == "" {
		return err
	}
	return &ReconciliationError{
		PaymentIntentID: req.PaymentIntentID,
		ClientID:        req.ClientID,
		MentorID:        req.MentorID,
		Err:             err,
	}
}

// Get returns a booking to one of its parties.
func (s *Service) Get(bookingID, callerID string) (*models.Booking, error) {
	b, err := s.DB.GetBookingByID(bookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if b.ClientID != callerID && b.MentorID != callerID {
		return nil, ErrNotBookingParty
	}
	return b, nil
}

func (s *Service) ListForClient(clientID string) ([]models.Booking, error) {
	return s.DB.GetBookingsByClient(clientID)
}

func (s *Service) ListForMentor(mentorID string) ([]models.Booking, error) {
	return s.DB.GetBookingsByMentor(mentorID)
}

func (s *Service) PendingForMentor(mentorID string) ([]models.Booking, error) {
	return s.DB.GetPendingBookingsByMentor(mentorID)
}

// Accept moves pending -> confirmed. Only the mentor may accept, and the
// current status is re-validated server-side so a concurrent cancel wins
// cleanly instead of being overwritten.
func (s *Service) Accept(bookingID, callerID string) (*models.Booking, error) {
	return s.transition(bookingID, callerID, models.BookingConfirmed, "booking.accepted")
}

// Reject moves pending -> rejected. Mentor only.
func (s *Service) Reject(bookingID, callerID string) (*models.Booking, error) {
	return s.transition(bookingID, callerID, models.BookingRejected, "booking.rejected")
}

func (s *Service) transition(bookingID, callerID string, to models.BookingStatus, eventType string) (*models.Booking, error) {
	b, err := s.DB.GetBookingByID(bookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if b.MentorID != callerID {
		return nil, ErrNotMentor
	}
	if b.Status != models.BookingPending {
		return nil, ErrStaleTransition
	}

	now := s.Now()
	ok, err := s.DB.UpdateBookingStatus(bookingID, models.BookingPending, to, now)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking %s: %w", bookingID, err)
	}
	if !ok {
		return nil, ErrStaleTransition
	}

	b.Status = to
	b.UpdatedAt = now
	s.logger.LogBooking("TRANSITION", bookingID, "pending -> "+string(to))
	s.publish(eventType, b)
	return b, nil
}

// Cancel is valid from pending or confirmed; either party may cancel.
// The refund decision is returned to the caller, never acted on here:
// reversing funds is an out-of-band billing action.
func (s *Service) Cancel(bookingID, callerID string) (*models.CancelResult, error) {
	b, err := s.DB.GetBookingByID(bookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if b.ClientID != callerID && b.MentorID != callerID {
		return nil, ErrNotBookingParty
	}
	if b.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}

	now := s.Now()
	eligible := RefundEligible(b.Date, now)

	ok, err := s.DB.UpdateBookingStatus(bookingID, b.Status, models.BookingCancelled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking %s: %w", bookingID, err)
	}
	if !ok {
		return nil, ErrStaleTransition
	}

	b.Status = models.BookingCancelled
	b.UpdatedAt = now
	s.logger.LogBooking("CANCEL", bookingID, fmt.Sprintf("by=%s refund_eligible=%t", callerID, eligible))
	s.publish("booking.cancelled", b)
	return &models.CancelResult{Booking: b, RefundEligible: eligible}, nil
}

// Complete moves confirmed -> completed. Mentor only, and only once the
// session date has passed; the old client builds hid the action until then
// but the check now lives server-side.
func (s *Service) Complete(bookingID, callerID string) (*models.Booking, error) {
	b, err := s.DB.GetBookingByID(bookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if b.MentorID != callerID {
		return nil, ErrNotMentor
	}
	if b.Status != models.BookingConfirmed {
		if b.Status.Terminal() {
			return nil, ErrAlreadyTerminal
		}
		return nil, ErrInvalidTransition
	}

	now := s.Now()
	if now.Before(b.Date) {
		return nil, ErrSessionNotEnded
	}

	ok, err := s.DB.UpdateBookingStatus(bookingID, models.BookingConfirmed, models.BookingCompleted, now)
	if err != nil {
		return nil, fmt.Errorf("failed to complete booking %s: %w", bookingID, err)
	}
	if !ok {
		return nil, ErrStaleTransition
	}

	b.Status = models.BookingCompleted
	b.UpdatedAt = now
	s.logger.LogBooking("COMPLETE", bookingID, "confirmed -> completed")
	s.publish("booking.completed", b)
	return b, nil
}

func (s *Service) publish(eventType string, b *models.Booking) {
	if s.Events == nil {
		return
	}
	event := models.BookingEvent{
		Type:      eventType,
		BookingID: b.BookingID,
		ClientID:  b.ClientID,
		MentorID:  b.MentorID,
		Status:    b.Status,
		Timestamp: b.UpdatedAt,
	}
	if err := s.Events.PublishBookingEvent(event); err != nil {
		// Events feed notifications only; the transition already committed.
		s.logger.Error("KAFKA", fmt.Sprintf("failed to publish %s for %s: %v", eventType, b.BookingID, err))
	}
}
