package booking

import "errors"

// Validation errors: detected before any write, the record is untouched.
var (
	ErrSelfBooking        = errors.New("client and mentor must be different users")
	ErrInvalidDate        = errors.New("session date must be in the future")
	ErrInvalidPrice       = errors.New("price must be greater than zero")
	ErrInvalidSessionType = errors.New("session type must be sparring or tournament")
)

// State errors: the requested edge is not in the transition graph, or the
// record moved under the caller's feet.
var (
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrStaleTransition   = errors.New("booking status changed since it was read, re-read and retry")
	ErrAlreadyTerminal   = errors.New("booking is already in a terminal state")
	ErrSessionNotEnded   = errors.New("session date has not passed yet")
	ErrBookingNotFound   = errors.New("booking not found")
)

// Authorization errors.
var (
	ErrNotBookingParty = errors.New("caller is not a party to this booking")
	ErrNotMentor       = errors.New("only the mentor may perform this action")
)

// ReconciliationError means money moved but the booking record did not get
// written. It keeps the payment handle and the intended booking parameters
// so an operator can recover manually; it must never be collapsed into a
// generic failure.
type ReconciliationError struct {
	PaymentIntentID string
	ClientID        string
	MentorID        string
	Err             error
}

func (e *ReconciliationError) Error() string {
	return "payment " + e.PaymentIntentID + " captured but booking creation failed: " + e.Err.Error()
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
