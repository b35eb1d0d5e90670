package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingRejected, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

type SessionType string

const (
	SessionSparring   SessionType = "sparring"
	SessionTournament SessionType = "tournament"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID       string        `bun:"booking_id,pk" json:"booking_id"`
	ClientID        string        `bun:"client_id,notnull" json:"client_id"`
	MentorID        string        `bun:"mentor_id,notnull" json:"mentor_id"`
	SessionType     SessionType   `bun:"session_type,notnull" json:"session_type"`
	Date            time.Time     `bun:"date,notnull" json:"date"`
	Location        string        `bun:"location" json:"location"`
	Price           float64       `bun:"price,notnull" json:"price"`
	AppFee          float64       `bun:"app_fee,notnull" json:"app_fee"`
	PaymentIntentID string        `bun:"payment_intent_id,nullzero" json:"payment_intent_id,omitempty"`
	Status          BookingStatus `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,notnull" json:"updated_at"`
}

type BookingRequest struct {
	ClientID        string      `json:"client_id"`
	MentorID        string      `json:"mentor_id"`
	SessionType     SessionType `json:"session_type"`
	Date            time.Time   `json:"date"`
	Location        string      `json:"location"`
	Price           float64     `json:"price"`
	PaymentIntentID string      `json:"payment_intent_id,omitempty"`
}

type BookingResponse struct {
	BookingID string        `json:"booking_id"`
	ClientID  string        `json:"client_id"`
	MentorID  string        `json:"mentor_id"`
	Status    BookingStatus `json:"status"`
	AppFee    float64       `json:"app_fee"`
}

// CancelResult reports the outcome of a cancellation. The lifecycle engine
// never reverses funds itself; RefundEligible tells the billing caller
// whether the 48-hour policy was met at the moment of cancellation.
type CancelResult struct {
	Booking        *Booking `json:"booking"`
	RefundEligible bool     `json:"refund_eligible"`
}
