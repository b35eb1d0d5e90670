package models

import "time"

// BookingEvent is the payload published to Kafka on every booking
// lifecycle transition and consumed by the notification service.
type BookingEvent struct {
	Type      string        `json:"type"` // booking.created, booking.accepted, ...
	BookingID string        `json:"booking_id"`
	ClientID  string        `json:"client_id"`
	MentorID  string        `json:"mentor_id"`
	Status    BookingStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

// ChatEvent fans new messages out to websocket subscribers in commit order.
type ChatEvent struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}
