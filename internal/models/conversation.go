package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Conversation is the 1:1 chat channel for a single booking. The unique
// booking_id column is what makes get-or-create idempotent under races.
type Conversation struct {
	bun.BaseModel `bun:"table:conversations"`

	ConversationID string    `bun:"conversation_id,pk" json:"conversation_id"`
	BookingID      string    `bun:"booking_id,notnull,unique" json:"booking_id"`
	ParticipantOne string    `bun:"participant_one,notnull" json:"participant_one"`
	ParticipantTwo string    `bun:"participant_two,notnull" json:"participant_two"`
	LastMessage    string    `bun:"last_message,nullzero" json:"last_message,omitempty"`
	LastMessageAt  time.Time `bun:"last_message_at,nullzero" json:"last_message_at,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantOne == userID || c.ParticipantTwo == userID
}

type Message struct {
	bun.BaseModel `bun:"table:messages"`

	MessageID      string    `bun:"message_id,pk" json:"message_id"`
	ConversationID string    `bun:"conversation_id,notnull" json:"conversation_id"`
	SenderID       string    `bun:"sender_id,notnull" json:"sender_id"`
	Body           string    `bun:"body,notnull" json:"body"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

type MessageRequest struct {
	Body string `json:"body"`
}
