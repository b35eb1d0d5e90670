package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	GetConversationByBookingID(bookingID string) (*models.Conversation, error)
	GetConversationByID(id string) (*models.Conversation, error)
	CreateConversation(conv models.Conversation) (*models.Conversation, error)
	CreateMessage(msg models.Message) error
	GetMessagesByConversation(conversationID string) ([]models.Message, error)
}

// BookingStore is the read-only slice of the booking store the chat
// service needs to gate channel access.
type BookingStore interface {
	GetBookingByID(id string) (*models.Booking, error)
}

// Locker serializes conversation creation per booking.
type Locker interface {
	LockConversation(ctx context.Context, bookingID, owner string) (bool, error)
	UnlockConversation(ctx context.Context, bookingID, owner string) error
}

type EventPublisher interface {
	PublishChatEvent(event models.ChatEvent) error
}

// Service owns the per-booking chat channel. A conversation exists at
// most once per booking and only becomes reachable when the booking is
// confirmed; it survives completion so parties can settle logistics
// after the fact.
type Service struct {
	DB       DBLayer
	Bookings BookingStore
	Locks    Locker
	Events   EventPublisher
	logger   *logger.Logger

	// Now is swapped out in tests.
	Now func() time.Time
}

func NewService(db DBLayer, bookings BookingStore, locks Locker, events EventPublisher, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Bookings: bookings,
		Locks:    locks,
		Events:   events,
		logger:   log,
		Now:      time.Now,
	}
}

// GetOrCreateConversation returns the booking's conversation, creating it
// on first access. Idempotent: both parties calling concurrently get the
// same conversation.
func (s *Service) GetOrCreateConversation(ctx context.Context, bookingID, callerID string) (*models.Conversation, error) {
	b, err := s.Bookings.GetBookingByID(bookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if b.ClientID != callerID && b.MentorID != callerID {
		return nil, ErrNotParticipant
	}
	switch b.Status {
	case models.BookingConfirmed, models.BookingCompleted:
	default:
		return nil, ErrChatNotAllowed
	}

	// Fast path: conversation already exists
	if conv, err := s.DB.GetConversationByBookingID(bookingID); err == nil {
		return conv, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	locked, err := s.Locks.LockConversation(ctx, bookingID, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to take conversation lock: %w", err)
	}
	if !locked {
		// Another request holds the lock; it either created the row
		// already or will momentarily.
		if conv, err := s.DB.GetConversationByBookingID(bookingID); err == nil {
			return conv, nil
		}
		return nil, ErrLockContended
	}
	defer func() {
		if err := s.Locks.UnlockConversation(ctx, bookingID, callerID); err != nil {
			s.logger.Warn("CHAT", fmt.Sprintf("Failed to release conversation lock for booking %s: %v", bookingID, err))
		}
	}()

	conv, err := s.DB.CreateConversation(models.Conversation{
		ConversationID: uuid.NewString(),
		BookingID:      bookingID,
		ParticipantOne: b.ClientID,
		ParticipantTwo: b.MentorID,
		CreatedAt:      s.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Info("CHAT", fmt.Sprintf("Conversation %s ready for booking %s", conv.ConversationID, bookingID))
	return conv, nil
}

// SendMessage persists the message and streams it for fan-out. The
// websocket delivery is best effort; persistence is not.
func (s *Service) SendMessage(conversationID, senderID string, req models.MessageRequest) (*models.Message, error) {
	if req.Body == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := s.DB.GetConversationByID(conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	msg := models.Message{
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           req.Body,
		CreatedAt:      s.Now(),
	}

	if err := s.DB.CreateMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if s.Events != nil {
		event := models.ChatEvent{
			ConversationID: msg.ConversationID,
			MessageID:      msg.MessageID,
			SenderID:       msg.SenderID,
			Body:           msg.Body,
			CreatedAt:      msg.CreatedAt,
		}
		if err := s.Events.PublishChatEvent(event); err != nil {
			s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish chat event for message %s: %v", msg.MessageID, err))
		}
	}

	return &msg, nil
}

// GetMessages returns the full history, oldest first.
func (s *Service) GetMessages(conversationID, callerID string) ([]models.Message, error) {
	conv, err := s.DB.GetConversationByID(conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(callerID) {
		return nil, ErrNotParticipant
	}

	return s.DB.GetMessagesByConversation(conversationID)
}

// GetConversation returns the conversation to one of its participants.
func (s *Service) GetConversation(conversationID, callerID string) (*models.Conversation, error) {
	conv, err := s.DB.GetConversationByID(conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(callerID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}
