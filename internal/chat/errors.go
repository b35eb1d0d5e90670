package chat

import "errors"

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("caller is not a participant of this conversation")
	// ErrChatNotAllowed gates the channel on booking state: chat opens at
	// confirmation and stays open after completion.
	ErrChatNotAllowed = errors.New("chat is only available for confirmed or completed bookings")
	ErrEmptyMessage   = errors.New("message body must not be empty")
	ErrLockContended  = errors.New("conversation is being created by another request, retry")
)
