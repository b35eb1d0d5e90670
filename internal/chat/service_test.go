package chat_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"ms-coaching/internal/chat"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetConversationByBookingID(bookingID string) (*models.Conversation, error) {
	args := m.Called(bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockDBLayer) GetConversationByID(id string) (*models.Conversation, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockDBLayer) CreateConversation(conv models.Conversation) (*models.Conversation, error) {
	args := m.Called(conv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockDBLayer) CreateMessage(msg models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockDBLayer) GetMessagesByConversation(conversationID string) ([]models.Message, error) {
	args := m.Called(conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

type MockBookingStore struct {
	mock.Mock
}

func (m *MockBookingStore) GetBookingByID(id string) (*models.Booking, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) LockConversation(ctx context.Context, bookingID, owner string) (bool, error) {
	args := m.Called(bookingID, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) UnlockConversation(ctx context.Context, bookingID, owner string) error {
	args := m.Called(bookingID, owner)
	return args.Error(0)
}

type MockChatPublisher struct {
	mock.Mock
}

func (m *MockChatPublisher) PublishChatEvent(event models.ChatEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newService(db *MockDBLayer, bookings *MockBookingStore, locks *MockLocker, pub *MockChatPublisher) *chat.Service {
	svc := chat.NewService(db, bookings, locks, pub, logger.NewLogger())
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func confirmedBooking() *models.Booking {
	return &models.Booking{
		BookingID: "booking1",
		ClientID:  "client1",
		MentorID:  "mentor1",
		Status:    models.BookingConfirmed,
	}
}

func TestGetOrCreateConversationCreates(t *testing.T) {
	db := &MockDBLayer{}
	bookings := &MockBookingStore{}
	locks := &MockLocker{}

	bookings.On("GetBookingByID", "booking1").Return(confirmedBooking(), nil)
	db.On("GetConversationByBookingID", "booking1").Return(nil, sql.ErrNoRows)
	locks.On("LockConversation", "booking1", "client1").Return(true, nil)
	locks.On("UnlockConversation", "booking1", "client1").Return(nil)
	db.On("CreateConversation", mock.MatchedBy(func(conv models.Conversation) bool {
		return conv.BookingID == "booking1" &&
			conv.ParticipantOne == "client1" &&
			conv.ParticipantTwo == "mentor1"
	})).Return(&models.Conversation{ConversationID: "conv1", BookingID: "booking1"}, nil)

	svc := newService(db, bookings, locks, nil)
	conv, err := svc.GetOrCreateConversation(context.Background(), "booking1", "client1")

	assert.NoError(t, err)
	assert.Equal(t, "conv1", conv.ConversationID)
	db.AssertExpectations(t)
	locks.AssertExpectations(t)
}

func TestGetOrCreateConversationReturnsExisting(t *testing.T) {
	db := &MockDBLayer{}
	bookings := &MockBookingStore{}
	locks := &MockLocker{}

	bookings.On("GetBookingByID", "booking1").Return(confirmedBooking(), nil)
	db.On("GetConversationByBookingID", "booking1").Return(&models.Conversation{
		ConversationID: "conv1",
		BookingID:      "booking1",
		ParticipantOne: "client1",
		ParticipantTwo: "mentor1",
	}, nil)

	svc := newService(db, bookings, locks, nil)
	conv, err := svc.GetOrCreateConversation(context.Background(), "booking1", "mentor1")

	assert.NoError(t, err)
	assert.Equal(t, "conv1", conv.ConversationID)
	locks.AssertNotCalled(t, "LockConversation", mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "CreateConversation", mock.Anything)
}

func TestGetOrCreateConversationGatesOnStatus(t *testing.T) {
	for _, status := range []models.BookingStatus{
		models.BookingPending,
		models.BookingRejected,
		models.BookingCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			db := &MockDBLayer{}
			bookings := &MockBookingStore{}
			b := confirmedBooking()
			b.Status = status
			bookings.On("GetBookingByID", "booking1").Return(b, nil)

			svc := newService(db, bookings, &MockLocker{}, nil)
			_, err := svc.GetOrCreateConversation(context.Background(), "booking1", "client1")
			assert.ErrorIs(t, err, chat.ErrChatNotAllowed)
		})
	}
}

func TestGetOrCreateConversationAllowsCompleted(t *testing.T) {
	db := &MockDBLayer{}
	bookings := &MockBookingStore{}
	b := confirmedBooking()
	b.Status = models.BookingCompleted
	bookings.On("GetBookingByID", "booking1").Return(b, nil)
	db.On("GetConversationByBookingID", "booking1").Return(&models.Conversation{
		ConversationID: "conv1",
	}, nil)

	svc := newService(db, bookings, &MockLocker{}, nil)
	_, err := svc.GetOrCreateConversation(context.Background(), "booking1", "client1")
	assert.NoError(t, err)
}

func TestGetOrCreateConversationRejectsOutsider(t *testing.T) {
	bookings := &MockBookingStore{}
	bookings.On("GetBookingByID", "booking1").Return(confirmedBooking(), nil)

	svc := newService(&MockDBLayer{}, bookings, &MockLocker{}, nil)
	_, err := svc.GetOrCreateConversation(context.Background(), "booking1", "stranger")
	assert.ErrorIs(t, err, chat.ErrNotParticipant)
}

func TestGetOrCreateConversationLockContention(t *testing.T) {
	db := &MockDBLayer{}
	bookings := &MockBookingStore{}
	locks := &MockLocker{}

	bookings.On("GetBookingByID", "booking1").Return(confirmedBooking(), nil)
	// First lookup misses, the lock is held elsewhere, second lookup finds
	// the row the lock holder created.
	db.On("GetConversationByBookingID", "booking1").Return(nil, sql.ErrNoRows).Once()
	locks.On("LockConversation", "booking1", "client1").Return(false, nil)
	db.On("GetConversationByBookingID", "booking1").Return(&models.Conversation{
		ConversationID: "conv1",
	}, nil).Once()

	svc := newService(db, bookings, locks, nil)
	conv, err := svc.GetOrCreateConversation(context.Background(), "booking1", "client1")

	assert.NoError(t, err)
	assert.Equal(t, "conv1", conv.ConversationID)
	db.AssertNotCalled(t, "CreateConversation", mock.Anything)
}

func participantsConversation() *models.Conversation {
	return &models.Conversation{
		ConversationID: "conv1",
		BookingID:      "booking1",
		ParticipantOne: "client1",
		ParticipantTwo: "mentor1",
	}
}

func TestSendMessagePersistsAndPublishes(t *testing.T) {
	db := &MockDBLayer{}
	pub := &MockChatPublisher{}

	db.On("GetConversationByID", "conv1").Return(participantsConversation(), nil)
	db.On("CreateMessage", mock.MatchedBy(func(msg models.Message) bool {
		return msg.ConversationID == "conv1" &&
			msg.SenderID == "client1" &&
			msg.Body == "running 10 minutes late" &&
			msg.CreatedAt.Equal(fixedNow)
	})).Return(nil)
	pub.On("PublishChatEvent", mock.MatchedBy(func(ev models.ChatEvent) bool {
		return ev.ConversationID == "conv1" && ev.Body == "running 10 minutes late"
	})).Return(nil)

	svc := newService(db, &MockBookingStore{}, &MockLocker{}, pub)
	msg, err := svc.SendMessage("conv1", "client1", models.MessageRequest{Body: "running 10 minutes late"})

	assert.NoError(t, err)
	assert.NotEmpty(t, msg.MessageID)
	db.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSendMessagePublishFailureDoesNotFail(t *testing.T) {
	db := &MockDBLayer{}
	pub := &MockChatPublisher{}

	db.On("GetConversationByID", "conv1").Return(participantsConversation(), nil)
	db.On("CreateMessage", mock.Anything).Return(nil)
	pub.On("PublishChatEvent", mock.Anything).Return(errors.New("broker down"))

	svc := newService(db, &MockBookingStore{}, &MockLocker{}, pub)
	_, err := svc.SendMessage("conv1", "client1", models.MessageRequest{Body: "hi"})
	assert.NoError(t, err)
}

func TestSendMessageValidation(t *testing.T) {
	db := &MockDBLayer{}
	db.On("GetConversationByID", "conv1").Return(participantsConversation(), nil)

	svc := newService(db, &MockBookingStore{}, &MockLocker{}, nil)

	_, err := svc.SendMessage("conv1", "client1", models.MessageRequest{Body: ""})
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	_, err = svc.SendMessage("conv1", "stranger", models.MessageRequest{Body: "hi"})
	assert.ErrorIs(t, err, chat.ErrNotParticipant)
}

func TestGetMessagesParticipantCheck(t *testing.T) {
	db := &MockDBLayer{}
	db.On("GetConversationByID", "conv1").Return(participantsConversation(), nil)
	db.On("GetMessagesByConversation", "conv1").Return([]models.Message{
		{MessageID: "m1", Body: "first"},
		{MessageID: "m2", Body: "second"},
	}, nil)

	svc := newService(db, &MockBookingStore{}, &MockLocker{}, nil)

	messages, err := svc.GetMessages("conv1", "mentor1")
	assert.NoError(t, err)
	assert.Len(t, messages, 2)

	_, err = svc.GetMessages("conv1", "stranger")
	assert.ErrorIs(t, err, chat.ErrNotParticipant)
}
