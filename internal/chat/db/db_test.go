package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-coaching/internal/chat/db"
	"ms-coaching/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{(*models.Conversation)(nil), (*models.Message)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func newConversation(bookingID string) models.Conversation {
	return models.Conversation{
		ConversationID: uuid.NewString(),
		BookingID:      bookingID,
		ParticipantOne: "client1",
		ParticipantTwo: "mentor1",
		CreatedAt:      time.Now(),
	}
}

func TestCreateConversationIdempotent(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	first, err := store.CreateConversation(newConversation("booking1"))
	assert.NoError(t, err)

	// Second create for the same booking converges on the existing row
	second, err := store.CreateConversation(newConversation("booking1"))
	assert.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	got, err := store.GetConversationByBookingID("booking1")
	assert.NoError(t, err)
	assert.Equal(t, first.ConversationID, got.ConversationID)
}

func TestGetConversationNotFound(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	_, err := store.GetConversationByBookingID("nope")
	assert.Error(t, err)

	_, err = store.GetConversationByID("nope")
	assert.Error(t, err)
}

func TestCreateMessageBumpsLastMessage(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	conv, err := store.CreateConversation(newConversation("booking1"))
	assert.NoError(t, err)

	sentAt := time.Now()
	msg := models.Message{
		MessageID:      uuid.NewString(),
		ConversationID: conv.ConversationID,
		SenderID:       "client1",
		Body:           "see you at the gym at 6",
		CreatedAt:      sentAt,
	}
	assert.NoError(t, store.CreateMessage(msg))

	got, err := store.GetConversationByID(conv.ConversationID)
	assert.NoError(t, err)
	assert.Equal(t, "see you at the gym at 6", got.LastMessage)
	assert.WithinDuration(t, sentAt, got.LastMessageAt, time.Second)
}

func TestGetMessagesOldestFirst(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	conv, err := store.CreateConversation(newConversation("booking1"))
	assert.NoError(t, err)

	base := time.Now()
	bodies := []string{"first", "second", "third"}
	for i, body := range bodies {
		msg := models.Message{
			MessageID:      uuid.NewString(),
			ConversationID: conv.ConversationID,
			SenderID:       "client1",
			Body:           body,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		assert.NoError(t, store.CreateMessage(msg))
	}

	messages, err := store.GetMessagesByConversation(conv.ConversationID)
	assert.NoError(t, err)
	assert.Len(t, messages, 3)
	for i, body := range bodies {
		assert.Equal(t, body, messages[i].Body)
	}
}
