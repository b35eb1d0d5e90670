package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-coaching/internal/booking/db"
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

	_, err = bunDB.NewCreateTable().Model((*models.Booking)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create bookings table: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func newBooking(clientID, mentorID string, date time.Time, status models.BookingStatus) models.Booking {
	now := time.Now()
	return models.Booking{
		BookingID:   uuid.NewString(),
		ClientID:    clientID,
		MentorID:    mentorID,
		SessionType: models.SessionSparring,
		Date:        date,
		Location:    "Gracie Barra downtown",
		Price:       45,
		AppFee:      6.75,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateAndGetBooking(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	b := newBooking("client1", "mentor1", time.Now().Add(72*time.Hour), models.BookingPending)
	b.PaymentIntentID = "pi_test_123"
	assert.NoError(t, store.CreateBooking(b))

	got, err := store.GetBookingByID(b.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, b.BookingID, got.BookingID)
	assert.Equal(t, models.BookingPending, got.Status)
	assert.Equal(t, "pi_test_123", got.PaymentIntentID)

	_, err = store.GetBookingByID("non-existent")
	assert.Error(t, err)
}

func TestUpdateBookingStatusOptimisticGuard(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	b := newBooking("client1", "mentor1", time.Now().Add(72*time.Hour), models.BookingPending)
	assert.NoError(t, store.CreateBooking(b))

	// First writer wins
	ok, err := store.UpdateBookingStatus(b.BookingID, models.BookingPending, models.BookingConfirmed, time.Now())
	assert.NoError(t, err)
	assert.True(t, ok)

	// Second writer expected pending, the row moved on: no rows touched
	ok, err = store.UpdateBookingStatus(b.BookingID, models.BookingPending, models.BookingCancelled, time.Now())
	assert.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetBookingByID(b.BookingID)
	assert.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, got.Status)
}

func TestListOrderingBySessionDate(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	near := newBooking("client1", "mentor1", time.Now().Add(24*time.Hour), models.BookingPending)
	far := newBooking("client1", "mentor1", time.Now().Add(240*time.Hour), models.BookingConfirmed)
	mid := newBooking("client1", "mentor2", time.Now().Add(96*time.Hour), models.BookingPending)

	for _, b := range []models.Booking{near, far, mid} {
		assert.NoError(t, store.CreateBooking(b))
	}

	byClient, err := store.GetBookingsByClient("client1")
	assert.NoError(t, err)
	assert.Len(t, byClient, 3)
	assert.Equal(t, far.BookingID, byClient[0].BookingID)
	assert.Equal(t, mid.BookingID, byClient[1].BookingID)
	assert.Equal(t, near.BookingID, byClient[2].BookingID)

	byMentor, err := store.GetBookingsByMentor("mentor1")
	assert.NoError(t, err)
	assert.Len(t, byMentor, 2)
	assert.Equal(t, far.BookingID, byMentor[0].BookingID)
}

func TestGetPendingBookingsByMentor(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	pending := newBooking("client1", "mentor1", time.Now().Add(48*time.Hour), models.BookingPending)
	confirmed := newBooking("client2", "mentor1", time.Now().Add(24*time.Hour), models.BookingConfirmed)
	otherMentor := newBooking("client3", "mentor2", time.Now().Add(24*time.Hour), models.BookingPending)

	for _, b := range []models.Booking{pending, confirmed, otherMentor} {
		assert.NoError(t, store.CreateBooking(b))
	}

	got, err := store.GetPendingBookingsByMentor("mentor1")
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, pending.BookingID, got[0].BookingID)
}
