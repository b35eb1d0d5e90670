package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-coaching/internal/models"
	"ms-coaching/internal/reviews"
	"ms-coaching/internal/reviews/db"

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

	for _, model := range []interface{}{(*models.Review)(nil), (*models.Profile)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func newReview(bookingID, reviewerID, revieweeID string, rating int, createdAt time.Time) models.Review {
	return models.Review{
		ReviewID:   uuid.NewString(),
		BookingID:  bookingID,
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Rating:     rating,
		Comment:    "good session",
		CreatedAt:  createdAt,
	}
}

func TestCreateAndLookupReview(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	r := newReview("booking1", "client1", "mentor1", 4, time.Now())
	assert.NoError(t, store.CreateReview(r))

	got, err := store.GetReviewByBookingAndReviewer("booking1", "client1")
	assert.NoError(t, err)
	assert.Equal(t, r.ReviewID, got.ReviewID)

	// The other party has not reviewed yet
	_, err = store.GetReviewByBookingAndReviewer("booking1", "mentor1")
	assert.Error(t, err)
}

func TestCreateReviewSecondSubmissionHitsConstraint(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	assert.NoError(t, store.CreateReview(newReview("booking1", "client1", "mentor1", 4, time.Now())))

	// Same reviewer, same booking, fresh review id: the constraint decides
	err := store.CreateReview(newReview("booking1", "client1", "mentor1", 5, time.Now()))
	assert.ErrorIs(t, err, reviews.ErrDuplicateReview)

	// The other party is still free to review
	assert.NoError(t, store.CreateReview(newReview("booking1", "mentor1", "client1", 5, time.Now())))
}

func TestGetReviewsByRevieweeNewestFirst(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	base := time.Now()
	old := newReview("booking1", "client1", "mentor1", 4, base.Add(-48*time.Hour))
	recent := newReview("booking2", "client2", "mentor1", 5, base)
	other := newReview("booking3", "client1", "mentor2", 3, base)

	for _, r := range []models.Review{old, recent, other} {
		assert.NoError(t, store.CreateReview(r))
	}

	got, err := store.GetReviewsByReviewee("mentor1")
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, recent.ReviewID, got[0].ReviewID)
	assert.Equal(t, old.ReviewID, got[1].ReviewID)
}

func TestGetReviewsByBookingBothSides(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	base := time.Now()
	byClient := newReview("booking1", "client1", "mentor1", 4, base)
	byMentor := newReview("booking1", "mentor1", "client1", 5, base.Add(time.Hour))

	assert.NoError(t, store.CreateReview(byClient))
	assert.NoError(t, store.CreateReview(byMentor))

	got, err := store.GetReviewsByBooking("booking1")
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, byClient.ReviewID, got[0].ReviewID)
}

func TestUpdateProfileRating(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	profile := models.Profile{
		UserID:    "mentor1",
		FullName:  "Ana Silva",
		CreatedAt: time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&profile).Exec(context.Background())
	assert.NoError(t, err)

	assert.NoError(t, store.UpdateProfileRating("mentor1", models.RatingSummary{
		AverageRating: 4.3,
		TotalReviews:  3,
	}))

	var got models.Profile
	err = bunDB.NewSelect().Model(&got).Where("user_id = ?", "mentor1").Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 4.3, got.AverageRating)
	assert.Equal(t, 3, got.TotalReviews)
}
