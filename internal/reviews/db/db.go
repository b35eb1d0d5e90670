package db

import (
	"context"
	"errors"
	"strings"

	"ms-coaching/internal/models"
	"ms-coaching/internal/reviews"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// CreateReview → insert new review. The (booking_id, reviewer_id) unique
// constraint is the last line of defense against concurrent submissions;
// its violation surfaces as ErrDuplicateReview, not a storage failure.
func (d *DB) CreateReview(review models.Review) error {
	_, err := d.Bun.NewInsert().Model(&review).Exec(context.Background())
	if err != nil && isUniqueViolation(err) {
		return reviews.ErrDuplicateReview
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// sqlite in tests reports the constraint by message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetReviewByBookingAndReviewer enforces one review per party per booking.
func (d *DB) GetReviewByBookingAndReviewer(bookingID, reviewerID string) (*models.Review, error) {
	var review models.Review
	err := d.Bun.NewSelect().
		Model(&review).
		Where("booking_id = ?", bookingID).
		Where("reviewer_id = ?", reviewerID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// GetReviewsByReviewee → everything a user has received, newest first
func (d *DB) GetReviewsByReviewee(revieweeID string) ([]models.Review, error) {
	var reviews []models.Review
	err := d.Bun.NewSelect().
		Model(&reviews).
		Where("reviewee_id = ?", revieweeID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// GetReviewsByBooking → the up-to-two reviews on a booking
func (d *DB) GetReviewsByBooking(bookingID string) ([]models.Review, error) {
	var reviews []models.Review
	err := d.Bun.NewSelect().
		Model(&reviews).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// UpdateProfileRating writes the recomputed aggregate onto the profile.
func (d *DB) UpdateProfileRating(userID string, summary models.RatingSummary) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Profile)(nil)).
		Set("average_rating = ?", summary.AverageRating).
		Set("total_reviews = ?", summary.TotalReviews).
		Where("user_id = ?", userID).
		Exec(context.Background())
	return err
}
