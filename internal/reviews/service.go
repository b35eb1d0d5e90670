package reviews

import (
	"errors"
	"fmt"
	"math"
	"time"

	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	CreateReview(review models.Review) error
	GetReviewByBookingAndReviewer(bookingID, reviewerID string) (*models.Review, error)
	GetReviewsByReviewee(revieweeID string) ([]models.Review, error)
	GetReviewsByBooking(bookingID string) ([]models.Review, error)
	UpdateProfileRating(userID string, summary models.RatingSummary) error
}

// BookingStore is the read-only slice of the booking store needed to gate
// review submission.
type BookingStore interface {
	GetBookingByID(id string) (*models.Booking, error)
}

// Service handles post-session reviews. Either party can review the other
// exactly once per booking, and only after completion. The reviewee's
// profile aggregate is recomputed from the full review set on every write
// so it can never drift from the rows it summarizes.
type Service struct {
	DB       DBLayer
	Bookings BookingStore
	logger   *logger.Logger

	// Now is swapped out in tests.
	Now func() time.Time
}

func NewService(db DBLayer, bookings BookingStore, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Bookings: bookings,
		logger:   log,
		Now:      time.Now,
	}
}

// Submit records a review of the other party on a completed booking.
func (s *Service) Submit(reviewerID string, req models.ReviewRequest) (*models.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	b, err := s.Bookings.GetBookingByID(req.BookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}

	var revieweeID string
	switch reviewerID {
	case b.ClientID:
		revieweeID = b.MentorID
	case b.MentorID:
		revieweeID = b.ClientID
	default:
		return nil, ErrNotBookingParty
	}

	if b.Status != models.BookingCompleted {
		return nil, ErrBookingNotEnded
	}

	if _, err := s.DB.GetReviewByBookingAndReviewer(req.BookingID, reviewerID); err == nil {
		return nil, ErrDuplicateReview
	}

	review := models.Review{
		ReviewID:   uuid.NewString(),
		BookingID:  req.BookingID,
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		CreatedAt:  s.Now(),
	}

	if err := s.DB.CreateReview(review); err != nil {
		// A concurrent submission can slip past the pre-check; the unique
		// constraint reports it as a duplicate, not a storage failure.
		if errors.Is(err, ErrDuplicateReview) {
			return nil, ErrDuplicateReview
		}
		return nil, fmt.Errorf("failed to store review: %w", err)
	}

	if err := s.refreshAggregate(revieweeID); err != nil {
		// The review row is in; the aggregate catches up on the next write.
		s.logger.Warn("REVIEWS", fmt.Sprintf("Failed to refresh rating aggregate for %s: %v", revieweeID, err))
	}

	s.logger.Info("REVIEWS", fmt.Sprintf("Review %s recorded: %s rated %s %d/5", review.ReviewID, reviewerID, revieweeID, req.Rating))
	return &review, nil
}

// ListForUser returns all reviews received by a user, newest first.
func (s *Service) ListForUser(userID string) ([]models.Review, error) {
	return s.DB.GetReviewsByReviewee(userID)
}

// ListForBooking returns the up-to-two reviews attached to a booking,
// visible to its parties only.
func (s *Service) ListForBooking(bookingID, callerID string) ([]models.Review, error) {
	b, err := s.Bookings.GetBookingByID(bookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if b.ClientID != callerID && b.MentorID != callerID {
		return nil, ErrNotBookingParty
	}
	return s.DB.GetReviewsByBooking(bookingID)
}

// Summary recomputes the aggregate for a user without persisting it.
func (s *Service) Summary(userID string) (*models.RatingSummary, error) {
	all, err := s.DB.GetReviewsByReviewee(userID)
	if err != nil {
		return nil, err
	}
	summary := summarize(all)
	return &summary, nil
}

// refreshAggregate re-scans every review the user has received and writes
// the fresh summary onto their profile.
func (s *Service) refreshAggregate(revieweeID string) error {
	all, err := s.DB.GetReviewsByReviewee(revieweeID)
	if err != nil {
		return err
	}
	return s.DB.UpdateProfileRating(revieweeID, summarize(all))
}

// summarize averages the full set, rounded to one decimal.
func summarize(all []models.Review) models.RatingSummary {
	if len(all) == 0 {
		return models.RatingSummary{}
	}

	total := 0
	for _, r := range all {
		total += r.Rating
	}
	avg := float64(total) / float64(len(all))

	return models.RatingSummary{
		AverageRating: math.Round(avg*10) / 10,
		TotalReviews:  len(all),
	}
}
