package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Review struct {
	bun.BaseModel `bun:"table:reviews"`

	ReviewID   string    `bun:"review_id,pk" json:"review_id"`
	BookingID  string    `bun:"booking_id,notnull,unique:one_review_per_party" json:"booking_id"`
	ReviewerID string    `bun:"reviewer_id,notnull,unique:one_review_per_party" json:"reviewer_id"`
	RevieweeID string    `bun:"reviewee_id,notnull" json:"reviewee_id"`
	Rating     int       `bun:"rating,notnull" json:"rating"`
	Comment    string    `bun:"comment,nullzero" json:"comment,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

type ReviewRequest struct {
	BookingID string `json:"booking_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// RatingSummary is the persisted aggregate on the reviewee's profile,
// always recomputed from the full review set rather than incrementally.
type RatingSummary struct {
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
}
