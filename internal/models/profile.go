package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Profile carries the marketplace-facing state the booking core owns for a
// user: the review aggregate and the payee (Stripe connected account) state.
// Everything else about a user belongs to the identity provider.
type Profile struct {
	bun.BaseModel `bun:"table:profiles"`

	UserID          string    `bun:"user_id,pk" json:"user_id"`
	FullName        string    `bun:"full_name" json:"full_name"`
	Email           string    `bun:"email,nullzero" json:"email,omitempty"`
	AverageRating   float64   `bun:"average_rating" json:"average_rating"`
	TotalReviews    int       `bun:"total_reviews" json:"total_reviews"`
	StripeAccountID string    `bun:"stripe_account_id,nullzero" json:"stripe_account_id,omitempty"`
	PayoutsReady    bool      `bun:"payouts_ready" json:"payouts_ready"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}
