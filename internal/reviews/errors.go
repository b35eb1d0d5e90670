package reviews

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrReviewNotFound  = errors.New("review not found")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrNotBookingParty = errors.New("caller is not a party of this booking")
	ErrBookingNotEnded = errors.New("reviews open once the booking is completed")
	ErrDuplicateReview = errors.New("this booking has already been reviewed by the caller")
)
