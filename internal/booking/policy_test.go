package booking_test

import (
	"testing"
	"time"

	"ms-coaching/internal/booking"

	"github.com/stretchr/testify/assert"
)

func TestRefundEligible(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, booking.RefundEligible(now.Add(72*time.Hour), now), "72h out is eligible")
	assert.False(t, booking.RefundEligible(now.Add(24*time.Hour), now), "24h out is not")
	assert.True(t, booking.RefundEligible(now.Add(48*time.Hour), now), "the 48h boundary is inclusive")
	assert.False(t, booking.RefundEligible(now.Add(48*time.Hour-time.Second), now))
	assert.False(t, booking.RefundEligible(now.Add(-time.Hour), now), "past sessions never qualify")
}
