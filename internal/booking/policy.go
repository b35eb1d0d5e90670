package booking

import "time"

// RefundWindow is how far ahead of the session a cancellation must happen
// to qualify for a refund.
const RefundWindow = 48 * time.Hour

// RefundEligible reports whether cancelling at `now` still qualifies for a
// refund. The boundary is inclusive: exactly 48 hours out is eligible.
func RefundEligible(sessionDate, now time.Time) bool {
	return sessionDate.Sub(now) >= RefundWindow
}
