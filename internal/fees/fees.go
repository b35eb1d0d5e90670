package fees

import (
	"errors"
	"math"
)

// CommissionRate is the platform's cut of every session price.
const CommissionRate = 0.15

var ErrNonPositivePrice = errors.New("price must be greater than zero")

// Breakdown splits a session price into the platform commission and the
// mentor payout. AppFee + Payout always equals the original price.
type Breakdown struct {
	AppFee float64 `json:"app_fee"`
	Payout float64 `json:"payout"`
}

// Compute returns the commission breakdown for a session price. The fee is
// rounded to two decimals; the payout is the remainder.
func Compute(price float64) (Breakdown, error) {
	if price <= 0 {
		return Breakdown{}, ErrNonPositivePrice
	}
	fee := math.Round(price*CommissionRate*100) / 100
	return Breakdown{
		AppFee: fee,
		Payout: price - fee,
	}, nil
}

// AmountMinor converts a price in major currency units to the gateway's
// minor units (cents).
func AmountMinor(price float64) int64 {
	return int64(math.Round(price * 100))
}

// ApplicationFeeMinor is the platform commission expressed in minor units,
// computed on the minor amount so the gateway-side split never drifts from
// the captured total.
func ApplicationFeeMinor(amountMinor int64) int64 {
	return int64(math.Round(float64(amountMinor) * CommissionRate))
}
