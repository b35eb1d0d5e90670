package fees_test

import (
	"testing"

	"ms-coaching/internal/fees"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		price  float64
		appFee float64
		payout float64
	}{
		{45, 6.75, 38.25},
		{30, 4.5, 25.5},
		{35, 5.25, 29.75},
		{40, 6, 34},
		{55, 8.25, 46.75},
		{19.99, 3.0, 16.99},
	}

	for _, c := range cases {
		b, err := fees.Compute(c.price)
		assert.NoError(t, err)
		assert.InDelta(t, c.appFee, b.AppFee, 0.0001, "fee for %.2f", c.price)
		assert.InDelta(t, c.payout, b.Payout, 0.0001, "payout for %.2f", c.price)
		assert.InDelta(t, c.price, b.AppFee+b.Payout, 0.0001, "split must sum back to price")
	}
}

func TestComputeRejectsNonPositivePrice(t *testing.T) {
	_, err := fees.Compute(0)
	assert.ErrorIs(t, err, fees.ErrNonPositivePrice)

	_, err = fees.Compute(-10)
	assert.ErrorIs(t, err, fees.ErrNonPositivePrice)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(4500), fees.AmountMinor(45))
	assert.Equal(t, int64(1999), fees.AmountMinor(19.99))
	assert.Equal(t, int64(675), fees.ApplicationFeeMinor(4500))
	assert.Equal(t, int64(300), fees.ApplicationFeeMinor(1999))
}
