package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeCalculator_Split(t *testing.T) {
	calc := NewFeeCalculator(0.10)

	fee, payout := calc.Split(500, "USD")
	assert.Equal(t, 50.0, fee)
	assert.Equal(t, 450.0, payout)
}

func TestFeeCalculator_Split_RoundingPreservesTotal(t *testing.T) {
	calc := NewFeeCalculator(0.10)

	cases := []float64{33.33, 0.01, 99.99, 123.45, 0.07}
	for _, amount := range cases {
		fee, payout := calc.Split(amount, "USD")
		assert.InDelta(t, amount, fee+payout, 1e-9, "amount %v", amount)
		assert.GreaterOrEqual(t, fee, 0.0)
		assert.GreaterOrEqual(t, payout, 0.0)
	}
}

func TestFeeCalculator_Split_OddRate(t *testing.T) {
	calc := NewFeeCalculator(0.15)

	fee, payout := calc.Split(33.33, "USD")
	assert.Equal(t, 5.0, fee)
	assert.Equal(t, 28.33, payout)
}
