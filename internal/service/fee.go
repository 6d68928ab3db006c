package service

import (
	"github.com/shopspring/decimal"
)

// FeeCalculator считает комиссию платформы. Расчёт детерминирован и
// консервативен: payout = amount - fee всегда сходится до копейки.
type FeeCalculator struct {
	rate decimal.Decimal
}

// NewFeeCalculator создаёт калькулятор с долей комиссии (например 0.10).
func NewFeeCalculator(rate float64) *FeeCalculator {
	return &FeeCalculator{rate: decimal.NewFromFloat(rate)}
}

// Split возвращает комиссию платформы и выплату исполнителю для суммы.
// Комиссия округляется до 2 знаков, выплата считается вычитанием, чтобы
// сумма частей всегда равнялась исходной.
func (f *FeeCalculator) Split(amount float64, currency string) (fee, payout float64) {
	total := decimal.NewFromFloat(amount)
	feeDec := total.Mul(f.rate).Round(2)
	payoutDec := total.Sub(feeDec)

	fee, _ = feeDec.Float64()
	payout, _ = payoutDec.Float64()
	return fee, payout
}
