package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with its currency code. Amounts are
// decimal throughout the pipeline; float64 never touches financial math.
type Money struct {
	Amount   decimal.Decimal `json:"amount" yaml:"amount"`
	Currency string          `json:"currency" yaml:"currency"`
}

// NewMoney creates a Money value with the given amount and currency.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// NewMoneyFromString creates a Money value from a decimal string.
func NewMoneyFromString(amount, currency string) (Money, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string '%s': %w", amount, err)
	}
	return Money{Amount: dec, Currency: currency}, nil
}

// ZeroMoney returns a zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Add adds another Money value. Returns an error if currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("cannot add different currencies: %s and %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub subtracts another Money value. Returns an error if currencies differ.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("cannot subtract different currencies: %s and %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Div divides the amount by a decimal divisor.
func (m Money) Div(divisor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Div(divisor), Currency: m.Currency}
}

// Mul multiplies the amount by a decimal factor.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

// Equal returns true if amount and currency both match exactly.
func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount) && m.Currency == other.Currency
}

// WithinEpsilon reports whether two amounts in the same currency differ
// by no more than epsilon. Different currencies never match: amounts in
// different currencies are incomparable without a rate, which the
// pipeline deliberately does not apply.
func (m Money) WithinEpsilon(other Money, epsilon decimal.Decimal) bool {
	if m.Currency != other.Currency {
		return false
	}
	return m.Amount.Sub(other.Amount).Abs().LessThanOrEqual(epsilon)
}

// String returns a display form like "4.50 USD".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}
