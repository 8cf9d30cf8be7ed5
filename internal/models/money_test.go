package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyFromString(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		currency  string
		expectErr bool
	}{
		{name: "valid amount", amount: "4.50", currency: "USD"},
		{name: "negative amount", amount: "-12.99", currency: "EUR"},
		{name: "integer amount", amount: "100", currency: "INR"},
		{name: "invalid amount", amount: "four fifty", currency: "USD", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyFromString(tt.amount, tt.currency)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.currency, m.Currency)
			// decimal trims trailing zeros in String, so compare values.
			assert.True(t, m.Amount.Equal(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestMoney_AddRejectsMixedCurrencies(t *testing.T) {
	usd, _ := NewMoneyFromString("10.00", "USD")
	eur, _ := NewMoneyFromString("10.00", "EUR")

	_, err := usd.Add(eur)
	assert.Error(t, err)

	sum, err := usd.Add(usd)
	require.NoError(t, err)
	assert.Equal(t, "20.00 USD", sum.String())
}

func TestMoney_WithinEpsilon(t *testing.T) {
	epsilon := decimal.NewFromFloat(0.01)

	a, _ := NewMoneyFromString("4.50", "USD")
	b, _ := NewMoneyFromString("4.505", "USD")
	c, _ := NewMoneyFromString("4.52", "USD")
	d, _ := NewMoneyFromString("4.50", "EUR")

	assert.True(t, a.WithinEpsilon(b, epsilon))
	assert.False(t, a.WithinEpsilon(c, epsilon))
	// Different currencies are incomparable, never equal.
	assert.False(t, a.WithinEpsilon(d, epsilon))
}

func TestMoney_ExactDecimalSums(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3; this is the reason amounts are
	// decimal and not float64.
	a, _ := NewMoneyFromString("0.1", "USD")
	b, _ := NewMoneyFromString("0.2", "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount.Equal(decimal.RequireFromString("0.3")))
}
