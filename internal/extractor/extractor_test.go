package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/oracle"
	"fjacquet/mail-ledger/internal/pipeerror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func moneyPtr(t *testing.T, amount, currency string) *models.Money {
	t.Helper()
	m, err := models.NewMoneyFromString(amount, currency)
	require.NoError(t, err)
	return &m
}

func datePtr(t *testing.T, date string) *time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	return &d
}

func coffeeEmail() models.NormalizedEmail {
	return models.NormalizedEmail{
		ID:        "msg-coffee",
		SentAt:    time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
		Sender:    "noreply@coffeeco.com",
		Subject:   "Your receipt",
		PlainText: "Total: $4.50 on 2024-03-01",
	}
}

func TestExtractHybridAgreement(t *testing.T) {
	stub := &oracle.Stub{Fields: map[string][]models.FieldSet{
		"msg-coffee": {{
			Merchant: strPtr("CoffeeCo"),
			Amount:   moneyPtr(t, "4.50", "USD"),
			Date:     datePtr(t, "2024-03-01"),
			Kind:     models.KindPurchase,
		}},
	}}

	e := New(stub, Options{}, nil)
	candidates, err := e.Extract(context.Background(), coffeeEmail())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	cand := candidates[0]
	assert.Equal(t, models.MethodHybrid, cand.Method)
	assert.False(t, cand.OracleDegraded)
	require.NotNil(t, cand.Merchant)
	assert.Equal(t, "CoffeeCo", *cand.Merchant)
	require.NotNil(t, cand.Amount)
	assert.Equal(t, "4.50 USD", cand.Amount.String())
	require.NotNil(t, cand.Date)
	assert.Equal(t, "2024-03-01", cand.Date.Format("2006-01-02"))
	assert.Equal(t, models.KindPurchase, cand.Kind)

	// Both strategies survive in the audit map.
	assert.Contains(t, cand.RawFields, models.MethodRule)
	assert.Contains(t, cand.RawFields, models.MethodOracle)
}

func TestExtractRuleOnlyWithoutOracle(t *testing.T) {
	e := New(nil, Options{}, nil)
	candidates, err := e.Extract(context.Background(), coffeeEmail())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	cand := candidates[0]
	assert.Equal(t, models.MethodRule, cand.Method)
	// A rule-only deployment is a configuration, not a failure: no
	// degradation penalty applies.
	assert.False(t, cand.OracleDegraded)
	assert.Equal(t, "coffeeco", *cand.Merchant)
	assert.Equal(t, "4.50 USD", cand.Amount.String())
}

func TestExtractOracleErrorDegrades(t *testing.T) {
	stub := &oracle.Stub{Err: errors.New("service unavailable")}

	e := New(stub, Options{MaxRetries: 2}, nil)
	candidates, err := e.Extract(context.Background(), coffeeEmail())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.True(t, candidates[0].OracleDegraded)
	assert.Equal(t, models.MethodRule, candidates[0].Method)
	// Retries are bounded: initial attempt plus MaxRetries.
	assert.Equal(t, 3, stub.Calls())
}

func TestExtractOracleTimeoutDegrades(t *testing.T) {
	stub := &oracle.Stub{Delay: time.Second}

	e := New(stub, Options{OracleTimeout: 10 * time.Millisecond, MaxRetries: 1}, nil)
	candidates, err := e.Extract(context.Background(), coffeeEmail())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].OracleDegraded)
}

func TestExtractMerchantConflictIsNotHybrid(t *testing.T) {
	// Oracle agrees on amount but names a different merchant: the
	// conflict is kept for the scorer, not upgraded to hybrid.
	stub := &oracle.Stub{Fields: map[string][]models.FieldSet{
		"msg-coffee": {{
			Merchant: strPtr("Totally Different Store"),
			Amount:   moneyPtr(t, "4.50", "USD"),
			Kind:     models.KindPurchase,
		}},
	}}

	e := New(stub, Options{}, nil)
	candidates, err := e.Extract(context.Background(), coffeeEmail())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	cand := candidates[0]
	assert.NotEqual(t, models.MethodHybrid, cand.Method)
	require.Contains(t, cand.RawFields, models.MethodRule)
	require.Contains(t, cand.RawFields, models.MethodOracle)
	assert.Equal(t, "coffeeco", *cand.RawFields[models.MethodRule].Merchant)
	assert.Equal(t, "Totally Different Store", *cand.RawFields[models.MethodOracle].Merchant)
}

func TestExtractCombinedStatement(t *testing.T) {
	email := models.NormalizedEmail{
		ID:        "msg-statement",
		SentAt:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Sender:    "statements@bank.example",
		Subject:   "Your monthly statement",
		PlainText: "CoffeeCo $4.50 on 2024-03-01\nStreamly $12.99 on 2024-03-02",
	}

	e := New(nil, Options{}, nil)
	candidates, err := e.Extract(context.Background(), email)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "4.5", candidates[0].Amount.Amount.String())
	assert.Equal(t, "CoffeeCo", *candidates[0].Merchant)
	assert.Equal(t, "2024-03-01", candidates[0].Date.Format("2006-01-02"))

	assert.Equal(t, "12.99", candidates[1].Amount.Amount.String())
	assert.Equal(t, "Streamly", *candidates[1].Merchant)
	assert.Equal(t, "2024-03-02", candidates[1].Date.Format("2006-01-02"))
}

func TestExtractAmbiguous(t *testing.T) {
	email := models.NormalizedEmail{
		ID:        "msg-vague",
		SentAt:    time.Now(),
		Sender:    "someone@example.com",
		Subject:   "hello",
		PlainText: "no numbers here at all",
	}

	e := New(nil, Options{}, nil)
	_, err := e.Extract(context.Background(), email)
	require.Error(t, err)

	var ambiguous *pipeerror.ExtractionAmbiguousError
	assert.True(t, errors.As(err, &ambiguous))
}

func TestExtractDateDefaultsToSentAt(t *testing.T) {
	email := models.NormalizedEmail{
		ID:        "msg-nodate",
		SentAt:    time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC),
		Sender:    "noreply@coffeeco.com",
		Subject:   "Your receipt",
		PlainText: "Total: $4.50, thanks for visiting",
	}

	e := New(nil, Options{}, nil)
	candidates, err := e.Extract(context.Background(), email)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "2024-03-05", candidates[0].Date.Format("2006-01-02"))
}

func TestExtractUnpairedOracleResult(t *testing.T) {
	// Oracle finds a second transaction the rules missed.
	stub := &oracle.Stub{Fields: map[string][]models.FieldSet{
		"msg-coffee": {
			{Merchant: strPtr("CoffeeCo"), Amount: moneyPtr(t, "4.50", "USD"), Kind: models.KindPurchase},
			{Merchant: strPtr("TipJar"), Amount: moneyPtr(t, "1.00", "USD"), Kind: models.KindPurchase},
		},
	}}

	e := New(stub, Options{}, nil)
	candidates, err := e.Extract(context.Background(), coffeeEmail())
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, models.MethodHybrid, candidates[0].Method)
	assert.Equal(t, models.MethodOracle, candidates[1].Method)
	assert.Equal(t, "TipJar", *candidates[1].Merchant)
}

func TestFindAmounts(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"dollar symbol", "Total: $4.50", []string{"4.5 USD"}},
		{"rupee prefix", "You paid Rs. 1,234.00 today", []string{"1234 INR"}},
		{"amount before code", "Betrag 12,99 EUR", []string{"12.99 EUR"}},
		{"swiss apostrophes", "CHF 1'234.56 charged", []string{"1234.56 CHF"}},
		{"several amounts", "CoffeeCo $4.50 and Streamly $12.99", []string{"4.5 USD", "12.99 USD"}},
		{"bare number ignored", "Order 12345 confirmed", nil},
		{"absurd amount ignored", "$99999999 jackpot", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := findAmounts(tt.text)
			var got []string
			for _, m := range matches {
				got = append(got, m.money.Amount.String()+" "+m.money.Currency)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		text     string
		expected models.Kind
	}{
		{"Your subscription renewed for $12.99", models.KindSubscription},
		{"Salary credited to your account", models.KindIncome},
		{"Dividend of $20 paid", models.KindInvestment},
		{"Your flight itinerary", models.KindTravel},
		{"Electricity bill due date approaching", models.KindBill},
		{"Receipt for your order", models.KindPurchase},
		{"hello there", models.KindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, detectKind(tt.text), tt.text)
	}
}

func TestRuleExtractEpsilonConfigurable(t *testing.T) {
	// A wider epsilon pairs slightly different amounts.
	stub := &oracle.Stub{Fields: map[string][]models.FieldSet{
		"msg-coffee": {{
			Merchant: strPtr("CoffeeCo"),
			Amount:   moneyPtr(t, "4.55", "USD"),
			Kind:     models.KindPurchase,
		}},
	}}

	tight := New(stub, Options{AmountEpsilon: decimal.New(1, -2)}, nil)
	candidates, err := tight.Extract(context.Background(), coffeeEmail())
	require.NoError(t, err)
	assert.Len(t, candidates, 2)

	loose := New(stub, Options{AmountEpsilon: decimal.New(1, -1)}, nil)
	candidates, err = loose.Extract(context.Background(), coffeeEmail())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, models.MethodHybrid, candidates[0].Method)
}
