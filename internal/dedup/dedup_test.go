package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/pipeerror"
	"fjacquet/mail-ledger/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func acceptedRecord(t *testing.T, id, merchant, amount string, date time.Time) models.TransactionRecord {
	t.Helper()
	money, err := models.NewMoneyFromString(amount, "USD")
	require.NoError(t, err)
	return models.TransactionRecord{
		ID:            id,
		User:          "alice",
		SourceEmailID: "seed-" + id,
		Merchant:      merchant,
		Amount:        money,
		Date:          date,
		Status:        models.StatusAccepted,
		CreatedAt:     date,
	}
}

func candidate(t *testing.T, emailID, merchant, amount string, date time.Time) models.ScoredCandidate {
	t.Helper()
	money, err := models.NewMoneyFromString(amount, "USD")
	require.NoError(t, err)
	return models.ScoredCandidate{
		ExtractionCandidate: models.ExtractionCandidate{
			SourceEmailID: emailID,
			Merchant:      &merchant,
			Amount:        &money,
			Date:          &date,
		},
		Confidence: 0.7,
	}
}

func seededDedup(t *testing.T, records ...models.TransactionRecord) (*Deduplicator, *store.MemoryLedger) {
	t.Helper()
	ledger := store.NewMemoryLedger()
	for _, rec := range records {
		inserted, err := ledger.Insert(context.Background(), rec)
		require.NoError(t, err)
		require.True(t, inserted)
	}
	return New(ledger, Options{}, nil), ledger
}

func TestCheckExactRepeatIsDuplicate(t *testing.T) {
	d, _ := seededDedup(t, acceptedRecord(t, "rec-1", "CoffeeCo", "4.50", day(2024, time.March, 10)))

	res, err := d.Check(context.Background(), "alice",
		candidate(t, "email-2", "CoffeeCo", "4.50", day(2024, time.March, 10)))

	require.NoError(t, err)
	assert.Equal(t, Duplicate, res.Verdict)
	require.NotNil(t, res.Original)
	assert.Equal(t, "rec-1", res.Original.ID)
}

func TestCheckMerchantSpellingVariantsMatch(t *testing.T) {
	d, _ := seededDedup(t, acceptedRecord(t, "rec-1", "CoffeeCo Inc.", "4.50", day(2024, time.March, 10)))

	res, err := d.Check(context.Background(), "alice",
		candidate(t, "email-2", "coffeeco", "4.50", day(2024, time.March, 10)))

	require.NoError(t, err)
	assert.Equal(t, Duplicate, res.Verdict)
}

func TestCheckDateTolerance(t *testing.T) {
	tests := []struct {
		name    string
		date    time.Time
		verdict Verdict
	}{
		{"same day", day(2024, time.March, 10), Duplicate},
		{"two days later", day(2024, time.March, 12), Duplicate},
		{"three days later", day(2024, time.March, 13), Duplicate},
		{"four days later", day(2024, time.March, 14), Distinct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := seededDedup(t, acceptedRecord(t, "rec-1", "CoffeeCo", "4.50", day(2024, time.March, 10)))

			res, err := d.Check(context.Background(), "alice",
				candidate(t, "email-2", "CoffeeCo", "4.50", tt.date))

			require.NoError(t, err)
			assert.Equal(t, tt.verdict, res.Verdict)
		})
	}
}

func TestCheckAmountEpsilon(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		verdict Verdict
	}{
		{"identical", "100.00", Duplicate},
		{"within epsilon", "100.01", Duplicate},
		{"within conflict band", "100.50", Conflict},
		{"band boundary", "101.00", Conflict},
		{"clearly different", "150.00", Distinct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := seededDedup(t, acceptedRecord(t, "rec-1", "PowerGrid", "100.00", day(2024, time.March, 10)))

			res, err := d.Check(context.Background(), "alice",
				candidate(t, "email-2", "PowerGrid", tt.amount, day(2024, time.March, 10)))

			require.NoError(t, err)
			assert.Equal(t, tt.verdict, res.Verdict)
		})
	}
}

func TestCheckOutsideWindowIsDistinct(t *testing.T) {
	// A record older than the trailing window is never consulted, even
	// with an identical key. The tolerance check would reject it anyway;
	// the window bounds the ledger scan.
	d, _ := seededDedup(t, acceptedRecord(t, "rec-1", "CoffeeCo", "4.50", day(2024, time.January, 1)))

	res, err := d.Check(context.Background(), "alice",
		candidate(t, "email-2", "CoffeeCo", "4.50", day(2024, time.March, 10)))

	require.NoError(t, err)
	assert.Equal(t, Distinct, res.Verdict)
}

func TestCheckDifferentUserIsDistinct(t *testing.T) {
	d, _ := seededDedup(t, acceptedRecord(t, "rec-1", "CoffeeCo", "4.50", day(2024, time.March, 10)))

	res, err := d.Check(context.Background(), "bob",
		candidate(t, "email-2", "CoffeeCo", "4.50", day(2024, time.March, 10)))

	require.NoError(t, err)
	assert.Equal(t, Distinct, res.Verdict)
}

func TestCheckDifferentCurrencyIsDistinct(t *testing.T) {
	d, _ := seededDedup(t, acceptedRecord(t, "rec-1", "CoffeeCo", "4.50", day(2024, time.March, 10)))

	chf, err := models.NewMoneyFromString("4.50", "CHF")
	require.NoError(t, err)
	cand := candidate(t, "email-2", "CoffeeCo", "4.50", day(2024, time.March, 10))
	cand.Amount = &chf

	res, err := d.Check(context.Background(), "alice", cand)

	require.NoError(t, err)
	assert.Equal(t, Distinct, res.Verdict)
}

func TestCheckIncompleteCandidateIsDistinct(t *testing.T) {
	d, _ := seededDedup(t)

	cand := candidate(t, "email-1", "CoffeeCo", "4.50", day(2024, time.March, 10))
	cand.Amount = nil

	res, err := d.Check(context.Background(), "alice", cand)

	require.NoError(t, err)
	assert.Equal(t, Distinct, res.Verdict)
}

func TestCheckNeedsReviewRecordsMatch(t *testing.T) {
	// A pending review row still anchors duplicates: if its copy were
	// inserted as distinct, accepting both would double-count the spend.
	rec := acceptedRecord(t, "rec-1", "CoffeeCo", "4.50", day(2024, time.March, 10))
	rec.Status = models.StatusNeedsReview
	d, _ := seededDedup(t, rec)

	res, err := d.Check(context.Background(), "alice",
		candidate(t, "email-2", "CoffeeCo", "4.50", day(2024, time.March, 10)))

	require.NoError(t, err)
	assert.Equal(t, Duplicate, res.Verdict)
	require.NotNil(t, res.Original)
	assert.Equal(t, "rec-1", res.Original.ID)
}

func TestCheckRejectedAndDuplicateRecordsDoNotMatch(t *testing.T) {
	rejected := acceptedRecord(t, "rec-1", "CoffeeCo", "4.50", day(2024, time.March, 10))
	rejected.Status = models.StatusRejected
	dup := acceptedRecord(t, "rec-2", "CoffeeCo", "4.50", day(2024, time.March, 10))
	dup.Status = models.StatusDuplicate
	d, _ := seededDedup(t, rejected, dup)

	res, err := d.Check(context.Background(), "alice",
		candidate(t, "email-3", "CoffeeCo", "4.50", day(2024, time.March, 10)))

	require.NoError(t, err)
	assert.Equal(t, Distinct, res.Verdict)
}

func TestCheckSubscriptionCycleIsDistinct(t *testing.T) {
	// Monthly renewals land outside the date tolerance and must not be
	// collapsed into one another.
	d, _ := seededDedup(t, acceptedRecord(t, "rec-1", "StreamFlix", "12.99", day(2024, time.February, 10)))

	res, err := d.Check(context.Background(), "alice",
		candidate(t, "email-2", "StreamFlix", "12.99", day(2024, time.March, 10)))

	require.NoError(t, err)
	assert.Equal(t, Distinct, res.Verdict)
}

func TestCheckTightenedOptions(t *testing.T) {
	ledger := store.NewMemoryLedger()
	rec := acceptedRecord(t, "rec-1", "CoffeeCo", "4.50", day(2024, time.March, 10))
	_, err := ledger.Insert(context.Background(), rec)
	require.NoError(t, err)

	d := New(ledger, Options{
		DateTolerance: 24 * time.Hour,
		AmountEpsilon: decimal.New(1, -3),
	}, nil)

	res, err := d.Check(context.Background(), "alice",
		candidate(t, "email-2", "CoffeeCo", "4.50", day(2024, time.March, 12)))
	require.NoError(t, err)
	assert.Equal(t, Distinct, res.Verdict, "two days exceeds a one-day tolerance")

	res, err = d.Check(context.Background(), "alice",
		candidate(t, "email-3", "CoffeeCo", "4.51", day(2024, time.March, 10)))
	require.NoError(t, err)
	assert.Equal(t, Conflict, res.Verdict, "a cent exceeds a millicent epsilon")
}

func TestConflictError(t *testing.T) {
	orig := acceptedRecord(t, "rec-1", "PowerGrid", "100.00", day(2024, time.March, 10))
	sc := candidate(t, "email-2", "PowerGrid", "100.50", day(2024, time.March, 10))

	err := ConflictError(sc, &orig)

	var conflict *pipeerror.DuplicateConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "email-2", conflict.EmailID)
	assert.Equal(t, "rec-1", conflict.ConflictID)
	assert.NotContains(t, err.Error(), "100", "error text must not leak amounts")
}
