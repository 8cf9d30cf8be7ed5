// Package dedup guards the ledger against double-counting. A candidate
// matching an already-recorded transaction on merchant, amount, and
// nearby date is a re-occurrence of the same real-world event, not a
// second transaction.
package dedup

import (
	"context"
	"time"

	"fjacquet/mail-ledger/internal/dateutils"
	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/pipeerror"
	"fjacquet/mail-ledger/internal/store"
	"fjacquet/mail-ledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// Verdict classifies a candidate against the existing ledger.
type Verdict int

const (
	// Distinct means no prior record matches; the candidate is a new
	// transaction.
	Distinct Verdict = iota

	// Duplicate means a prior record describes the same event.
	Duplicate

	// Conflict means a prior record is close enough that silently
	// accepting either reading would be wrong; route to needs_review.
	Conflict
)

// Result is the deduplication outcome. Original is set for Duplicate
// and Conflict verdicts.
type Result struct {
	Verdict  Verdict
	Original *models.TransactionRecord
}

// Options tune the matching windows.
type Options struct {
	// Window is how far back the ledger is searched. Defaults to 35
	// days, covering billing-cycle jitter.
	Window time.Duration

	// DateTolerance is the maximum date distance for a duplicate match.
	DateTolerance time.Duration

	// AmountEpsilon is the amount distance below which two amounts are
	// the same.
	AmountEpsilon decimal.Decimal

	// ConflictBand is the relative amount difference (fraction of the
	// original) below which a same-merchant same-date near-miss is a
	// conflict rather than a distinct transaction.
	ConflictBand decimal.Decimal
}

// Deduplicator checks candidates against recent accepted and
// needs_review records.
type Deduplicator struct {
	ledger store.Ledger
	opts   Options
	logger logging.Logger
}

// New creates a deduplicator over the ledger.
func New(ledger store.Ledger, opts Options, logger logging.Logger) *Deduplicator {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if opts.Window <= 0 {
		opts.Window = 35 * 24 * time.Hour
	}
	if opts.DateTolerance <= 0 {
		opts.DateTolerance = 3 * 24 * time.Hour
	}
	if opts.AmountEpsilon.IsZero() {
		opts.AmountEpsilon = decimal.New(1, -2)
	}
	if opts.ConflictBand.IsZero() {
		opts.ConflictBand = decimal.New(1, -2) // 1%
	}
	return &Deduplicator{ledger: ledger, opts: opts, logger: logger}
}

// Check classifies a scored candidate against the user's ledger. Only
// candidates with a merchant, amount, and date participate; anything
// else is Distinct by construction (it cannot form a duplicate key).
func (d *Deduplicator) Check(ctx context.Context, user string, sc models.ScoredCandidate) (Result, error) {
	if sc.Merchant == nil || sc.Amount == nil || sc.Date == nil {
		return Result{Verdict: Distinct}, nil
	}

	merchantKey := textutils.NormalizeMerchant(*sc.Merchant)
	since := sc.Date.Add(-d.opts.Window)

	records, err := d.ledger.RecentMatchable(ctx, user, merchantKey, since)
	if err != nil {
		return Result{}, err
	}

	toleranceDays := int(d.opts.DateTolerance.Hours() / 24)

	for i := range records {
		rec := &records[i]
		dayDelta := dateutils.DayDelta(rec.Date, *sc.Date)
		if dayDelta > toleranceDays {
			continue
		}

		if sc.Amount.WithinEpsilon(rec.Amount, d.opts.AmountEpsilon) {
			d.logger.Debug("duplicate detected",
				logging.Field{Key: logging.FieldEmailID, Value: sc.SourceEmailID},
				logging.Field{Key: logging.FieldRecordID, Value: rec.ID})
			return Result{Verdict: Duplicate, Original: rec}, nil
		}

		if d.withinConflictBand(*sc.Amount, rec.Amount) {
			d.logger.Warn("near-duplicate conflict, routing to review",
				logging.Field{Key: logging.FieldEmailID, Value: sc.SourceEmailID},
				logging.Field{Key: logging.FieldRecordID, Value: rec.ID})
			return Result{Verdict: Conflict, Original: rec}, nil
		}

		// Same merchant and date but clearly different amount: a
		// distinct transaction (two purchases the same day).
	}

	return Result{Verdict: Distinct}, nil
}

// ConflictError builds the error describing a conflict result.
func ConflictError(sc models.ScoredCandidate, original *models.TransactionRecord) error {
	return &pipeerror.DuplicateConflictError{
		EmailID:    sc.SourceEmailID,
		ConflictID: original.ID,
	}
}

// withinConflictBand reports whether two same-currency amounts differ by
// less than the relative conflict band.
func (d *Deduplicator) withinConflictBand(a, b models.Money) bool {
	if a.Currency != b.Currency || b.Amount.IsZero() {
		return false
	}
	diff := a.Amount.Sub(b.Amount).Abs()
	return diff.Div(b.Amount.Abs()).LessThanOrEqual(d.opts.ConflictBand)
}
