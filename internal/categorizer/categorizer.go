// Package categorizer assigns each transaction record a category from
// the fixed taxonomy and a subtype for analytics. Categorization runs
// as a strategy chain: merchant registry mapping first, keyword rules
// second, the extracted kind third, CategoryOther last. Matches from
// later strategies can be learned back into the registry so repeat
// merchants resolve directly.
package categorizer

import (
	"context"
	"time"

	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/store"
	"fjacquet/mail-ledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// Options tune categorization behavior.
type Options struct {
	// AutoLearn writes keyword and kind matches back into the merchant
	// registry.
	AutoLearn bool

	// AmountEpsilon bounds the amount drift allowed between renewals
	// when detecting subscription cadence.
	AmountEpsilon decimal.Decimal

	// CadenceToleranceDays is the allowed slack around the weekly,
	// monthly, and annual renewal intervals.
	CadenceToleranceDays int

	// MinPriorRecords is how many earlier accepted records a merchant
	// needs before a cadence can be recognized.
	MinPriorRecords int
}

// Categorizer runs the strategy chain and detects subscription cadence
// from the user's ledger history.
type Categorizer struct {
	mapping    *MappingStrategy
	strategies []Strategy
	ledger     store.Ledger
	opts       Options
	logger     logging.Logger
}

// New builds a categorizer over the registry and ledger.
func New(registry store.Registry, ledger store.Ledger, opts Options, logger logging.Logger) *Categorizer {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if opts.AmountEpsilon.IsZero() {
		opts.AmountEpsilon = decimal.New(1, -2)
	}
	if opts.CadenceToleranceDays <= 0 {
		opts.CadenceToleranceDays = 3
	}
	if opts.MinPriorRecords <= 0 {
		opts.MinPriorRecords = 2
	}

	mapping := NewMappingStrategy(registry, logger)
	return &Categorizer{
		mapping: mapping,
		strategies: []Strategy{
			mapping,
			NewKeywordStrategy(registry, logger),
			KindStrategy{},
		},
		ledger: ledger,
		opts:   opts,
		logger: logger,
	}
}

// Categorize fills in the record's Category and Subtype. The record is
// returned with both set; the input is not mutated. Earlier records for
// the same merchant are never touched, so a merchant's history only
// influences records from the point a cadence becomes visible.
func (c *Categorizer) Categorize(ctx context.Context, rec models.TransactionRecord) (models.TransactionRecord, error) {
	category := models.CategoryOther
	matched := ""
	for _, s := range c.strategies {
		if got, found := s.Categorize(rec); found {
			category, matched = got, s.Name()
			break
		}
	}
	rec.Category = category

	if matched != "" && matched != c.mapping.Name() && c.opts.AutoLearn {
		c.mapping.Learn(rec.Merchant, category)
	}
	if matched == "" {
		c.logger.Debug("no strategy matched, using fallback",
			logging.Field{Key: logging.FieldMerchant, Value: rec.Merchant})
	}

	subtype, err := c.subtype(ctx, rec)
	if err != nil {
		return rec, err
	}
	rec.Subtype = subtype
	return rec, nil
}

// Flush persists any auto-learned merchant mappings.
func (c *Categorizer) Flush() error {
	return c.mapping.Save()
}

// subtype derives the record's subtype from its kind, promoting to
// subscription when the merchant's ledger history shows a renewal
// cadence.
func (c *Categorizer) subtype(ctx context.Context, rec models.TransactionRecord) (models.Subtype, error) {
	base := models.SubtypeOneOff
	switch rec.Kind {
	case models.KindSubscription:
		return models.SubtypeSubscription, nil
	case models.KindBill:
		base = models.SubtypeBill
	case models.KindInvestment:
		base = models.SubtypeInvestment
	case models.KindTravel:
		base = models.SubtypeTravel
	case models.KindIncome:
		return models.SubtypeOneOff, nil
	}

	isSub, err := c.hasCadence(ctx, rec)
	if err != nil {
		return base, err
	}
	if isSub {
		return models.SubtypeSubscription, nil
	}
	return base, nil
}

// hasCadence reports whether enough prior accepted records for this
// merchant recur at a near-identical amount on a weekly, monthly, or
// annual interval.
func (c *Categorizer) hasCadence(ctx context.Context, rec models.TransactionRecord) (bool, error) {
	merchantKey := textutils.NormalizeMerchant(rec.Merchant)
	if merchantKey == "" {
		return false, nil
	}

	history, err := c.ledger.AcceptedByMerchant(ctx, rec.User, merchantKey)
	if err != nil {
		return false, err
	}

	// Only records dated before this one count: recognizing a cadence
	// now must not depend on transactions that have not happened yet.
	var dates []time.Time
	for _, prior := range history {
		if !prior.Date.Before(rec.Date) {
			continue
		}
		if !prior.Amount.WithinEpsilon(rec.Amount, c.opts.AmountEpsilon) {
			continue
		}
		dates = append(dates, prior.Date)
	}
	if len(dates) < c.opts.MinPriorRecords {
		return false, nil
	}

	dates = append(dates, rec.Date)
	for i := 1; i < len(dates); i++ {
		if !c.cadenceInterval(int(dates[i].Sub(dates[i-1]).Hours() / 24)) {
			return false, nil
		}
	}

	c.logger.Debug("subscription cadence detected",
		logging.Field{Key: logging.FieldMerchant, Value: merchantKey},
		logging.Field{Key: logging.FieldCount, Value: len(dates)})
	return true, nil
}

// cadenceInterval reports whether a gap in days looks like a weekly,
// monthly, or annual renewal. Monthly spans 28 to 31 days before the
// tolerance is applied.
func (c *Categorizer) cadenceInterval(days int) bool {
	tol := c.opts.CadenceToleranceDays
	switch {
	case days >= 7-tol && days <= 7+tol:
		return true
	case days >= 28-tol && days <= 31+tol:
		return true
	case days >= 365-tol && days <= 366+tol:
		return true
	}
	return false
}
