// Package extractor turns filtered emails into transaction candidates.
// Two independent strategies run per email, a pattern library and the
// external oracle, and both results are kept for audit. Agreement
// upgrades a candidate to the hybrid method; disagreement is recorded,
// never silently resolved.
package extractor

import (
	"context"
	"time"

	"fjacquet/mail-ledger/internal/dateutils"
	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/oracle"
	"fjacquet/mail-ledger/internal/pipeerror"
	"fjacquet/mail-ledger/internal/textutils"

	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"
)

// Options tune the oracle call; zero values fall back to defaults.
type Options struct {
	OracleTimeout time.Duration
	MaxRetries    int
	AmountEpsilon decimal.Decimal
}

// Extractor runs the two extraction strategies and merges their output.
type Extractor struct {
	oracle  oracle.Oracle
	timeout time.Duration
	retries int
	epsilon decimal.Decimal
	logger  logging.Logger
}

// New creates an extractor. A nil oracle disables the oracle strategy:
// candidates are rule-only but not degraded, since nothing failed.
// Degradation is reserved for a configured oracle that could not answer.
func New(orc oracle.Oracle, opts Options, logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = 20 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.AmountEpsilon.IsZero() {
		opts.AmountEpsilon = decimal.New(1, -2)
	}
	return &Extractor{
		oracle:  orc,
		timeout: opts.OracleTimeout,
		retries: opts.MaxRetries,
		epsilon: opts.AmountEpsilon,
		logger:  logger,
	}
}

// Extract produces zero or more candidates for one email. When neither
// strategy finds a coherent amount or merchant the email fails with
// ExtractionAmbiguousError. Oracle failure is not fatal: the rule result
// survives with OracleDegraded set so the scorer can apply its penalty.
func (e *Extractor) Extract(ctx context.Context, email models.NormalizedEmail) ([]models.ExtractionCandidate, error) {
	ruleSets := e.ruleExtract(email)

	oracleSets, degraded := e.oracleExtract(ctx, email)

	candidates := e.merge(email, ruleSets, oracleSets, degraded)
	if len(candidates) == 0 {
		return nil, &pipeerror.ExtractionAmbiguousError{
			EmailID: email.ID,
			Reason:  "no coherent amount or merchant found by either strategy",
		}
	}

	e.logger.Debug("extraction complete",
		logging.Field{Key: logging.FieldEmailID, Value: email.ID},
		logging.Field{Key: logging.FieldCount, Value: len(candidates)},
		logging.Field{Key: logging.FieldOracle, Value: e.oracle != nil && !degraded})
	return candidates, nil
}

// ruleExtract is the pattern-library strategy. Each amount found in the
// text becomes one field set; a statement email with several amounts
// yields several sets.
func (e *Extractor) ruleExtract(email models.NormalizedEmail) []models.FieldSet {
	text := email.Subject + "\n" + email.PlainText
	matches := findAmounts(text)
	if len(matches) == 0 {
		return nil
	}

	globalMerchant := ruleMerchant(email)
	globalDate, haveGlobalDate := dateutils.FindInText(text)
	kind := detectKind(text)

	var sets []models.FieldSet
	for _, m := range matches {
		fs := models.FieldSet{Kind: kind}

		amount := m.money
		fs.Amount = &amount

		merchant := globalMerchant
		if len(matches) > 1 {
			// For a multi-amount statement, the line around each amount
			// names the line's own merchant more often than the subject.
			if lineM := textutils.MerchantFromSubject(lineAround(text, m.start, m.end)); lineM != "" {
				merchant = lineM
			}
		}
		if merchant != "" {
			fs.Merchant = &merchant
		}

		if len(matches) > 1 {
			if lineDate, ok := dateutils.FindInText(lineAround(text, m.start, m.end)); ok {
				fs.Date = &lineDate
			}
		}
		if fs.Date == nil && haveGlobalDate {
			date := globalDate
			fs.Date = &date
		}

		sets = append(sets, fs)
	}
	return sets
}

// oracleExtract calls the oracle with a timeout and bounded retries.
// Every attempt's result is re-validated; results are never assumed
// identical across retries. Returns degraded=true when the oracle could
// not be used.
func (e *Extractor) oracleExtract(ctx context.Context, email models.NormalizedEmail) ([]models.FieldSet, bool) {
	if e.oracle == nil {
		return nil, false
	}

	var sets []models.FieldSet
	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			result, err := e.oracle.Extract(callCtx, email)
			if err != nil {
				return err
			}
			sets = result
			return nil
		},
		retry.Attempts(uint(e.retries+1)),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil
		}),
	)
	if err != nil {
		e.logger.WithError(err).Warn("oracle unavailable, degrading to rule-only extraction",
			logging.Field{Key: logging.FieldEmailID, Value: email.ID},
			logging.Field{Key: logging.FieldAttempt, Value: e.retries + 1})
		return nil, true
	}
	return sets, false
}

// merge pairs rule and oracle field sets into candidates. Pairing is by
// amount within epsilon; a pair that also agrees on the normalized
// merchant becomes hybrid. A pair that agrees on amount but not merchant
// stays a conflict: one candidate, both field sets retained, no hybrid
// upgrade. Unpaired sets become single-method candidates.
func (e *Extractor) merge(email models.NormalizedEmail, ruleSets, oracleSets []models.FieldSet, degraded bool) []models.ExtractionCandidate {
	var candidates []models.ExtractionCandidate
	usedOracle := make([]bool, len(oracleSets))

	for _, rs := range ruleSets {
		paired := false
		for i, os := range oracleSets {
			if usedOracle[i] || !amountsAgree(rs, os, e.epsilon) {
				continue
			}
			usedOracle[i] = true
			paired = true

			method := models.MethodOracle
			if merchantsAgree(rs, os) {
				method = models.MethodHybrid
			}
			candidates = append(candidates, e.finalize(email, combine(rs, os), method, map[models.Method]models.FieldSet{
				models.MethodRule:   rs,
				models.MethodOracle: os,
			}, degraded))
			break
		}
		if !paired {
			raw := map[models.Method]models.FieldSet{models.MethodRule: rs}
			candidates = append(candidates, e.finalize(email, rs, models.MethodRule, raw, degraded))
		}
	}

	for i, os := range oracleSets {
		if usedOracle[i] {
			continue
		}
		raw := map[models.Method]models.FieldSet{models.MethodOracle: os}
		candidates = append(candidates, e.finalize(email, os, models.MethodOracle, raw, degraded))
	}

	return candidates
}

// combine merges an agreeing pair into one field set: the oracle's
// merchant naming is cleaner, the rule amount is verbatim from the text.
func combine(rs, os models.FieldSet) models.FieldSet {
	merged := models.FieldSet{Kind: rs.Kind}
	if merged.Kind == models.KindUnknown {
		merged.Kind = os.Kind
	}

	merged.Merchant = os.Merchant
	if merged.Merchant == nil {
		merged.Merchant = rs.Merchant
	}

	merged.Amount = rs.Amount
	if merged.Amount == nil {
		merged.Amount = os.Amount
	}

	merged.Date = rs.Date
	if merged.Date == nil {
		merged.Date = os.Date
	}
	return merged
}

func (e *Extractor) finalize(email models.NormalizedEmail, fs models.FieldSet, method models.Method, raw map[models.Method]models.FieldSet, degraded bool) models.ExtractionCandidate {
	cand := models.ExtractionCandidate{
		SourceEmailID:  email.ID,
		Merchant:       fs.Merchant,
		Amount:         fs.Amount,
		Date:           fs.Date,
		Kind:           fs.Kind,
		Method:         method,
		RawFields:      raw,
		OracleDegraded: degraded,
	}
	if cand.Date == nil {
		date := email.SentAt.UTC().Truncate(24 * time.Hour)
		cand.Date = &date
	}
	return cand
}

func amountsAgree(a, b models.FieldSet, epsilon decimal.Decimal) bool {
	if a.Amount == nil || b.Amount == nil {
		return false
	}
	return a.Amount.WithinEpsilon(*b.Amount, epsilon)
}

func merchantsAgree(a, b models.FieldSet) bool {
	if a.Merchant == nil || b.Merchant == nil {
		return false
	}
	return textutils.NormalizeMerchant(*a.Merchant) == textutils.NormalizeMerchant(*b.Merchant)
}
