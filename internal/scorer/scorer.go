// Package scorer computes explainable confidence scores. The score is
// an additive accumulation of documented rules; every contribution is
// recorded as a reason, so there is never an opaque number.
package scorer

import (
	"strings"

	"fjacquet/mail-ledger/internal/extractor"
	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// Rule names attached to score reasons. Stable identifiers: tooling and
// tests match on them.
const (
	ReasonBaseComplete    = "base:complete"
	ReasonBasePartial     = "base:partial"
	ReasonMethodAgreement = "agreement:rule+oracle"
	ReasonKnownDomain     = "signal:known-domain"
	ReasonSubjectAmount   = "signal:subject-amount"
	ReasonOracleDegraded  = "penalty:oracle-degraded"
)

// Score deltas for each rule.
const (
	baseComplete   = 0.4
	basePartial    = 0.2
	agreementBonus = 0.3
	signalBonus    = 0.1
)

// Options tune the scorer.
type Options struct {
	// Threshold below which a candidate is routed to needs_review.
	Threshold float64

	// DegradePenalty is subtracted when the oracle was unavailable and
	// cross-validation could not happen.
	DegradePenalty float64

	// AmountEpsilon for comparing the subject amount with the extracted
	// amount.
	AmountEpsilon decimal.Decimal
}

// Scorer scores extraction candidates.
type Scorer struct {
	knownDomains map[string]bool
	opts         Options
	logger       logging.Logger
}

// New creates a scorer. knownDomains is the merchant registry of sender
// domains used as a corroborating signal.
func New(knownDomains []string, opts Options, logger logging.Logger) *Scorer {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.5
	}
	if opts.DegradePenalty <= 0 {
		opts.DegradePenalty = 0.1
	}
	if opts.AmountEpsilon.IsZero() {
		opts.AmountEpsilon = decimal.New(1, -2)
	}

	domains := make(map[string]bool, len(knownDomains))
	for _, d := range knownDomains {
		domains[strings.ToLower(d)] = true
	}
	return &Scorer{knownDomains: domains, opts: opts, logger: logger}
}

// Threshold returns the acceptance threshold in effect.
func (s *Scorer) Threshold() float64 {
	return s.opts.Threshold
}

// Score derives a ScoredCandidate. The input candidate is not mutated.
// The function is deterministic: identical inputs always produce the
// identical score and reason list, and adding a corroborating signal
// never lowers the result.
func (s *Scorer) Score(email models.NormalizedEmail, cand models.ExtractionCandidate) models.ScoredCandidate {
	var (
		confidence float64
		reasons    []models.ScoreReason
	)

	add := func(rule string, delta float64) {
		confidence += delta
		reasons = append(reasons, models.ScoreReason{Rule: rule, Delta: delta})
	}

	if fieldsComplete(cand) {
		add(ReasonBaseComplete, baseComplete)
	} else {
		add(ReasonBasePartial, basePartial)
	}

	if cand.Method == models.MethodHybrid {
		add(ReasonMethodAgreement, agreementBonus)
	}

	if s.domainMatchesMerchant(email, cand) {
		add(ReasonKnownDomain, signalBonus)
	}

	if s.subjectAmountMatches(email, cand) {
		add(ReasonSubjectAmount, signalBonus)
	}

	if cand.OracleDegraded {
		add(ReasonOracleDegraded, -s.opts.DegradePenalty)
	}

	confidence = clamp(confidence)

	s.logger.Debug("scored candidate",
		logging.Field{Key: logging.FieldEmailID, Value: cand.SourceEmailID},
		logging.Field{Key: "confidence", Value: confidence},
		logging.Field{Key: logging.FieldCount, Value: len(reasons)})

	return models.ScoredCandidate{
		ExtractionCandidate: cand,
		Confidence:          confidence,
		ScoreReasons:        reasons,
	}
}

// Accept reports whether a scored candidate clears the acceptance
// threshold. Below-threshold candidates go to needs_review, not
// rejected: low confidence is not proof of falsity.
func (s *Scorer) Accept(sc models.ScoredCandidate) bool {
	return sc.Confidence >= s.opts.Threshold
}

func fieldsComplete(cand models.ExtractionCandidate) bool {
	return cand.Merchant != nil && cand.Amount != nil && cand.Date != nil
}

// domainMatchesMerchant checks the sender domain against the known
// merchant registry, and also accepts a domain that embeds the
// normalized merchant name (receipts@coffeeco.com for "CoffeeCo").
func (s *Scorer) domainMatchesMerchant(email models.NormalizedEmail, cand models.ExtractionCandidate) bool {
	domain := textutils.SenderDomain(email.Sender)
	if domain == "" {
		return false
	}
	if s.knownDomains[domain] {
		return true
	}

	if cand.Merchant == nil {
		return false
	}
	key := strings.ReplaceAll(textutils.NormalizeMerchant(*cand.Merchant), " ", "")
	if key == "" {
		return false
	}
	label, _, _ := strings.Cut(domain, ".")
	return label == key
}

// subjectAmountMatches checks whether the subject carries an explicit
// currency amount equal to the extracted amount.
func (s *Scorer) subjectAmountMatches(email models.NormalizedEmail, cand models.ExtractionCandidate) bool {
	if cand.Amount == nil {
		return false
	}
	for _, m := range extractor.FindAmountsInText(email.Subject) {
		if cand.Amount.WithinEpsilon(m, s.opts.AmountEpsilon) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
