package models

import "time"

// Kind classifies what a candidate transaction appears to be.
type Kind string

const (
	KindPurchase     Kind = "purchase"
	KindIncome       Kind = "income"
	KindSubscription Kind = "subscription"
	KindBill         Kind = "bill"
	KindInvestment   Kind = "investment"
	KindTravel       Kind = "travel"
	KindUnknown      Kind = "unknown"
)

// Method records which extraction strategy produced a field set.
type Method string

const (
	MethodRule   Method = "rule"
	MethodOracle Method = "oracle"
	MethodHybrid Method = "hybrid"
)

// FieldSet is one strategy's view of the transaction fields in an email.
// Kept per method for audit: when strategies disagree, both survive here
// and the scorer adjudicates rather than one being silently dropped.
type FieldSet struct {
	Merchant *string    `json:"merchant,omitempty"`
	Amount   *Money     `json:"amount,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	Kind     Kind       `json:"kind"`
}

// Complete reports whether merchant, amount, and date are all present.
func (f FieldSet) Complete() bool {
	return f.Merchant != nil && f.Amount != nil && f.Date != nil
}

// ExtractionCandidate is a potential transaction extracted from one
// email. An email may yield several (combined statements). Immutable
// after the scorer runs; the scorer derives a ScoredCandidate instead of
// mutating this.
type ExtractionCandidate struct {
	SourceEmailID string              `json:"sourceEmailId"`
	Merchant      *string             `json:"merchant,omitempty"`
	Amount        *Money              `json:"amount,omitempty"`
	Date          *time.Time          `json:"date,omitempty"` // defaults to email SentAt
	Kind          Kind                `json:"kind"`
	Method        Method              `json:"extractionMethod"`
	RawFields     map[Method]FieldSet `json:"rawFieldsByMethod"`

	// OracleDegraded marks candidates produced while the oracle was
	// unavailable, so the scorer can apply the cross-validation penalty.
	OracleDegraded bool `json:"oracleDegraded,omitempty"`
}

// ScoreReason is one contributing factor of a confidence score. The
// ordered list of reasons fully explains the final number; there are no
// opaque contributions.
type ScoreReason struct {
	Rule  string  `json:"rule"`
	Delta float64 `json:"delta"`
}

// ScoredCandidate is an ExtractionCandidate plus its confidence.
type ScoredCandidate struct {
	ExtractionCandidate
	Confidence   float64       `json:"confidence"`
	ScoreReasons []ScoreReason `json:"scoreReasons"`
}
