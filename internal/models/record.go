package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the durable state of a transaction record.
type Status string

const (
	StatusAccepted    Status = "accepted"
	StatusNeedsReview Status = "needs_review"
	StatusDuplicate   Status = "duplicate"
	StatusRejected    Status = "rejected"
)

// ParseStatus maps a status name, as typed on the command line, to its
// Status value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusAccepted, StatusNeedsReview, StatusDuplicate, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Subtype refines a record's kind for analytics purposes.
type Subtype string

const (
	SubtypeOneOff       Subtype = "one_off"
	SubtypeSubscription Subtype = "subscription"
	SubtypeBill         Subtype = "bill"
	SubtypeInvestment   Subtype = "investment"
	SubtypeTravel       Subtype = "travel"
)

// TransactionRecord is the durable, accepted unit of the system.
//
// Records with StatusAccepted are immutable: a later email describing the
// same real-world event produces a new record cross-referenced through
// DuplicateOf, never an in-place update. Amounts are financial; silent
// mutation is unacceptable.
type TransactionRecord struct {
	ID            string    `json:"id" csv:"ID"`
	User          string    `json:"user" csv:"User"`
	SourceEmailID string    `json:"sourceEmailId" csv:"SourceEmailID"`
	Merchant      string    `json:"merchant" csv:"Merchant"`
	Amount        Money     `json:"amount" csv:"-"`
	Date          time.Time `json:"date" csv:"-"`
	Kind          Kind      `json:"kind" csv:"Kind"`
	Category      string    `json:"category" csv:"Category"`
	Subtype       Subtype   `json:"subtype,omitempty" csv:"Subtype"`
	Confidence    float64   `json:"confidence" csv:"Confidence"`
	Status        Status    `json:"status" csv:"Status"`
	DuplicateOf   string    `json:"duplicateOf,omitempty" csv:"DuplicateOf"`
	CreatedAt     time.Time `json:"createdAt" csv:"-"`
}

// NewTransactionRecord builds a record from a scored candidate. Merchant
// and date must already be resolved by the caller; missing date falls
// back to the email timestamp before this point.
func NewTransactionRecord(user string, sc ScoredCandidate) TransactionRecord {
	rec := TransactionRecord{
		ID:            uuid.New().String(),
		User:          user,
		SourceEmailID: sc.SourceEmailID,
		Kind:          sc.Kind,
		Confidence:    sc.Confidence,
		CreatedAt:     time.Now().UTC(),
	}
	if sc.Merchant != nil {
		rec.Merchant = *sc.Merchant
	}
	if sc.Amount != nil {
		rec.Amount = *sc.Amount
	}
	if sc.Date != nil {
		rec.Date = *sc.Date
	}
	return rec
}
