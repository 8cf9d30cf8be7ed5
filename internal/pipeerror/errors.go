// Package pipeerror defines the error taxonomy for the extraction pipeline.
//
// Every failure mode a single email can hit maps to exactly one of these
// types. The batch runner relies on errors.As against them to decide
// whether an email is skipped, flagged, or routed to review; none of them
// ever aborts a batch. Error messages never contain transaction amounts.
package pipeerror

import "fmt"

// MalformedEmailError indicates an email that could not be normalized:
// it is missing both a body and a subject, or its payload could not be
// decoded. The email is recorded as skipped, never retried.
type MalformedEmailError struct {
	EmailID string
	Reason  string
}

func (e *MalformedEmailError) Error() string {
	return fmt.Sprintf("malformed email %s: %s", e.EmailID, e.Reason)
}

// ExtractionAmbiguousError indicates that neither extraction strategy
// found a coherent merchant/amount pair. The email is flagged as
// unprocessed with the reason; no candidate is produced.
type ExtractionAmbiguousError struct {
	EmailID string
	Reason  string
}

func (e *ExtractionAmbiguousError) Error() string {
	return fmt.Sprintf("extraction ambiguous for email %s: %s", e.EmailID, e.Reason)
}

// OracleUnavailableError indicates the extraction oracle timed out or
// failed after bounded retries. The pipeline degrades to rule-based-only
// results with a confidence penalty; it is not a hard failure.
type OracleUnavailableError struct {
	EmailID string
	Err     error
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("oracle unavailable for email %s: %v", e.EmailID, e.Err)
}

func (e *OracleUnavailableError) Unwrap() error {
	return e.Err
}

// DuplicateConflictError indicates an ambiguous near-duplicate: same
// merchant and date as an existing record, with an amount difference
// inside the conflict band. Routed to needs_review, never auto-resolved.
type DuplicateConflictError struct {
	EmailID    string
	ConflictID string
}

func (e *DuplicateConflictError) Error() string {
	return fmt.Sprintf("near-duplicate conflict for email %s with record %s", e.EmailID, e.ConflictID)
}

// StoreError wraps a persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
