package oracle

import (
	"context"
	"sync/atomic"
	"time"

	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/pipeerror"
)

// Stub is a deterministic Oracle used in tests and when no API key is
// configured. The same email ID always yields the same result.
type Stub struct {
	// Fields maps email ID to the field sets the stub returns.
	Fields map[string][]models.FieldSet

	// Err, when set, is returned for every call.
	Err error

	// Delay, when positive, makes the stub block so timeout handling can
	// be exercised.
	Delay time.Duration

	calls atomic.Int64
}

// Calls reports how many times Extract has been invoked.
func (s *Stub) Calls() int {
	return int(s.calls.Load())
}

// Extract returns the configured field sets for the email.
func (s *Stub) Extract(ctx context.Context, email models.NormalizedEmail) ([]models.FieldSet, error) {
	s.calls.Add(1)

	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &pipeerror.OracleUnavailableError{EmailID: email.ID, Err: ctx.Err()}
		case <-time.After(s.Delay):
		}
	}

	if s.Err != nil {
		return nil, s.Err
	}
	return s.Fields[email.ID], nil
}
