// Package oracle wraps the external extraction service behind a small
// capability interface. The service is untrusted: every response is
// schema-validated and fields outside expected type or range are
// dropped rather than believed.
package oracle

import (
	"context"

	"fjacquet/mail-ledger/internal/models"
)

// Oracle extracts structured transaction fields from email text. Each
// call is stateless; implementations must be safe for concurrent use.
type Oracle interface {
	// Extract returns zero or more validated field sets for the email.
	// An unreachable or timed-out service surfaces as
	// OracleUnavailableError so callers can degrade to rule-only mode.
	Extract(ctx context.Context, email models.NormalizedEmail) ([]models.FieldSet, error)
}
