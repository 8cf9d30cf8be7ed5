// Package source supplies raw emails to the pipeline. A source hands
// back provider-shaped payloads in ascending InternalDate order so the
// pipeline's per-user resume marker stays meaningful.
package source

import (
	"context"

	"fjacquet/mail-ledger/internal/models"
)

// EmailSource yields emails for processing.
type EmailSource interface {
	// Users lists the mailbox owners available from this source.
	Users(ctx context.Context) ([]string, error)

	// Emails returns a user's emails with InternalDate strictly greater
	// than after, in ascending InternalDate order. Pass 0 for the full
	// mailbox.
	Emails(ctx context.Context, user string, after int64) ([]models.RawEmail, error)
}
