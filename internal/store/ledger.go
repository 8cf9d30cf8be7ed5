package store

import (
	"context"
	"time"

	"fjacquet/mail-ledger/internal/models"
)

// Ledger is the persistent record of processed transactions plus the
// per-user resume marker. Insert is idempotent: replaying the same
// source email yields no second row.
type Ledger interface {
	// Insert stores a finalized record. Returns true when the record was
	// new and false when an identical record (same user, source email,
	// merchant key, amount, date) already existed.
	Insert(ctx context.Context, rec models.TransactionRecord) (bool, error)

	// RecentMatchable returns accepted and needs_review records for a
	// user and normalized merchant key dated on or after since, ordered
	// by date ascending. Both statuses participate in duplicate
	// detection: a pending review row still describes a real-world
	// event, and accepting it later must not double-count.
	RecentMatchable(ctx context.Context, user, merchantKey string, since time.Time) ([]models.TransactionRecord, error)

	// AcceptedByMerchant returns all accepted records for a user and
	// normalized merchant key, ordered by date ascending.
	AcceptedByMerchant(ctx context.Context, user, merchantKey string) ([]models.TransactionRecord, error)

	// AllAccepted returns every accepted record for a user, ordered by
	// date ascending.
	AllAccepted(ctx context.Context, user string) ([]models.TransactionRecord, error)

	// AllByStatus returns every record for a user with the given status.
	AllByStatus(ctx context.Context, user string, status models.Status) ([]models.TransactionRecord, error)

	// Users lists the users with at least one record.
	Users(ctx context.Context) ([]string, error)

	// LastProcessed returns the resume marker for a user: the internal
	// date of the newest email already processed, or 0 when none.
	LastProcessed(ctx context.Context, user string) (int64, error)

	// SetLastProcessed advances the resume marker for a user.
	SetLastProcessed(ctx context.Context, user string, marker int64) error

	Close() error
}
