package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/textutils"
)

// MemoryLedger is an in-memory Ledger used in tests and dry runs.
type MemoryLedger struct {
	mu          sync.Mutex
	records     []models.TransactionRecord
	identities  map[string]bool
	checkpoints map[string]int64
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		identities:  make(map[string]bool),
		checkpoints: make(map[string]int64),
	}
}

func identityKey(rec models.TransactionRecord) string {
	return rec.User + "|" + rec.SourceEmailID + "|" +
		textutils.NormalizeMerchant(rec.Merchant) + "|" +
		rec.Amount.Amount.String() + "|" + rec.Date.Format(dateLayout)
}

// Insert stores a record, ignoring exact replays of the same source.
func (l *MemoryLedger) Insert(_ context.Context, rec models.TransactionRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := identityKey(rec)
	if l.identities[key] {
		return false, nil
	}
	l.identities[key] = true
	l.records = append(l.records, rec)
	return true, nil
}

func (l *MemoryLedger) selectRecords(match func(models.TransactionRecord) bool) []models.TransactionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.TransactionRecord
	for _, rec := range l.records {
		if match(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RecentMatchable returns accepted and needs_review records for a
// merchant key dated on or after since.
func (l *MemoryLedger) RecentMatchable(_ context.Context, user, merchantKey string, since time.Time) ([]models.TransactionRecord, error) {
	cutoff := since.Truncate(24 * time.Hour)
	return l.selectRecords(func(rec models.TransactionRecord) bool {
		return rec.User == user &&
			(rec.Status == models.StatusAccepted || rec.Status == models.StatusNeedsReview) &&
			textutils.NormalizeMerchant(rec.Merchant) == merchantKey &&
			!rec.Date.Before(cutoff)
	}), nil
}

// AcceptedByMerchant returns all accepted records for a merchant key.
func (l *MemoryLedger) AcceptedByMerchant(_ context.Context, user, merchantKey string) ([]models.TransactionRecord, error) {
	return l.selectRecords(func(rec models.TransactionRecord) bool {
		return rec.User == user &&
			rec.Status == models.StatusAccepted &&
			textutils.NormalizeMerchant(rec.Merchant) == merchantKey
	}), nil
}

// AllAccepted returns every accepted record for a user.
func (l *MemoryLedger) AllAccepted(ctx context.Context, user string) ([]models.TransactionRecord, error) {
	return l.AllByStatus(ctx, user, models.StatusAccepted)
}

// AllByStatus returns every record for a user with the given status.
func (l *MemoryLedger) AllByStatus(_ context.Context, user string, status models.Status) ([]models.TransactionRecord, error) {
	return l.selectRecords(func(rec models.TransactionRecord) bool {
		return rec.User == user && rec.Status == status
	}), nil
}

// Users lists the users with at least one record.
func (l *MemoryLedger) Users(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool)
	var users []string
	for _, rec := range l.records {
		if !seen[rec.User] {
			seen[rec.User] = true
			users = append(users, rec.User)
		}
	}
	sort.Strings(users)
	return users, nil
}

// LastProcessed returns the resume marker for a user, or 0 when unset.
func (l *MemoryLedger) LastProcessed(_ context.Context, user string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkpoints[user], nil
}

// SetLastProcessed advances the resume marker. The marker never moves
// backwards.
func (l *MemoryLedger) SetLastProcessed(_ context.Context, user string, marker int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if marker > l.checkpoints[user] {
		l.checkpoints[user] = marker
	}
	return nil
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error {
	return nil
}
