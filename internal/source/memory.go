package source

import (
	"context"
	"sort"

	"fjacquet/mail-ledger/internal/models"
)

// MemorySource is an in-memory EmailSource used in tests.
type MemorySource struct {
	ByUser map[string][]models.RawEmail
	Err    error
}

// Users lists the configured mailbox owners in sorted order.
func (s *MemorySource) Users(_ context.Context) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var users []string
	for user := range s.ByUser {
		users = append(users, user)
	}
	sort.Strings(users)
	return users, nil
}

// Emails returns a user's emails newer than the marker, oldest first.
func (s *MemorySource) Emails(_ context.Context, user string, after int64) ([]models.RawEmail, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.RawEmail
	for _, email := range s.ByUser[user] {
		if email.InternalDate > after {
			out = append(out, email)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].InternalDate < out[j].InternalDate
	})
	return out, nil
}
