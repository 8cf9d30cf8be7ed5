package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
)

// mailboxExport is the on-disk shape of a JSON mailbox export: one
// entry per user, each with the provider-shaped email payloads.
type mailboxExport struct {
	Mailboxes []mailboxEntry `json:"mailboxes"`
}

type mailboxEntry struct {
	User   string            `json:"user"`
	Emails []models.RawEmail `json:"emails"`
}

// FileSource reads emails from a JSON mailbox export on disk. The file
// is parsed once on creation; emails are held sorted per user.
type FileSource struct {
	byUser map[string][]models.RawEmail
	users  []string
	logger logging.Logger
}

// NewFileSource parses a mailbox export file.
func NewFileSource(path string, logger logging.Logger) (*FileSource, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}

	data, err := os.ReadFile(path) // #nosec G304 - user-provided input file
	if err != nil {
		return nil, fmt.Errorf("reading mailbox export: %w", err)
	}

	var export mailboxExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parsing mailbox export %s: %w", path, err)
	}

	s := &FileSource{byUser: make(map[string][]models.RawEmail), logger: logger}
	for _, entry := range export.Mailboxes {
		if entry.User == "" {
			logger.Warn("skipping mailbox entry without user",
				logging.Field{Key: logging.FieldInputFile, Value: path})
			continue
		}
		emails := append(s.byUser[entry.User], entry.Emails...)
		sort.SliceStable(emails, func(i, j int) bool {
			return emails[i].InternalDate < emails[j].InternalDate
		})
		s.byUser[entry.User] = emails
	}
	for user := range s.byUser {
		s.users = append(s.users, user)
	}
	sort.Strings(s.users)

	logger.Debug("loaded mailbox export",
		logging.Field{Key: logging.FieldInputFile, Value: path},
		logging.Field{Key: logging.FieldCount, Value: len(s.users)})
	return s, nil
}

// Users lists the export's mailbox owners in sorted order.
func (s *FileSource) Users(_ context.Context) ([]string, error) {
	return append([]string(nil), s.users...), nil
}

// Emails returns a user's emails newer than the marker, oldest first.
func (s *FileSource) Emails(_ context.Context, user string, after int64) ([]models.RawEmail, error) {
	all := s.byUser[user]
	idx := sort.Search(len(all), func(i int) bool {
		return all[i].InternalDate > after
	})
	return append([]models.RawEmail(nil), all[idx:]...), nil
}
