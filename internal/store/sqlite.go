package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/pipeerror"
	"fjacquet/mail-ledger/internal/textutils"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	user            TEXT NOT NULL,
	source_email_id TEXT NOT NULL,
	merchant        TEXT NOT NULL,
	merchant_key    TEXT NOT NULL,
	amount          TEXT NOT NULL,
	currency        TEXT NOT NULL,
	date            TEXT NOT NULL,
	kind            TEXT NOT NULL,
	category        TEXT NOT NULL,
	subtype         TEXT NOT NULL DEFAULT '',
	confidence      REAL NOT NULL,
	status          TEXT NOT NULL,
	duplicate_of    TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_merchant
	ON transactions(user, merchant_key, date);

CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_identity
	ON transactions(user, source_email_id, merchant_key, amount, date);

CREATE TABLE IF NOT EXISTS checkpoints (
	user          TEXT PRIMARY KEY,
	internal_date INTEGER NOT NULL
);
`

const recordColumns = `id, user, source_email_id, merchant, merchant_key, amount,
	currency, date, kind, category, subtype, confidence, status, duplicate_of, created_at`

// SQLiteLedger is the durable Ledger backed by a SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (creating if needed) the ledger database at
// dbPath and applies the schema.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, &pipeerror.StoreError{Op: "create db directory", Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &pipeerror.StoreError{Op: "open sqlite database", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &pipeerror.StoreError{Op: "ping database", Err: err}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &pipeerror.StoreError{Op: "apply schema", Err: err}
	}

	log.Debugf("Opened ledger database at %s", dbPath)
	return &SQLiteLedger{db: db}, nil
}

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Insert stores a record, ignoring exact replays of the same source.
func (l *SQLiteLedger) Insert(ctx context.Context, rec models.TransactionRecord) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.User,
		rec.SourceEmailID,
		rec.Merchant,
		textutils.NormalizeMerchant(rec.Merchant),
		rec.Amount.Amount.String(),
		rec.Amount.Currency,
		rec.Date.Format(dateLayout),
		string(rec.Kind),
		rec.Category,
		string(rec.Subtype),
		rec.Confidence,
		string(rec.Status),
		rec.DuplicateOf,
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, &pipeerror.StoreError{Op: "insert transaction", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, &pipeerror.StoreError{Op: "insert transaction", Err: err}
	}
	return n > 0, nil
}

// RecentMatchable returns accepted and needs_review records for a
// merchant key dated on or after since.
func (l *SQLiteLedger) RecentMatchable(ctx context.Context, user, merchantKey string, since time.Time) ([]models.TransactionRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM transactions
		WHERE user = ? AND merchant_key = ? AND status IN (?, ?) AND date >= ?
		ORDER BY date ASC, created_at ASC`,
		user, merchantKey,
		string(models.StatusAccepted), string(models.StatusNeedsReview),
		since.Format(dateLayout))
	if err != nil {
		return nil, &pipeerror.StoreError{Op: "query recent matchable", Err: err}
	}
	return scanRecords(rows, "query recent matchable")
}

// AcceptedByMerchant returns all accepted records for a merchant key.
func (l *SQLiteLedger) AcceptedByMerchant(ctx context.Context, user, merchantKey string) ([]models.TransactionRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM transactions
		WHERE user = ? AND merchant_key = ? AND status = ?
		ORDER BY date ASC, created_at ASC`,
		user, merchantKey, string(models.StatusAccepted))
	if err != nil {
		return nil, &pipeerror.StoreError{Op: "query accepted by merchant", Err: err}
	}
	return scanRecords(rows, "query accepted by merchant")
}

// AllAccepted returns every accepted record for a user.
func (l *SQLiteLedger) AllAccepted(ctx context.Context, user string) ([]models.TransactionRecord, error) {
	return l.AllByStatus(ctx, user, models.StatusAccepted)
}

// AllByStatus returns every record for a user with the given status.
func (l *SQLiteLedger) AllByStatus(ctx context.Context, user string, status models.Status) ([]models.TransactionRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM transactions
		WHERE user = ? AND status = ?
		ORDER BY date ASC, created_at ASC`,
		user, string(status))
	if err != nil {
		return nil, &pipeerror.StoreError{Op: "query by status", Err: err}
	}
	return scanRecords(rows, "query by status")
}

// Users lists the users with at least one record.
func (l *SQLiteLedger) Users(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT DISTINCT user FROM transactions ORDER BY user`)
	if err != nil {
		return nil, &pipeerror.StoreError{Op: "query users", Err: err}
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, &pipeerror.StoreError{Op: "query users", Err: err}
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, &pipeerror.StoreError{Op: "query users", Err: err}
	}
	return users, nil
}

// LastProcessed returns the resume marker for a user, or 0 when the user
// has no checkpoint yet.
func (l *SQLiteLedger) LastProcessed(ctx context.Context, user string) (int64, error) {
	var marker int64
	err := l.db.QueryRowContext(ctx,
		`SELECT internal_date FROM checkpoints WHERE user = ?`, user).Scan(&marker)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &pipeerror.StoreError{Op: "query checkpoint", Err: err}
	}
	return marker, nil
}

// SetLastProcessed advances the resume marker for a user. The marker
// never moves backwards.
func (l *SQLiteLedger) SetLastProcessed(ctx context.Context, user string, marker int64) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO checkpoints (user, internal_date) VALUES (?, ?)
		ON CONFLICT(user) DO UPDATE SET internal_date = excluded.internal_date
		WHERE excluded.internal_date > checkpoints.internal_date`,
		user, marker)
	if err != nil {
		return &pipeerror.StoreError{Op: "set checkpoint", Err: err}
	}
	return nil
}

func scanRecords(rows *sql.Rows, op string) ([]models.TransactionRecord, error) {
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &pipeerror.StoreError{Op: op, Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &pipeerror.StoreError{Op: op, Err: err}
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (models.TransactionRecord, error) {
	var (
		rec                         models.TransactionRecord
		merchantKey                 string
		amount, currency            string
		date, kind, subtype, status string
		createdAt                   string
	)
	err := rows.Scan(&rec.ID, &rec.User, &rec.SourceEmailID, &rec.Merchant,
		&merchantKey, &amount, &currency, &date, &kind, &rec.Category,
		&subtype, &rec.Confidence, &status, &rec.DuplicateOf, &createdAt)
	if err != nil {
		return rec, err
	}

	money, err := models.NewMoneyFromString(amount, currency)
	if err != nil {
		return rec, fmt.Errorf("decode amount: %w", err)
	}
	rec.Amount = money

	rec.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return rec, fmt.Errorf("decode date: %w", err)
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return rec, fmt.Errorf("decode created_at: %w", err)
	}

	rec.Kind = models.Kind(kind)
	rec.Subtype = models.Subtype(subtype)
	rec.Status = models.Status(status)
	return rec, nil
}
