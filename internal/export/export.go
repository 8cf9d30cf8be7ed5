// Package export writes ledger records to CSV for use in spreadsheets
// and budgeting tools.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/store"

	"github.com/gocarina/gocsv"
)

// Options control the CSV shape.
type Options struct {
	// Delimiter is the column separator. Zero means comma.
	Delimiter rune

	// IncludeHeaders writes the header row.
	IncludeHeaders bool

	// Statuses selects which records to export. Empty means accepted
	// only.
	Statuses []models.Status
}

// row is the flat CSV shape of a transaction record. Amounts are fixed
// to two decimals so spreadsheet imports line up.
type row struct {
	ID            string `csv:"ID"`
	User          string `csv:"User"`
	Date          string `csv:"Date"`
	Merchant      string `csv:"Merchant"`
	Amount        string `csv:"Amount"`
	Currency      string `csv:"Currency"`
	Kind          string `csv:"Kind"`
	Category      string `csv:"Category"`
	Subtype       string `csv:"Subtype"`
	Confidence    string `csv:"Confidence"`
	Status        string `csv:"Status"`
	DuplicateOf   string `csv:"DuplicateOf"`
	SourceEmailID string `csv:"SourceEmailID"`
}

func toRow(rec models.TransactionRecord) row {
	return row{
		ID:            rec.ID,
		User:          rec.User,
		Date:          rec.Date.Format("2006-01-02"),
		Merchant:      rec.Merchant,
		Amount:        rec.Amount.Amount.StringFixed(2),
		Currency:      rec.Amount.Currency,
		Kind:          string(rec.Kind),
		Category:      rec.Category,
		Subtype:       string(rec.Subtype),
		Confidence:    fmt.Sprintf("%.2f", rec.Confidence),
		Status:        string(rec.Status),
		DuplicateOf:   rec.DuplicateOf,
		SourceEmailID: rec.SourceEmailID,
	}
}

// Exporter pulls records from the ledger and renders them as CSV.
type Exporter struct {
	ledger store.Ledger
	opts   Options
	logger logging.Logger
}

// New creates an exporter over the ledger.
func New(ledger store.Ledger, opts Options, logger logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if len(opts.Statuses) == 0 {
		opts.Statuses = []models.Status{models.StatusAccepted}
	}
	return &Exporter{ledger: ledger, opts: opts, logger: logger}
}

// Write renders a user's records to the writer.
func (e *Exporter) Write(ctx context.Context, user string, w io.Writer) error {
	var rows []row
	for _, status := range e.opts.Statuses {
		records, err := e.ledger.AllByStatus(ctx, user, status)
		if err != nil {
			return err
		}
		for _, rec := range records {
			rows = append(rows, toRow(rec))
		}
	}

	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = e.opts.Delimiter
	safe := gocsv.NewSafeCSVWriter(csvWriter)

	var err error
	if e.opts.IncludeHeaders {
		err = gocsv.MarshalCSV(&rows, safe)
	} else {
		err = gocsv.MarshalCSVWithoutHeaders(&rows, safe)
	}
	if err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}

	e.logger.Info("exported records",
		logging.Field{Key: logging.FieldUser, Value: user},
		logging.Field{Key: logging.FieldCount, Value: len(rows)})
	return nil
}

// WriteFile renders a user's records to a file, creating parent
// directories as needed.
func (e *Exporter) WriteFile(ctx context.Context, user, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	file, err := os.Create(path) // #nosec G304 - user-provided output path
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			e.logger.WithError(err).Warn("failed to close file")
		}
	}()

	return e.Write(ctx, user, file)
}
