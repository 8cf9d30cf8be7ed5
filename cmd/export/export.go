// Package export handles the CSV export command.
package export

import (
	"fjacquet/mail-ledger/cmd/root"
	"fjacquet/mail-ledger/internal/models"

	"github.com/spf13/cobra"
)

var statusNames []string

// Cmd represents the export command.
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export ledger records to CSV",
	Long: `Export a user's transaction records to a CSV file for use in
spreadsheets and budgeting tools. Accepted records are exported by
default; --status selects other record states.

Example:
  mail-ledger export -u alice -o alice.csv
  mail-ledger export -u alice -o review.csv --status needs_review --status duplicate`,
	Run: exportFunc,
}

func init() {
	Cmd.Flags().StringSliceVar(&statusNames, "status", nil,
		"record statuses to export (accepted, needs_review, duplicate, rejected); repeatable")
}

func exportFunc(cmd *cobra.Command, args []string) {
	if root.SharedFlags.User == "" {
		root.Log.Fatal("User must be specified with -u")
	}
	if root.SharedFlags.Output == "" {
		root.Log.Fatal("Output CSV file must be specified with -o")
	}

	var statuses []models.Status
	for _, name := range statusNames {
		status, err := models.ParseStatus(name)
		if err != nil {
			root.Log.Fatalf("Invalid --status: %v", err)
		}
		statuses = append(statuses, status)
	}

	ctx := cmd.Context()
	c, err := root.NewContainer(ctx)
	if err != nil {
		root.Log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			root.Log.Warnf("Failed to close cleanly: %v", err)
		}
	}()

	exporter := c.Exporter()
	if len(statuses) > 0 {
		exporter = c.ExporterFor(statuses)
	}
	if err := exporter.WriteFile(ctx, root.SharedFlags.User, root.SharedFlags.Output); err != nil {
		root.Log.Fatalf("Export failed: %v", err)
	}
	root.Log.Infof("Exported records for %s to %s", root.SharedFlags.User, root.SharedFlags.Output)
}
