// Package process handles the mailbox processing command.
package process

import (
	"fjacquet/mail-ledger/cmd/root"
	"fjacquet/mail-ledger/internal/container"
	"fjacquet/mail-ledger/internal/pipeline"
	"fjacquet/mail-ledger/internal/report"
	"fjacquet/mail-ledger/internal/scanner"
	"fjacquet/mail-ledger/internal/source"
	"fjacquet/mail-ledger/internal/validation"

	"github.com/spf13/cobra"
)

// Cmd represents the process command.
var Cmd = &cobra.Command{
	Use:   "process",
	Short: "Process mailbox exports into the ledger",
	Long: `Process JSON mailbox exports: normalize each email, filter out
non-transactional mail, extract and score transaction fields, and record
deduplicated, categorized transactions in the ledger.

The input may be a single export file or a directory of exports.
Processing resumes from the last checkpoint, so re-running on the same
export only touches new emails.

Examples:
  mail-ledger process -i mailbox.json
  mail-ledger process -i exports/ --report run.json`,
	Run: processFunc,
}

var (
	reportPath   string
	reportFormat string
)

func init() {
	Cmd.Flags().StringVar(&reportPath, "report", "", "Write a run report to this file")
	Cmd.Flags().StringVar(&reportFormat, "report-format", "json", "Run report format: json or text")
}

func processFunc(cmd *cobra.Command, args []string) {
	input := root.SharedFlags.Input
	if input == "" {
		root.Log.Fatal("Input mailbox export must be specified with -i")
	}
	if err := validation.IsValidPath(input); err != nil {
		root.Log.Fatalf("Invalid input: %v", err)
	}
	if err := validation.IsValidReportFormat(reportFormat); err != nil {
		root.Log.Fatalf("Invalid report format: %v", err)
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

	exports, err := scanner.NewExportScanner(c.Logger()).ScanPaths([]string{input})
	if err != nil {
		root.Log.Fatalf("Failed to find mailbox exports: %v", err)
	}
	if len(exports) == 0 {
		root.Log.Fatal("No mailbox exports found")
	}

	combined := &pipeline.Report{Users: make(map[string]*pipeline.UserReport)}
	for _, path := range exports {
		root.Log.Infof("Processing %s", path)
		run, err := runExport(cmd, c, path)
		if err != nil {
			root.Log.Fatalf("Processing %s failed: %v", path, err)
		}
		mergeReports(combined, run)
	}

	for user, ur := range combined.Users {
		printUserReport(user, *ur)
	}
	total := combined.Total()
	root.Log.Infof("Done: %d emails, %d accepted, %d for review, %d duplicates, %d skipped, %d errors",
		total.Processed, total.Accepted, total.NeedsReview, total.Duplicates, total.Skipped, total.Errors)

	if reportPath != "" {
		if err := report.NewGenerator(c.Logger()).WriteFile(combined, reportFormat, reportPath); err != nil {
			root.Log.Fatalf("Failed to write run report: %v", err)
		}
	}
}

func runExport(cmd *cobra.Command, c *container.Container, path string) (*pipeline.Report, error) {
	src, err := source.NewFileSource(path, c.Logger())
	if err != nil {
		return nil, err
	}

	p := c.Pipeline(src)
	ctx := cmd.Context()

	if user := root.SharedFlags.User; user != "" {
		ur, err := p.RunUser(ctx, user)
		if err != nil {
			return nil, err
		}
		return &pipeline.Report{Users: map[string]*pipeline.UserReport{user: ur}}, nil
	}
	return p.Run(ctx)
}

func mergeReports(into, from *pipeline.Report) {
	for user, ur := range from.Users {
		if existing, ok := into.Users[user]; ok {
			existing.Processed += ur.Processed
			existing.Skipped += ur.Skipped
			existing.Accepted += ur.Accepted
			existing.NeedsReview += ur.NeedsReview
			existing.Duplicates += ur.Duplicates
			existing.Replayed += ur.Replayed
			existing.Errors += ur.Errors
			for reason, n := range ur.SkipReasons {
				if existing.SkipReasons == nil {
					existing.SkipReasons = make(map[string]int)
				}
				existing.SkipReasons[reason] += n
			}
		} else {
			copied := *ur
			if len(ur.SkipReasons) > 0 {
				copied.SkipReasons = make(map[string]int, len(ur.SkipReasons))
				for reason, n := range ur.SkipReasons {
					copied.SkipReasons[reason] = n
				}
			}
			into.Users[user] = &copied
		}
	}
}

func printUserReport(user string, ur pipeline.UserReport) {
	root.Log.Infof("%s: %d emails, %d accepted, %d for review, %d duplicates, %d replayed, %d skipped, %d errors",
		user, ur.Processed, ur.Accepted, ur.NeedsReview, ur.Duplicates, ur.Replayed, ur.Skipped, ur.Errors)
}
