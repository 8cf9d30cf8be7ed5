// Package analytics handles the spending-report command.
package analytics

import (
	"fmt"

	"fjacquet/mail-ledger/cmd/root"
	"fjacquet/mail-ledger/internal/analytics"

	"github.com/spf13/cobra"
)

// Cmd represents the analytics command.
var Cmd = &cobra.Command{
	Use:   "analytics",
	Short: "Rebuild and print spending analytics from the ledger",
	Long: `Rebuild monthly rollups, the subscription registry, income sources,
and financial health scores from the accepted records in the ledger.

Example:
  mail-ledger analytics -u alice`,
	Run: analyticsFunc,
}

func analyticsFunc(cmd *cobra.Command, args []string) {
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

	users := []string{root.SharedFlags.User}
	if root.SharedFlags.User == "" {
		users, err = c.Ledger().Users(ctx)
		if err != nil {
			root.Log.Fatalf("Failed to list users: %v", err)
		}
		if len(users) == 0 {
			root.Log.Info("Ledger is empty, nothing to report")
			return
		}
	}

	for _, user := range users {
		report, err := c.Aggregator().Rebuild(ctx, user)
		if err != nil {
			root.Log.Fatalf("Failed to rebuild analytics for %s: %v", user, err)
		}
		printReport(report)
	}
}

func printReport(report *analytics.Report) {
	fmt.Printf("User: %s\n", report.User)

	for _, period := range report.Periods() {
		month := report.Months[period]
		fmt.Printf("\n%s  (%d records, health %d/100)\n", period, month.Records, analytics.HealthScore(month))
		for category, totals := range month.CategoryTotals {
			for currency, amount := range totals {
				fmt.Printf("  %-14s %10s %s\n", category, amount.StringFixed(2), currency)
			}
		}
	}

	if len(report.Subscriptions) > 0 {
		fmt.Println("\nSubscriptions:")
		for _, sub := range report.Subscriptions {
			fmt.Printf("  %-20s %s/%s  ~%s %s per month (%d renewals)\n",
				sub.Merchant, sub.Amount.Amount.StringFixed(2), sub.Cadence,
				sub.MonthlyCost.Amount.StringFixed(2), sub.MonthlyCost.Currency, sub.Renewals)
		}
	}

	if len(report.Income) > 0 {
		fmt.Println("\nIncome sources:")
		for _, src := range report.Income {
			fmt.Printf("  %-20s %d payments, cycle %s\n", src.Payer, src.Payments, src.PayCycle)
		}
	}
}
