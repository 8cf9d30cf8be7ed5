// Package root contains the root command for the application.
package root

import (
	"context"
	"fmt"

	"fjacquet/mail-ledger/internal/config"
	"fjacquet/mail-ledger/internal/container"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommonFlags represents the flags shared by multiple commands.
type CommonFlags struct {
	Input  string
	Output string
	User   string
}

var (
	// Log is the shared logger instance for commands.
	Log = logrus.New()

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "mail-ledger",
		Short: "Extract financial transactions from email exports into a personal ledger.",
		Long: `mail-ledger reads mailbox exports, finds transactional emails,
extracts merchant, amount, and date, scores each extraction, and records
deduplicated transactions in a local ledger with categories and
spending analytics.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to mail-ledger!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
			Log = config.ConfigureLogging()
		},
	}

	// SharedFlags are the common flags accessible to all commands.
	SharedFlags = CommonFlags{}
)

// Init initializes the root command and all flags.
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Input, "input", "i", "", "Input file")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "", "Output file")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.User, "user", "u", "", "Restrict to one mailbox owner")
}

// NewContainer loads configuration and wires the application container.
// Callers own the returned container and must Close it.
func NewContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.InitializeConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return container.NewContainer(ctx, cfg)
}
