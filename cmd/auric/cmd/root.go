package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "auric",
	Short: "An autonomous single-instrument trading service",
	Long: `Auric runs an autonomous trading service for a single instrument.

It provides:
  - A control loop that samples prices and consults a decision oracle
  - A simulated broker ledger with stop-loss and take-profit handling
  - Risk policy enforcement on every order
  - An HTTP API plus a WebSocket event stream for dashboards
  - Trade and equity journaling to CSV or SQLite`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
