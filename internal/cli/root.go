// Package cli implements the splitledger command line: the API server and
// offline split and settlement calculators.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "splitledger",
	Short: "Shared expense ledger: split bills, track balances, settle up",
	Long: `splitledger records shared expenses for groups, works out who owes whom,
and suggests the fewest transfers that settle a group.

Run "splitledger serve" to start the API server, or use "split" and "settle"
to calculate without a server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
