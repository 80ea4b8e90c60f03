// Package billing holds the billing CLI command group.
package billing

import "github.com/spf13/cobra"

// Cmd is the billing command group.
var Cmd = &cobra.Command{
	Use:   "billing",
	Short: "Quote prices and inspect entitlements",
}

func init() {
	Cmd.AddCommand(quoteCmd)
	Cmd.AddCommand(entitlementCmd)
	Cmd.AddCommand(confirmCmd)
}
