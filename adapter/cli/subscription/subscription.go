// Package subscription holds the subscription CLI command group.
package subscription

import "github.com/spf13/cobra"

// Cmd is the subscription command group.
var Cmd = &cobra.Command{
	Use:   "subscription",
	Short: "Manage subscription lifecycle",
}

func init() {
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(reactivateCmd)
}
