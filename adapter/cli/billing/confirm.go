package billing

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostfolio/hostfolio/adapter/cli"
	billingCommands "github.com/hostfolio/hostfolio/internal/billing/application/commands"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <reference>",
	Short: "Settle an invoice after matching a bank transfer",
	Long: "Settles the invoice matching the payment reference (or invoice " +
		"number) and activates the listings it covers.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil {
			return errors.New("no container configured")
		}

		result, err := app.ConfirmPayment.Handle(cmd.Context(), billingCommands.ConfirmPaymentCommand{
			Reference: args[0],
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Invoice %s settled, %.2f received\n", result.Number, result.Amount)
		fmt.Fprintf(out, "Listings activated: %d\n", result.ListingsActivated)
		return nil
	},
}
