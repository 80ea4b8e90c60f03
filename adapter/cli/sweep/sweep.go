// Package sweep holds the trial sweep CLI command.
package sweep

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostfolio/hostfolio/adapter/cli"
)

// Cmd runs a single trial sweep pass.
var Cmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue trials and issue trial warnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil {
			return errors.New("no container configured")
		}

		result, err := app.Sweeper.RunOnce(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Expired:     %d\n", result.Expired)
		fmt.Fprintf(cmd.OutOrStdout(), "Warned 24h:  %d\n", result.Warned24h)
		fmt.Fprintf(cmd.OutOrStdout(), "Warned 6h:   %d\n", result.Warned6h)
		fmt.Fprintf(cmd.OutOrStdout(), "Warned 1h:   %d\n", result.Warned1h)
		if result.Failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Failed:      %d\n", result.Failed)
		}
		return nil
	},
}
