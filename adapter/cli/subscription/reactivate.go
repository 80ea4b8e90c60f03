package subscription

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hostfolio/hostfolio/adapter/cli"
	"github.com/hostfolio/hostfolio/internal/billing/application/commands"
)

var reactivateHost string

var reactivateCmd = &cobra.Command{
	Use:   "reactivate",
	Short: "Clear a scheduled cancellation",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil {
			return errors.New("no container configured")
		}

		hostID, err := uuid.Parse(reactivateHost)
		if err != nil {
			return fmt.Errorf("invalid host id: %w", err)
		}

		sub, err := app.ReactivateSub.Handle(cmd.Context(), commands.ReactivateSubscriptionCommand{HostID: hostID})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Subscription reactivated; renews after %s.\n",
			sub.EndDate().Format("2006-01-02"))
		return nil
	},
}

func init() {
	reactivateCmd.Flags().StringVar(&reactivateHost, "host", "", "host ID (required)")
	_ = reactivateCmd.MarkFlagRequired("host")
}
