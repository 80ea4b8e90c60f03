package subscription

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hostfolio/hostfolio/adapter/cli"
	"github.com/hostfolio/hostfolio/internal/billing/application/commands"
)

var (
	cancelHost      string
	cancelReason    string
	cancelImmediate bool
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the host's subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil {
			return errors.New("no container configured")
		}

		hostID, err := uuid.Parse(cancelHost)
		if err != nil {
			return fmt.Errorf("invalid host id: %w", err)
		}

		sub, err := app.CancelSub.Handle(cmd.Context(), commands.CancelSubscriptionCommand{
			HostID:    hostID,
			Reason:    cancelReason,
			Immediate: cancelImmediate,
		})
		if err != nil {
			return err
		}

		if cancelImmediate {
			fmt.Fprintln(cmd.OutOrStdout(), "Subscription canceled immediately.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cancellation scheduled; active until %s.\n",
			sub.EndDate().Format("2006-01-02"))
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelHost, "host", "", "host ID (required)")
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "cancellation reason")
	cancelCmd.Flags().BoolVar(&cancelImmediate, "immediate", false, "cancel now instead of at period end")
	_ = cancelCmd.MarkFlagRequired("host")
}
