package billing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hostfolio/hostfolio/adapter/cli"
)

var entitlementHost string

var entitlementCmd = &cobra.Command{
	Use:   "entitlement",
	Short: "Show a host's listing entitlement",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil {
			return errors.New("no container configured")
		}

		hostID, err := uuid.Parse(entitlementHost)
		if err != nil {
			return fmt.Errorf("invalid host id: %w", err)
		}

		ent, err := app.Entitlements.Resolve(cmd.Context(), hostID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Source:   %s\n", ent.Source)
		fmt.Fprintf(out, "Listings: %d of %d\n", ent.CurrentCount, ent.MaxListings)
		fmt.Fprintf(out, "Can add:  %t\n", ent.CanCreateMore)
		if ent.Reason != "" {
			fmt.Fprintf(out, "Note:     %s\n", ent.Reason)
		}
		return nil
	},
}

func init() {
	entitlementCmd.Flags().StringVar(&entitlementHost, "host", "", "host ID (required)")
	_ = entitlementCmd.MarkFlagRequired("host")
}
