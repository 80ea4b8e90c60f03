package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostfolio/hostfolio/adapter/api"
)

// ServeCmd runs the HTTP API server together with the outbox relay.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetApp()
		if c == nil {
			return errors.New("no container configured")
		}

		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = c.Config.HTTPAddr

		listings := api.NewListingHandler(c.CreateListing, c.ActivateListing, c.Logger)
		billing := api.NewBillingHandler(api.BillingHandlerConfig{
			Entitlements:   c.Entitlements,
			Pricing:        c.Pricing,
			RequestPayment: c.RequestPayment,
			CancelSub:      c.CancelSub,
			ReactivateSub:  c.ReactivateSub,
			Logger:         c.Logger,
		})
		sweep := api.NewSweepHandler(c.Sweeper, c.Config.SweepToken, c.Logger)
		reconcile := api.NewReconcileHandler(c.ConfirmPayment, c.Config.SweepToken, c.Logger)

		server := api.NewServer(serverCfg, listings, billing, sweep, reconcile, c.Logger)

		if c.Config.OutboxRelayEnabled {
			c.Relay.Start(cmd.Context())
		}

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-cmd.Context().Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}
