package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hostfolio/hostfolio/adapter/cli"
	cliBilling "github.com/hostfolio/hostfolio/adapter/cli/billing"
	cliSubscription "github.com/hostfolio/hostfolio/adapter/cli/subscription"
	cliSweep "github.com/hostfolio/hostfolio/adapter/cli/sweep"
	"github.com/hostfolio/hostfolio/internal/app"
	"github.com/hostfolio/hostfolio/pkg/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize:", err)
		os.Exit(1)
	}
	defer container.Close()
	cli.SetContainer(container)

	root := &cobra.Command{
		Use:           "hostfolio",
		Short:         "Entitlement and billing lifecycle engine for listing hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(cli.ServeCmd)
	root.AddCommand(cliSweep.Cmd)
	root.AddCommand(cliBilling.Cmd)
	root.AddCommand(cliSubscription.Cmd)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
