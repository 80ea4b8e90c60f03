// The worker binary drives the time-based side of the engine: the outbox
// relay, the periodic trial sweep, and overdue invoice cleanup.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostfolio/hostfolio/internal/app"
	listingServices "github.com/hostfolio/hostfolio/internal/listing/application/services"
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

	logger := container.Logger
	logger.Info("worker starting", "sweep_interval", cfg.SweepInterval)

	if cfg.OutboxRelayEnabled {
		container.Relay.Start(ctx)
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	retention := time.NewTicker(time.Hour)
	defer retention.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			return
		case <-ticker.C:
			runSweep(ctx, container)
			cancelOverdueInvoices(ctx, container)
		case <-retention.C:
			purgeOutbox(ctx, container)
		}
	}
}

func runSweep(ctx context.Context, container *app.Container) {
	result, err := container.Sweeper.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, listingServices.ErrSweepInProgress) {
			container.Logger.Debug("sweep skipped, another instance holds the lease")
			return
		}
		container.Logger.Error("sweep failed", "error", err)
		return
	}
	if result.Expired+result.Warned24h+result.Warned6h+result.Warned1h+result.Failed > 0 {
		container.Logger.Info("sweep pass done",
			"expired", result.Expired,
			"warned_24h", result.Warned24h,
			"warned_6h", result.Warned6h,
			"warned_1h", result.Warned1h,
			"failed", result.Failed)
	}
}

func purgeOutbox(ctx context.Context, container *app.Container) {
	deleted, err := container.Outbox.DeleteOld(ctx, container.Config.OutboxRetentionDays)
	if err != nil {
		container.Logger.Error("outbox retention pass failed", "error", err)
		return
	}
	if deleted > 0 {
		container.Logger.Info("purged published outbox messages",
			"count", deleted,
			"older_than_days", container.Config.OutboxRetentionDays)
	}
}

func cancelOverdueInvoices(ctx context.Context, container *app.Container) {
	canceled, err := container.Invoices.CancelOverdue(ctx, time.Now())
	if err != nil {
		container.Logger.Error("overdue invoice cleanup failed", "error", err)
		return
	}
	if canceled > 0 {
		container.Logger.Info("canceled overdue invoices", "count", canceled)
	}
}
