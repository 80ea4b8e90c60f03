package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hostfolio/hostfolio/internal/listing/domain"
	"github.com/hostfolio/hostfolio/internal/notify"
	"github.com/hostfolio/hostfolio/internal/shared/application"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/lock"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

// ErrSweepInProgress is returned when another process holds the sweep lease.
var ErrSweepInProgress = errors.New("trial sweep already in progress")

// SweepLock serializes sweeps across processes. Acquire returns a release
// function on success and lock.ErrLeaseHeld when the lease is held
// elsewhere. Satisfied by lock.RedisLease and lock.LocalLease.
type SweepLock interface {
	Acquire(ctx context.Context) (release func(context.Context), err error)
}

// SweepResult counts what a single sweep pass did.
type SweepResult struct {
	Expired   int `json:"expired"`
	Warned24h int `json:"warned_24h"`
	Warned6h  int `json:"warned_6h"`
	Warned1h  int `json:"warned_1h"`
	Failed    int `json:"failed"`
}

// TrialSweeper expires overdue trials and issues graduated trial warnings.
// A sweep is idempotent: notification flags and status transitions are
// persisted before anything is dispatched, so a crashed or repeated sweep
// never double-notifies.
type TrialSweeper struct {
	listings domain.Repository
	uow      application.UnitOfWork
	outbox   outbox.Repository
	notifier notify.Notifier
	lock     SweepLock
	logger   *slog.Logger
	now      func() time.Time
}

// NewTrialSweeper creates a trial sweeper.
func NewTrialSweeper(
	listings domain.Repository,
	uow application.UnitOfWork,
	outboxRepo outbox.Repository,
	notifier notify.Notifier,
	lock SweepLock,
	logger *slog.Logger,
) *TrialSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrialSweeper{
		listings: listings,
		uow:      uow,
		outbox:   outboxRepo,
		notifier: notifier,
		lock:     lock,
		logger:   logger,
		now:      time.Now,
	}
}

// RunOnce executes a single sweep pass under the sweep lease. Expiries are
// processed before warnings so a listing past its trial end is suspended
// rather than warned. Per-listing failures are counted and logged but do not
// abort the pass.
func (s *TrialSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrLeaseHeld) {
			return SweepResult{}, ErrSweepInProgress
		}
		return SweepResult{}, fmt.Errorf("acquire sweep lease: %w", err)
	}
	defer release(ctx)

	var result SweepResult
	now := s.now()

	expired, err := s.listings.DueForExpiry(ctx, now)
	if err != nil {
		return result, fmt.Errorf("load expirable listings: %w", err)
	}
	for _, listing := range expired {
		if err := s.expireOne(ctx, listing, now); err != nil {
			result.Failed++
			s.logger.Error("trial expiry failed", "listing_id", listing.ID(), "error", err)
			continue
		}
		result.Expired++
	}

	// Most urgent window first. MarkWarned sets the broader flags too, so a
	// listing crossing several thresholds at once gets exactly one warning.
	for _, window := range []domain.WarnWindow{domain.Warn1h, domain.Warn6h, domain.Warn24h} {
		due, err := s.listings.DueForWarning(ctx, window, now)
		if err != nil {
			return result, fmt.Errorf("load listings due for %s warning: %w", window, err)
		}
		for _, listing := range due {
			if err := s.warnOne(ctx, listing, window); err != nil {
				result.Failed++
				s.logger.Error("trial warning failed", "listing_id", listing.ID(), "window", window, "error", err)
				continue
			}
			switch window {
			case domain.Warn24h:
				result.Warned24h++
			case domain.Warn6h:
				result.Warned6h++
			case domain.Warn1h:
				result.Warned1h++
			}
		}
	}

	s.logger.Info("trial sweep completed",
		"expired", result.Expired,
		"warned_24h", result.Warned24h,
		"warned_6h", result.Warned6h,
		"warned_1h", result.Warned1h,
		"failed", result.Failed)
	return result, nil
}

func (s *TrialSweeper) expireOne(ctx context.Context, listing *domain.Listing, now time.Time) error {
	if err := listing.Expire(now); err != nil {
		return err
	}
	err := application.WithUnitOfWork(ctx, s.uow, func(ctx context.Context) error {
		if err := s.listings.Update(ctx, listing, domain.StatusTrial); err != nil {
			return err
		}
		msgs, err := outbox.FromEvents(listing.DomainEvents())
		if err != nil {
			return err
		}
		return s.outbox.SaveBatch(ctx, msgs)
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		// Another sweep got there first.
		return nil
	}
	if err != nil {
		return err
	}
	listing.ClearDomainEvents()

	if err := s.notifier.NotifyHost(ctx, listing.HostID(), notify.EventTrialExpired, map[string]any{
		"listing_id":   listing.ID(),
		"listing_name": listing.Name(),
	}); err != nil {
		// The transition is committed; delivery is retried by the consumer side.
		s.logger.Warn("expiry notification dispatch failed", "listing_id", listing.ID(), "error", err)
	}
	return nil
}

func (s *TrialSweeper) warnOne(ctx context.Context, listing *domain.Listing, window domain.WarnWindow) error {
	if err := listing.MarkWarned(window); err != nil {
		if errors.Is(err, domain.ErrAlreadyNotified) {
			return nil
		}
		return err
	}
	err := application.WithUnitOfWork(ctx, s.uow, func(ctx context.Context) error {
		if err := s.listings.Update(ctx, listing, domain.StatusTrial); err != nil {
			return err
		}
		msgs, err := outbox.FromEvents(listing.DomainEvents())
		if err != nil {
			return err
		}
		return s.outbox.SaveBatch(ctx, msgs)
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	listing.ClearDomainEvents()

	if err := s.notifier.NotifyHost(ctx, listing.HostID(), notify.EventTrialWarning, map[string]any{
		"listing_id":    listing.ID(),
		"listing_name":  listing.Name(),
		"window":        string(window),
		"trial_ends_at": listing.TrialEndsAt(),
	}); err != nil {
		s.logger.Warn("warning notification dispatch failed", "listing_id", listing.ID(), "error", err)
	}
	return nil
}
