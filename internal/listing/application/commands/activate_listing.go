package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/listing/domain"
	"github.com/hostfolio/hostfolio/internal/shared/application"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

// ActivateListingCommand starts monetization for a draft or suspended
// listing.
type ActivateListingCommand struct {
	HostID    uuid.UUID
	ListingID uuid.UUID
}

// ActivateListingHandler handles listing activation. The host's first
// monetized listing goes straight to ACTIVE; every further one enters the
// 48-hour trial.
type ActivateListingHandler struct {
	listings domain.Repository
	uow      application.UnitOfWork
	outbox   outbox.Repository
	logger   *slog.Logger
	now      func() time.Time
}

// NewActivateListingHandler creates a new activate-listing handler.
func NewActivateListingHandler(
	listings domain.Repository,
	uow application.UnitOfWork,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) *ActivateListingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivateListingHandler{
		listings: listings,
		uow:      uow,
		outbox:   outboxRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle activates the listing for its owner.
func (h *ActivateListingHandler) Handle(ctx context.Context, cmd ActivateListingCommand) (*domain.Listing, error) {
	listing, err := h.listings.FindByID(ctx, cmd.ListingID)
	if err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}
	if listing.HostID() != cmd.HostID {
		return nil, ErrNotListingOwner
	}

	monetized, err := h.listings.CountMonetizedByHost(ctx, cmd.HostID)
	if err != nil {
		return nil, fmt.Errorf("count monetized listings: %w", err)
	}

	prior := listing.Status()
	if err := listing.Activate(monetized == 0, h.now()); err != nil {
		return nil, err
	}

	err = application.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		if err := h.listings.Update(ctx, listing, prior); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		msgs, err := outbox.FromEvents(listing.DomainEvents())
		if err != nil {
			return err
		}
		return h.outbox.SaveBatch(ctx, msgs)
	})
	if err != nil {
		return nil, err
	}
	listing.ClearDomainEvents()

	h.logger.Info("listing activated",
		"listing_id", listing.ID(),
		"host_id", cmd.HostID,
		"status", listing.Status())
	return listing, nil
}
