package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	billing "github.com/hostfolio/hostfolio/internal/billing/application/services"
	"github.com/hostfolio/hostfolio/internal/listing/domain"
	"github.com/hostfolio/hostfolio/internal/shared/application"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrNotListingOwner = errors.New("listing belongs to another host")
	ErrQuotaExceeded   = errors.New("listing quota exceeded")
)

// EntitlementResolver answers whether a host may create another listing.
type EntitlementResolver interface {
	Resolve(ctx context.Context, hostID uuid.UUID) (billing.Entitlement, error)
}

// CreateListingCommand creates a new draft listing for a host.
type CreateListingCommand struct {
	HostID uuid.UUID
	Name   string
}

// CreateListingHandler handles listing creation, gated by the host's
// entitlement.
type CreateListingHandler struct {
	listings     domain.Repository
	entitlements EntitlementResolver
	uow          application.UnitOfWork
	outbox       outbox.Repository
	logger       *slog.Logger
}

// NewCreateListingHandler creates a new create-listing handler.
func NewCreateListingHandler(
	listings domain.Repository,
	entitlements EntitlementResolver,
	uow application.UnitOfWork,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) *CreateListingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateListingHandler{
		listings:     listings,
		entitlements: entitlements,
		uow:          uow,
		outbox:       outboxRepo,
		logger:       logger,
	}
}

// Handle creates the listing in DRAFT when the host's quota allows it.
func (h *CreateListingHandler) Handle(ctx context.Context, cmd CreateListingCommand) (*domain.Listing, error) {
	ent, err := h.entitlements.Resolve(ctx, cmd.HostID)
	if err != nil {
		return nil, fmt.Errorf("resolve entitlement: %w", err)
	}
	if !ent.CanCreateMore {
		if ent.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, ent.Reason)
		}
		return nil, fmt.Errorf("%w: %d of %d listings used", ErrQuotaExceeded, ent.CurrentCount, ent.MaxListings)
	}

	listing, err := domain.NewListing(cmd.HostID, cmd.Name)
	if err != nil {
		return nil, err
	}

	err = application.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		if err := h.listings.Save(ctx, listing); err != nil {
			return fmt.Errorf("save listing: %w", err)
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

	h.logger.Info("listing created", "listing_id", listing.ID(), "host_id", cmd.HostID)
	return listing, nil
}
