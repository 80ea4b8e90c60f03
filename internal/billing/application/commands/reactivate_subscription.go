package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
	"github.com/hostfolio/hostfolio/internal/shared/application"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

// ReactivateSubscriptionCommand clears a scheduled cancellation so the
// subscription renews normally. Nothing new is charged.
type ReactivateSubscriptionCommand struct {
	HostID uuid.UUID
}

// ReactivateSubscriptionHandler handles subscription reactivation.
type ReactivateSubscriptionHandler struct {
	subscriptions domain.SubscriptionRepository
	uow           application.UnitOfWork
	outbox        outbox.Repository
	logger        *slog.Logger
	now           func() time.Time
}

// NewReactivateSubscriptionHandler creates a new reactivate handler.
func NewReactivateSubscriptionHandler(
	subscriptions domain.SubscriptionRepository,
	uow application.UnitOfWork,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) *ReactivateSubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReactivateSubscriptionHandler{
		subscriptions: subscriptions,
		uow:           uow,
		outbox:        outboxRepo,
		logger:        logger,
		now:           time.Now,
	}
}

// Handle reactivates the host's subscription.
func (h *ReactivateSubscriptionHandler) Handle(ctx context.Context, cmd ReactivateSubscriptionCommand) (*domain.Subscription, error) {
	now := h.now()

	sub, err := h.subscriptions.FindCurrentByHost(ctx, cmd.HostID, now)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, domain.ErrNothingToReactivate
	}

	if err := sub.Reactivate(now); err != nil {
		return nil, err
	}

	err = application.WithUnitOfWork(ctx, h.uow, func(ctx context.Context) error {
		if err := h.subscriptions.Update(ctx, sub); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		msgs, err := outbox.FromEvents(sub.DomainEvents())
		if err != nil {
			return err
		}
		return h.outbox.SaveBatch(ctx, msgs)
	})
	if err != nil {
		return nil, err
	}
	sub.ClearDomainEvents()

	h.logger.Info("subscription reactivated", "host_id", cmd.HostID, "end_date", sub.EndDate())
	return sub, nil
}
